package library

import (
	"context"

	"github.com/nguyentantai21042004/afterthought/internal/models"
)

// Library reads recently played episodes from the Apple Podcasts database
// and resolves their cached transcripts. It never writes to the database.
type Library interface {
	Discover(ctx context.Context, q Query) ([]models.Item, error)
	Channels(ctx context.Context) ([]Channel, error)
	MatchChannel(ctx context.Context, query string) (*Match, error)
	Locate(item models.Item) (string, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
