package player

import (
	"context"

	"github.com/nguyentantai21042004/afterthought/internal/models"
)

// Player asks the Podcasts app to download an episode's transcript.
type Player interface {
	// Fetch opens and briefly plays the episode, then waits for the download.
	Fetch(ctx context.Context, item models.Item) error
	// FetchMissing calls Fetch for every item without a transcript and
	// re-resolves its locator. Items are returned in the same order.
	FetchMissing(ctx context.Context, items []models.Item, loc Locator) []models.Item
}

// Locator finds a cached transcript for an item; "" means none yet.
type Locator interface {
	Locate(item models.Item) (string, error)
}
