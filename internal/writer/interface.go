package writer

import (
	"context"

	"github.com/nguyentantai21042004/afterthought/internal/models"
)

// Writer persists a finished note and returns the path it wrote.
type Writer interface {
	Write(ctx context.Context, result models.Result) (string, error)
}
