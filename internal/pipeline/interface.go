package pipeline

import (
	"context"

	"github.com/nguyentantai21042004/afterthought/internal/models"
)

// Pipeline turns discovered items into notes, consulting the ledger so an
// item is summarized at most once unless forced.
type Pipeline interface {
	// Run processes items sequentially in the given order. Per-item failures
	// are recorded and do not stop the run. The only error returned is the
	// context's, together with the summary of the items finished so far.
	Run(ctx context.Context, items []models.Item, opts RunOptions) (*RunSummary, error)
}

// TranscriptLoader fetches the raw transcript markup behind a locator.
type TranscriptLoader interface {
	Load(ctx context.Context, locator string) ([]byte, error)
}
