package summarizer

import (
	"context"

	"github.com/nguyentantai21042004/afterthought/internal/models"
)

// Summarizer turns a rendered transcript into a summary with token usage.
// Implementations own their retry policy; an error means retries are exhausted.
type Summarizer interface {
	Summarize(ctx context.Context, req models.SummaryRequest) (*models.Summary, error)
}
