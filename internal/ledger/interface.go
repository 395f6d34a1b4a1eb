package ledger

import "context"

// Ledger is the durable record of which items have been processed.
// It answers existence queries and stores outcomes; skip/force policy lives with the caller.
type Ledger interface {
	// HasBeenProcessed reports whether a record exists for itemID.
	// With requireSuccess only a SUCCESS outcome counts.
	HasBeenProcessed(ctx context.Context, itemID string, requireSuccess bool) (bool, error)
	// Record upserts rec keyed by ItemID. The write is applied completely or not at all.
	Record(ctx context.Context, rec Record) error
	Stats(ctx context.Context) (*Stats, error)

	Get(ctx context.Context, itemID string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
	Forget(ctx context.Context, itemID string) (bool, error)
	ForgetSource(ctx context.Context, sourceName string) (int64, error)
	ForgetAll(ctx context.Context) (int64, error)

	Close() error
}
