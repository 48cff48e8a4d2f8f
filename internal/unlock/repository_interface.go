package unlock

import "context"

type Repository interface {
	Find(ctx context.Context, userID, paperID int) (*Record, error)
	// CreateFree records access without touching the ledger
	// (unlimited-subscription bypass).
	CreateFree(ctx context.Context, userID, paperID int) (*Record, error)
	// CreateWithDebit debits cost and records access as one atomic
	// unit. Returns ErrAlreadyUnlocked without debiting when the
	// record already exists.
	CreateWithDebit(ctx context.Context, userID, paperID int, cost int64) (*Record, error)
	ListByUser(ctx context.Context, userID int) ([]Record, error)
}
