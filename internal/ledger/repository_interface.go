package ledger

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetOrCreateAccount(ctx context.Context, userID int) (*Account, error)
	Balance(ctx context.Context, userID int) (int64, error)
	Credit(ctx context.Context, userID int, amount int64, kind Kind, description string, reference *string) (*Transaction, error)
	// CreditTx and DebitTx apply a movement inside a caller-owned
	// database transaction so callers can make it atomic with their own
	// writes. All transaction rows are written through this one path.
	CreditTx(ctx context.Context, tx *sqlx.Tx, userID int, amount int64, kind Kind, description string, reference *string) (*Transaction, error)
	// DebitTx checks and applies under the account row lock; a debit
	// that would take the balance below zero fails with
	// ErrInsufficientCredits and writes nothing.
	DebitTx(ctx context.Context, tx *sqlx.Tx, userID int, amount int64, kind Kind, description string, reference *string) (*Transaction, error)
	Transactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error)
	SumTransactions(ctx context.Context, userID int) (int64, error)
}
