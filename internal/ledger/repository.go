package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrPersistence         = errors.New("persistence conflict")
)

// Serialization failures are retried this many times before the
// operation surfaces ErrPersistence.
const maxRetries = 3

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetOrCreateAccount(ctx context.Context, userID int) (*Account, error) {
	acc := &Account{}
	err := r.db.GetContext(ctx, acc, `SELECT * FROM accounts WHERE user_id = $1`, userID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// A concurrent first movement may create the row between the read
	// and the insert; on conflict fall back to the existing row.
	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO accounts (user_id)
		 VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING
		 RETURNING id, user_id, balance, created_at, updated_at`,
		userID,
	).StructScan(acc)

	if errors.Is(err, sql.ErrNoRows) {
		err = r.db.GetContext(ctx, acc, `SELECT * FROM accounts WHERE user_id = $1`, userID)
	}
	if err != nil {
		return nil, err
	}

	return acc, nil
}

func (r *repository) Balance(ctx context.Context, userID int) (int64, error) {
	acc, err := r.GetOrCreateAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

func (r *repository) Credit(ctx context.Context, userID int, amount int64, kind Kind, description string, reference *string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return r.apply(ctx, userID, amount, kind, description, reference)
}

func (r *repository) CreditTx(ctx context.Context, tx *sqlx.Tx, userID int, amount int64, kind Kind, description string, reference *string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return r.applyTx(ctx, tx, userID, amount, kind, description, reference)
}

func (r *repository) DebitTx(ctx context.Context, tx *sqlx.Tx, userID int, amount int64, kind Kind, description string, reference *string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return r.applyTx(ctx, tx, userID, -amount, kind, description, reference)
}

// apply runs one signed movement in its own database transaction,
// retrying on serialization failures.
func (r *repository) apply(ctx context.Context, userID int, amount int64, kind Kind, description string, reference *string) (*Transaction, error) {
	var txn *Transaction
	err := RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		t, err := r.applyTx(ctx, tx, userID, amount, kind, description, reference)
		if err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// RunInTx runs fn inside a database transaction and commits it,
// retrying the whole unit a bounded number of times on serialization
// failures. Callers compose ledger movements with their own writes
// through this helper.
func RunInTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	return withRetry(ctx, func() error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// applyTx writes one signed movement against the locked account row.
func (r *repository) applyTx(ctx context.Context, tx *sqlx.Tx, userID int, amount int64, kind Kind, description string, reference *string) (*Transaction, error) {
	var acc Account
	err := tx.QueryRowxContext(ctx,
		`SELECT id, user_id, balance, created_at, updated_at
		 FROM accounts
		 WHERE user_id = $1
		 FOR UPDATE`,
		userID,
	).StructScan(&acc)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		err = tx.QueryRowxContext(ctx,
			`INSERT INTO accounts (user_id)
			 VALUES ($1)
			 ON CONFLICT (user_id) DO NOTHING
			 RETURNING id, user_id, balance, created_at, updated_at`,
			userID,
		).StructScan(&acc)
		if errors.Is(err, sql.ErrNoRows) {
			// A concurrent movement inserted the row first; lock it.
			err = tx.QueryRowxContext(ctx,
				`SELECT id, user_id, balance, created_at, updated_at
				 FROM accounts
				 WHERE user_id = $1
				 FOR UPDATE`,
				userID,
			).StructScan(&acc)
		}
		if err != nil {
			return nil, err
		}
	}

	newBalance := acc.Balance + amount
	if newBalance < 0 {
		return nil, ErrInsufficientCredits
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts
		 SET balance = $1, updated_at = NOW()
		 WHERE id = $2`,
		newBalance, acc.ID,
	)
	if err != nil {
		return nil, err
	}

	var txn Transaction
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO credit_transactions (account_id, amount, kind, description, reference, balance_after)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, account_id, amount, kind, description, reference, balance_after, created_at`,
		acc.ID, amount, kind, description, reference, newBalance,
	).StructScan(&txn)
	if err != nil {
		return nil, err
	}

	return &txn, nil
}

func (r *repository) Transactions(ctx context.Context, userID int, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var accountID int
	err := r.db.GetContext(ctx, &accountID, `SELECT id FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []Transaction{}, nil
		}
		return nil, err
	}

	var txs []Transaction
	err = r.db.SelectContext(ctx, &txs, `
		SELECT id, account_id, amount, kind, description, reference, balance_after, created_at
		FROM credit_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}

	return txs, nil
}

func (r *repository) SumTransactions(ctx context.Context, userID int) (int64, error) {
	var sum int64
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(t.amount), 0)
		FROM credit_transactions t
		JOIN accounts a ON t.account_id = a.id
		WHERE a.user_id = $1
	`, userID)
	if err != nil {
		return 0, err
	}
	return sum, nil
}

func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = op()
		if err == nil || !isRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

// isRetryable reports whether err is a Postgres serialization or
// deadlock failure.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
