package unlock

import (
	"context"
	"database/sql"
	"errors"

	"prepa/internal/ledger"

	"github.com/jmoiron/sqlx"
)

var ErrAlreadyUnlocked = errors.New("paper already unlocked")

type repository struct {
	db     *sqlx.DB
	ledger ledger.Repository
}

func NewRepository(db *sqlx.DB, ledgerRepo ledger.Repository) Repository {
	return &repository{db: db, ledger: ledgerRepo}
}

func (r *repository) Find(ctx context.Context, userID, paperID int) (*Record, error) {
	query := `
		SELECT id, user_id, paper_id, transaction_id, created_at
		FROM unlocks
		WHERE user_id = $1 AND paper_id = $2
	`

	var rec Record
	err := r.db.GetContext(ctx, &rec, query, userID, paperID)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

func (r *repository) CreateFree(ctx context.Context, userID, paperID int) (*Record, error) {
	query := `
		INSERT INTO unlocks (user_id, paper_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, paper_id) DO NOTHING
		RETURNING id, user_id, paper_id, transaction_id, created_at
	`

	var rec Record
	err := r.db.GetContext(ctx, &rec, query, userID, paperID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlreadyUnlocked
		}
		return nil, err
	}

	return &rec, nil
}

func (r *repository) CreateWithDebit(ctx context.Context, userID, paperID int, cost int64) (*Record, error) {
	var rec Record
	err := ledger.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		// Insert the record first: on conflict nothing is returned and
		// the debit never happens.
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO unlocks (user_id, paper_id)
			 VALUES ($1, $2)
			 ON CONFLICT (user_id, paper_id) DO NOTHING
			 RETURNING id, user_id, paper_id, transaction_id, created_at`,
			userID, paperID,
		).StructScan(&rec)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAlreadyUnlocked
			}
			return err
		}

		ref := ledger.PaperReference(paperID)
		txn, err := r.ledger.DebitTx(ctx, tx, userID, cost, ledger.KindUnlock, "paper unlock", &ref)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE unlocks SET transaction_id = $1 WHERE id = $2`,
			txn.ID, rec.ID,
		)
		if err != nil {
			return err
		}
		rec.TransactionID = &txn.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Record, error) {
	query := `
		SELECT id, user_id, paper_id, transaction_id, created_at
		FROM unlocks
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var recs []Record
	err := r.db.SelectContext(ctx, &recs, query, userID)
	if err != nil {
		return nil, err
	}

	return recs, nil
}
