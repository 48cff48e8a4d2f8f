package ticket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prepa/internal/ledger"

	"github.com/jmoiron/sqlx"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketTerminal = errors.New("ticket already closed")
)

const ticketColumns = `id, user_id, matiere, year, serie, status, hold_amount, fulfilled_paper_id, admin_comment, created_at, updated_at`

type repository struct {
	db     *sqlx.DB
	ledger ledger.Repository
}

func NewRepository(db *sqlx.DB, ledgerRepo ledger.Repository) Repository {
	return &repository{db: db, ledger: ledgerRepo}
}

func (r *repository) CreateWithHold(ctx context.Context, userID int, matiere string, year int, serie *string, hold int64) (*Ticket, error) {
	var t Ticket
	err := ledger.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO tickets (user_id, matiere, year, serie, hold_amount)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+ticketColumns,
			userID, matiere, year, serie, hold,
		).StructScan(&t)
		if err != nil {
			return err
		}

		ref := ledger.TicketReference(t.ID)
		_, err = r.ledger.DebitTx(ctx, tx, userID, hold, ledger.KindTicketHold, "subject request hold", &ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func (r *repository) GetByID(ctx context.Context, ticketID int) (*Ticket, error) {
	var t Ticket
	err := r.db.GetContext(ctx, &t,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *repository) Fulfill(ctx context.Context, ticketID, paperID int) (*Ticket, error) {
	var t Ticket
	err := r.db.QueryRowxContext(ctx,
		`UPDATE tickets
		 SET status = $2, fulfilled_paper_id = $3, updated_at = NOW()
		 WHERE id = $1 AND status = $4
		 RETURNING `+ticketColumns,
		ticketID, StatusFulfilled, paperID, StatusPending,
	).StructScan(&t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.classifyMiss(ctx, ticketID)
		}
		return nil, err
	}

	return &t, nil
}

func (r *repository) Close(ctx context.Context, ticketID int, to Status, comment *string) (*Ticket, error) {
	kind, description, err := closingMovement(to)
	if err != nil {
		return nil, err
	}

	var t Ticket
	err = ledger.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx,
			`UPDATE tickets
			 SET status = $2, admin_comment = $3, updated_at = NOW()
			 WHERE id = $1 AND status = $4
			 RETURNING `+ticketColumns,
			ticketID, to, comment, StatusPending,
		).StructScan(&t)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return r.classifyMiss(ctx, ticketID)
			}
			return err
		}

		if t.HoldAmount <= 0 {
			return nil
		}

		ref := ledger.TicketReference(t.ID)
		_, err = r.ledger.CreditTx(ctx, tx, t.UserID, t.HoldAmount, kind, description, &ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// closingMovement maps a terminal status to the ledger entry that
// returns the hold.
func closingMovement(to Status) (ledger.Kind, string, error) {
	switch to {
	case StatusRefunded:
		return ledger.KindRefund, "ticket refunded", nil
	case StatusExpired:
		return ledger.KindTicketRelease, "ticket hold released", nil
	default:
		return "", "", fmt.Errorf("cannot close ticket as %q", to)
	}
}

// classifyMiss distinguishes an unknown ticket from one that already
// left pending after a guarded update matched no row.
func (r *repository) classifyMiss(ctx context.Context, ticketID int) error {
	var status Status
	err := r.db.GetContext(ctx, &status, `SELECT status FROM tickets WHERE id = $1`, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTicketNotFound
		}
		return err
	}
	return fmt.Errorf("%w: status %s", ErrTicketTerminal, status)
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Ticket, error) {
	var ts []Ticket
	err := r.db.SelectContext(ctx, &ts,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

func (r *repository) ListByStatus(ctx context.Context, status Status) ([]Ticket, error) {
	var ts []Ticket
	err := r.db.SelectContext(ctx, &ts,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE status = $1
		 ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]Ticket, error) {
	var ts []Ticket
	err := r.db.SelectContext(ctx, &ts,
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE status = $1 AND created_at <= $2
		 ORDER BY created_at ASC`, StatusPending, cutoff)
	if err != nil {
		return nil, err
	}
	return ts, nil
}
