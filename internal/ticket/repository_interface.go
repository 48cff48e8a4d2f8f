package ticket

import (
	"context"
	"time"
)

type Repository interface {
	// CreateWithHold inserts a pending ticket and debits the hold from
	// the user's account in the same database transaction. Neither
	// write survives without the other.
	CreateWithHold(ctx context.Context, userID int, matiere string, year int, serie *string, hold int64) (*Ticket, error)

	GetByID(ctx context.Context, ticketID int) (*Ticket, error)

	// Fulfill moves a pending ticket to fulfilled. The hold is kept as
	// payment. Returns ErrTicketNotFound for unknown tickets and
	// ErrTicketTerminal when the ticket already left pending.
	Fulfill(ctx context.Context, ticketID, paperID int) (*Ticket, error)

	// Close moves a pending ticket to a terminal status and credits
	// the hold back in the same database transaction.
	Close(ctx context.Context, ticketID int, to Status, comment *string) (*Ticket, error)

	ListByUser(ctx context.Context, userID int) ([]Ticket, error)
	ListByStatus(ctx context.Context, status Status) ([]Ticket, error)

	// ListPendingBefore returns pending tickets created at or before
	// cutoff, oldest first.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]Ticket, error)
}
