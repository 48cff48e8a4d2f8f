package ticket

import "time"

// Status tracks the lifecycle of a subject request ticket. A ticket
// starts pending and moves exactly once to fulfilled, refunded or
// expired. Terminal statuses never change again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
	StatusRefunded  Status = "refunded"
	StatusExpired   Status = "expired"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusFulfilled || s == StatusRefunded || s == StatusExpired
}

// Ticket is a paid request for an exam paper the catalog does not have
// yet. HoldAmount records the credits held at creation so the exact
// amount can be returned when the ticket is refunded or expires.
type Ticket struct {
	ID               int       `db:"id" json:"id"`
	UserID           int       `db:"user_id" json:"user_id"`
	Matiere          string    `db:"matiere" json:"matiere"`
	Year             int       `db:"year" json:"year"`
	Serie            *string   `db:"serie" json:"serie,omitempty"`
	Status           Status    `db:"status" json:"status"`
	HoldAmount       int64     `db:"hold_amount" json:"hold_amount"`
	FulfilledPaperID *int      `db:"fulfilled_paper_id" json:"fulfilled_paper_id,omitempty"`
	AdminComment     *string   `db:"admin_comment" json:"admin_comment,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// CreateTicketRequest is the payload for opening a ticket.
type CreateTicketRequest struct {
	Matiere string  `json:"matiere" binding:"required"`
	Year    int     `json:"year" binding:"required"`
	Serie   *string `json:"serie"`
}

// FulfillTicketRequest attaches the paper that satisfies a ticket.
type FulfillTicketRequest struct {
	PaperID int `json:"paper_id" binding:"required"`
}

// RefundTicketRequest closes a ticket without a paper.
type RefundTicketRequest struct {
	Comment string `json:"comment" binding:"required"`
}

// SweepReport summarizes one expiry sweep run.
type SweepReport struct {
	Scanned  int   `json:"scanned"`
	Refunded int   `json:"refunded"`
	Failures []int `json:"failures,omitempty"`
}
