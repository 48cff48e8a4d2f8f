package ledger

import (
	"fmt"
	"time"
)

// Kind classifies a credit transaction.
type Kind string

const (
	KindPurchase      Kind = "purchase"
	KindUnlock        Kind = "unlock"
	KindBonus         Kind = "bonus"
	KindRefund        Kind = "refund"
	KindTicketHold    Kind = "ticket_hold"
	KindTicketRelease Kind = "ticket_release"
)

// Account carries the materialized balance for a user. The balance
// column must always equal the sum of the account's transaction
// amounts; both are written under the same row lock.
type Account struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is one immutable line of the credit log. Rows are never
// updated or deleted.
type Transaction struct {
	ID           int       `db:"id" json:"id"`
	AccountID    int       `db:"account_id" json:"account_id"`
	Amount       int64     `db:"amount" json:"amount"`
	Kind         Kind      `db:"kind" json:"kind"`
	Description  string    `db:"description" json:"description"`
	Reference    *string   `db:"reference" json:"reference,omitempty"`
	BalanceAfter int64     `db:"balance_after" json:"balance_after"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TicketReference links a transaction to the ticket that caused it.
func TicketReference(ticketID int) string {
	return fmt.Sprintf("ticket:%d", ticketID)
}

// PaperReference links a transaction to the unlocked paper.
func PaperReference(paperID int) string {
	return fmt.Sprintf("paper:%d", paperID)
}
