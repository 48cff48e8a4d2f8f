package unlock

import "time"

// Record marks permanent access to a paper. At most one row exists per
// (user, paper) pair; the unique index is what makes retried unlocks
// safe after a crash.
type Record struct {
	ID            int       `db:"id" json:"id"`
	UserID        int       `db:"user_id" json:"user_id"`
	PaperID       int       `db:"paper_id" json:"paper_id"`
	TransactionID *int      `db:"transaction_id" json:"transaction_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Result reports the outcome of an unlock attempt.
type Result struct {
	Record          *Record `json:"record"`
	AlreadyUnlocked bool    `json:"already_unlocked"`
	Charged         int64   `json:"charged"`
}
