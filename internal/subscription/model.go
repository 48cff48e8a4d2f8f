package subscription

import "time"

type Plan string
type Status string

const (
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"

	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Subscription grants unlimited access to the paper catalog while
// active. It never touches the credit ledger.
type Subscription struct {
	ID         int       `db:"id" json:"id"`
	UserID     int       `db:"user_id" json:"user_id"`
	Plan       Plan      `db:"plan" json:"plan"`
	Status     Status    `db:"status" json:"status"`
	ValidFrom  time.Time `db:"valid_from" json:"valid_from"`
	ValidUntil time.Time `db:"valid_until" json:"valid_until"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

type GrantRequest struct {
	Plan Plan `json:"plan" binding:"required"`
}
