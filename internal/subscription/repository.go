package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, userID int, plan Plan) (*Subscription, error) {
	var interval string
	switch plan {
	case PlanMonthly:
		interval = "1 month"
	case PlanYearly:
		interval = "1 year"
	default:
		return nil, fmt.Errorf("unknown plan: %s", plan)
	}

	query := `
		INSERT INTO subscriptions (user_id, plan, status, valid_from, valid_until)
		VALUES ($1, $2, 'active', NOW(), NOW() + $3::interval)
		RETURNING id, user_id, plan, status, valid_from, valid_until, created_at, updated_at
	`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, userID, plan, interval)
	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *repository) GetActiveForUser(ctx context.Context, userID int) (*Subscription, error) {
	query := `
		SELECT id, user_id, plan, status, valid_from, valid_until, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
		  AND status = 'active'
		  AND valid_from <= NOW()
		  AND valid_until >= NOW()
		ORDER BY valid_until DESC
		LIMIT 1
	`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, userID)
	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *repository) HasUnlimitedAccess(ctx context.Context, userID int) (bool, error) {
	_, err := r.GetActiveForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Subscription, error) {
	query := `
		SELECT id, user_id, plan, status, valid_from, valid_until, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var subs []Subscription
	err := r.db.SelectContext(ctx, &subs, query, userID)
	if err != nil {
		return nil, err
	}

	return subs, nil
}
