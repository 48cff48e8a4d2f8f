package subscription

import "context"

type Repository interface {
	Create(ctx context.Context, userID int, plan Plan) (*Subscription, error)
	GetActiveForUser(ctx context.Context, userID int) (*Subscription, error)
	HasUnlimitedAccess(ctx context.Context, userID int) (bool, error)
	ListByUser(ctx context.Context, userID int) ([]Subscription, error)
}
