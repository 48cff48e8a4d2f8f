package unlock

import (
	"context"
	"database/sql"
	"errors"

	"prepa/internal/ledger"
	"prepa/internal/logger"
	"prepa/internal/metrics"
)

// Notifier queues the purchase receipt after a paid unlock. Failures
// never fail the unlock itself.
type Notifier interface {
	UnlockReceipt(ctx context.Context, userID, paperID int, charged int64) error
}

type Service interface {
	// Unlock grants userID permanent access to paperID. Replays return
	// AlreadyUnlocked without any ledger movement. The
	// hasUnlimitedAccess flag is resolved by the caller.
	Unlock(ctx context.Context, userID, paperID int, cost int64, hasUnlimitedAccess bool) (*Result, error)
	ListByUser(ctx context.Context, userID int) ([]Record, error)
}

type service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository, notifier Notifier) Service {
	return &service{repo: repo, notifier: notifier}
}

func (s *service) Unlock(ctx context.Context, userID, paperID int, cost int64, hasUnlimitedAccess bool) (*Result, error) {
	existing, err := s.repo.Find(ctx, userID, paperID)
	if err == nil {
		metrics.RecordUnlock("replay")
		return &Result{Record: existing, AlreadyUnlocked: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if hasUnlimitedAccess {
		rec, err := s.repo.CreateFree(ctx, userID, paperID)
		if err != nil {
			if errors.Is(err, ErrAlreadyUnlocked) {
				return s.replay(ctx, userID, paperID)
			}
			return nil, err
		}
		metrics.RecordUnlock("subscription")
		return &Result{Record: rec}, nil
	}

	if cost <= 0 {
		return nil, ledger.ErrInvalidAmount
	}

	rec, err := s.repo.CreateWithDebit(ctx, userID, paperID, cost)
	if err != nil {
		if errors.Is(err, ErrAlreadyUnlocked) {
			return s.replay(ctx, userID, paperID)
		}
		return nil, err
	}

	metrics.RecordUnlock("paid")

	if s.notifier != nil {
		if err := s.notifier.UnlockReceipt(ctx, userID, paperID, cost); err != nil {
			logger.WithError(err).Error("failed to queue unlock receipt", "user_id", userID, "paper_id", paperID)
		}
	}

	return &Result{Record: rec, Charged: cost}, nil
}

// replay resolves the record that won a concurrent unlock race.
func (s *service) replay(ctx context.Context, userID, paperID int) (*Result, error) {
	rec, err := s.repo.Find(ctx, userID, paperID)
	if err != nil {
		return nil, err
	}
	metrics.RecordUnlock("replay")
	return &Result{Record: rec, AlreadyUnlocked: true}, nil
}

func (s *service) ListByUser(ctx context.Context, userID int) ([]Record, error) {
	return s.repo.ListByUser(ctx, userID)
}
