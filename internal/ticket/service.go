package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"prepa/internal/logger"
	"prepa/internal/metrics"
)

var ErrValidation = errors.New("invalid ticket request")

// Notifier delivers lifecycle notifications to the ticket owner.
// Delivery failures never fail the transition itself.
type Notifier interface {
	TicketFulfilled(ctx context.Context, t *Ticket) error
	TicketRefunded(ctx context.Context, t *Ticket) error
}

// AccessGranter unlocks the fulfilling paper for the ticket owner
// without charging again. The hold kept on the ticket is the payment.
type AccessGranter interface {
	GrantAccess(ctx context.Context, userID, paperID int) error
}

type Service interface {
	// Create opens a pending ticket and holds the configured amount of
	// credits from the user's account.
	Create(ctx context.Context, userID int, matiere string, year int, serie *string) (*Ticket, error)

	GetForUser(ctx context.Context, ticketID, userID int) (*Ticket, error)

	// Fulfill attaches a paper to a pending ticket and keeps the hold
	// as payment.
	Fulfill(ctx context.Context, ticketID, paperID int) (*Ticket, error)

	// Refund closes a pending ticket and credits the hold back.
	Refund(ctx context.Context, ticketID int, comment string) (*Ticket, error)

	// ExpireStale closes every pending ticket older than window and
	// releases its hold. Tickets are processed independently so one
	// failure never blocks the rest of the run.
	ExpireStale(ctx context.Context, now time.Time, window time.Duration) (*SweepReport, error)

	ListByUser(ctx context.Context, userID int) ([]Ticket, error)
	ListByStatus(ctx context.Context, status Status) ([]Ticket, error)
}

type service struct {
	repo        Repository
	notifier    Notifier
	access      AccessGranter
	holdCredits int64
}

func NewService(repo Repository, notifier Notifier, access AccessGranter, holdCredits int64) Service {
	return &service{
		repo:        repo,
		notifier:    notifier,
		access:      access,
		holdCredits: holdCredits,
	}
}

func (s *service) Create(ctx context.Context, userID int, matiere string, year int, serie *string) (*Ticket, error) {
	matiere = strings.TrimSpace(matiere)
	if matiere == "" {
		return nil, fmt.Errorf("%w: matiere is required", ErrValidation)
	}
	if year < 1990 || year > time.Now().Year()+1 {
		return nil, fmt.Errorf("%w: year %d is out of range", ErrValidation, year)
	}

	t, err := s.repo.CreateWithHold(ctx, userID, matiere, year, serie, s.holdCredits)
	if err != nil {
		return nil, err
	}

	metrics.RecordTicketCreated()
	logger.Info("ticket created", "ticket_id", t.ID, "user_id", userID, "hold", s.holdCredits)
	return t, nil
}

func (s *service) GetForUser(ctx context.Context, ticketID, userID int) (*Ticket, error) {
	t, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

func (s *service) Fulfill(ctx context.Context, ticketID, paperID int) (*Ticket, error) {
	t, err := s.repo.Fulfill(ctx, ticketID, paperID)
	if err != nil {
		return nil, err
	}

	metrics.RecordTicketTransition(string(StatusFulfilled))
	logger.Info("ticket fulfilled", "ticket_id", t.ID, "paper_id", paperID)

	if s.access != nil {
		if err := s.access.GrantAccess(ctx, t.UserID, paperID); err != nil {
			logger.WithError(err).Error("failed to unlock fulfilled paper", "ticket_id", t.ID, "paper_id", paperID)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.TicketFulfilled(ctx, t); err != nil {
			logger.WithError(err).Error("failed to queue fulfillment notification", "ticket_id", t.ID)
		}
	}

	return t, nil
}

func (s *service) Refund(ctx context.Context, ticketID int, comment string) (*Ticket, error) {
	t, err := s.repo.Close(ctx, ticketID, StatusRefunded, &comment)
	if err != nil {
		return nil, err
	}

	metrics.RecordTicketTransition(string(StatusRefunded))
	logger.Info("ticket refunded", "ticket_id", t.ID, "hold", t.HoldAmount)

	if s.notifier != nil {
		if err := s.notifier.TicketRefunded(ctx, t); err != nil {
			logger.WithError(err).Error("failed to queue refund notification", "ticket_id", t.ID)
		}
	}

	return t, nil
}

func (s *service) ExpireStale(ctx context.Context, now time.Time, window time.Duration) (*SweepReport, error) {
	cutoff := now.Add(-window)
	stale, err := s.repo.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Scanned: len(stale)}
	for _, t := range stale {
		_, err := s.repo.Close(ctx, t.ID, StatusExpired, nil)
		if err != nil {
			if errors.Is(err, ErrTicketTerminal) || errors.Is(err, ErrTicketNotFound) {
				// A concurrent fulfillment or refund won the status race.
				// The ticket needs no further work but the loss still
				// counts as a failure in the report.
				logger.Info("sweep lost ticket to a concurrent transition", "ticket_id", t.ID)
			} else {
				logger.WithError(err).Error("sweep failed to expire ticket", "ticket_id", t.ID)
			}
			report.Failures = append(report.Failures, t.ID)
			continue
		}

		report.Refunded++
		metrics.RecordTicketTransition(string(StatusExpired))
	}

	metrics.RecordSweepResult(report.Refunded, len(report.Failures))
	logger.Info("expiry sweep finished",
		"scanned", report.Scanned,
		"refunded", report.Refunded,
		"failed", len(report.Failures),
	)

	return report, nil
}

func (s *service) ListByUser(ctx context.Context, userID int) ([]Ticket, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) ListByStatus(ctx context.Context, status Status) ([]Ticket, error) {
	return s.repo.ListByStatus(ctx, status)
}
