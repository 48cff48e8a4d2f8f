package server

import (
	"context"
	"errors"
	"fmt"

	"prepa/internal/catalog"
	"prepa/internal/email"
	"prepa/internal/ticket"
	"prepa/internal/unlock"
	"prepa/internal/user"
)

// ticketNotifier resolves the ticket owner and queues the matching
// lifecycle email.
type ticketNotifier struct {
	users   user.Repository
	catalog catalog.Repository
	email   *email.Service
}

func newTicketNotifier(users user.Repository, catalogRepo catalog.Repository, emailService *email.Service) ticket.Notifier {
	return &ticketNotifier{
		users:   users,
		catalog: catalogRepo,
		email:   emailService,
	}
}

func (n *ticketNotifier) TicketFulfilled(ctx context.Context, t *ticket.Ticket) error {
	owner, err := n.users.FindByID(ctx, t.UserID)
	if err != nil {
		return err
	}

	paperTitle := fmt.Sprintf("%s %d", t.Matiere, t.Year)
	if t.FulfilledPaperID != nil {
		if paper, err := n.catalog.GetPaperByID(ctx, *t.FulfilledPaperID); err == nil {
			paperTitle = paper.Title
		}
	}

	return n.email.SendTicketFulfilled(ctx, owner.Email, owner.Name, t.Matiere, t.Year, paperTitle)
}

func (n *ticketNotifier) TicketRefunded(ctx context.Context, t *ticket.Ticket) error {
	owner, err := n.users.FindByID(ctx, t.UserID)
	if err != nil {
		return err
	}

	reason := "the paper could not be found"
	if t.AdminComment != nil && *t.AdminComment != "" {
		reason = *t.AdminComment
	}

	return n.email.SendTicketRefunded(ctx, owner.Email, owner.Name, t.Matiere, t.Year, t.HoldAmount, reason)
}

// unlockNotifier queues the receipt for a paid unlock.
type unlockNotifier struct {
	users   user.Repository
	catalog catalog.Repository
	email   *email.Service
}

func newUnlockNotifier(users user.Repository, catalogRepo catalog.Repository, emailService *email.Service) unlock.Notifier {
	return &unlockNotifier{
		users:   users,
		catalog: catalogRepo,
		email:   emailService,
	}
}

func (n *unlockNotifier) UnlockReceipt(ctx context.Context, userID, paperID int, charged int64) error {
	owner, err := n.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	paper, err := n.catalog.GetPaperByID(ctx, paperID)
	if err != nil {
		return err
	}

	return n.email.SendUnlockReceipt(ctx, owner.Email, owner.Name, paper.Title, charged)
}

// accessGranter bridges ticket fulfillment to the unlock store. An
// existing unlock is not an error, the owner already has the paper.
type accessGranter struct {
	unlocks unlock.Repository
}

func newAccessGranter(unlocks unlock.Repository) ticket.AccessGranter {
	return &accessGranter{unlocks: unlocks}
}

func (g *accessGranter) GrantAccess(ctx context.Context, userID, paperID int) error {
	_, err := g.unlocks.CreateFree(ctx, userID, paperID)
	if errors.Is(err, unlock.ErrAlreadyUnlocked) {
		return nil
	}
	return err
}
