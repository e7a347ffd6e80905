package services

import (
	"context"
	"log/slog"

	"ticket-reconcile/models"
)

// TicketView is the client-held "my tickets" list. It is refetched after every
// mutating action and never patched for status fields only the backend sets.
// Removing a ticket the user cancelled is the one local edit allowed.
type TicketView struct {
	store TicketStore
	cache Cache[[]models.Ticket]
}

func NewTicketView(store TicketStore, cache Cache[[]models.Ticket]) *TicketView {
	return &TicketView{
		store: store,
		cache: cache,
	}
}

// List returns the cached snapshot, fetching it on a miss.
func (v *TicketView) List(ctx context.Context, sess models.Session) ([]models.Ticket, error) {
	tickets, ok, err := v.cache.Get(ctx, sessionKey(sess))
	if err != nil {
		slog.Warn("ticket view read failed", "user", sessionKey(sess), "error", err)
	}
	if ok {
		return tickets, nil
	}
	return v.Refresh(ctx, sess)
}

// Refresh always reads the backend and replaces the snapshot.
func (v *TicketView) Refresh(ctx context.Context, sess models.Session) ([]models.Ticket, error) {
	tickets, err := v.store.MyTickets(ctx, sess)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		// owner is gone, keep whatever was there
		return nil, ctx.Err()
	}
	if err := v.cache.Set(ctx, sessionKey(sess), tickets); err != nil {
		slog.Warn("ticket view write failed", "user", sessionKey(sess), "error", err)
	}
	return tickets, nil
}

func (v *TicketView) Invalidate(ctx context.Context, sess models.Session) {
	if err := v.cache.Delete(ctx, sessionKey(sess)); err != nil {
		slog.Warn("ticket view invalidate failed", "user", sessionKey(sess), "error", err)
	}
}

// Remove drops a ticket the user cancelled from the cached snapshot.
func (v *TicketView) Remove(ctx context.Context, sess models.Session, ticketID string) {
	key := sessionKey(sess)

	tickets, ok, err := v.cache.Get(ctx, key)
	if err != nil || !ok {
		return
	}
	if err := v.cache.Set(ctx, key, models.WithoutTicket(tickets, ticketID)); err != nil {
		slog.Warn("ticket view remove failed", "user", key, "ticket", ticketID, "error", err)
		v.Invalidate(ctx, sess)
	}
}

// Resync is the forced re-read after a partial failure. Errors only get logged:
// the caller is already reporting one.
func (v *TicketView) Resync(ctx context.Context, sess models.Session) []models.Ticket {
	v.Invalidate(ctx, sess)
	tickets, err := v.Refresh(ctx, sess)
	if err != nil {
		slog.Warn("ticket view resync failed", "user", sessionKey(sess), "error", err)
		return nil
	}
	return tickets
}
