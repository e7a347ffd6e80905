package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ticket-reconcile/internal/status"
	"ticket-reconcile/models"
	"ticket-reconcile/monitoring"
)

type Guidance string

const (
	GuidanceConfirmed Guidance = "confirmed"
	GuidanceAdmitted  Guidance = "admitted"
	GuidanceCancelled Guidance = "cancelled"
	GuidanceWait      Guidance = "wait"
	GuidanceNotPaid   Guidance = "not-paid"
)

type VerifyResult struct {
	Ticket   *models.Ticket `json:"ticket"`
	Guidance Guidance       `json:"guidance"`
	Message  string         `json:"message"`
}

// RetryError is a retry that failed part way. Tickets is the re-synced list.
type RetryError struct {
	Stage   string
	Err     error
	Tickets []models.Ticket
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry payment: %s: %v", e.Stage, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

const (
	StageCancelPending = "cancel-pending"
	StagePurchase      = "purchase"
)

// ManualActions are the user-initiated recovery actions on the ticket list.
type ManualActions struct {
	tickets  TicketStore
	events   EventStore
	view     *TicketView
	purchase *PurchaseService
	locker   Locker
	monitor  *monitoring.Monitor
	now      func() time.Time
}

func NewManualActions(tickets TicketStore, events EventStore, view *TicketView, purchase *PurchaseService, locker Locker, monitor *monitoring.Monitor) *ManualActions {
	return &ManualActions{
		tickets:  tickets,
		events:   events,
		view:     view,
		purchase: purchase,
		locker:   locker,
		monitor:  monitor,
		now:      time.Now,
	}
}

// VerifyPayment re-reads the ticket list once and explains where ticketID stands.
func (a *ManualActions) VerifyPayment(ctx context.Context, sess models.Session, ticketID string) (result *VerifyResult, err error) {
	defer func() {
		a.monitor.TrackManualAction("verify", resultLabel(err))
	}()

	tickets, err := a.view.Refresh(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}

	ticket := models.FindTicket(tickets, ticketID)
	if ticket == nil {
		return nil, status.ErrTicketNotFound
	}

	result = &VerifyResult{Ticket: ticket}
	switch {
	case ticket.Status == models.TicketPaid:
		result.Guidance = GuidanceConfirmed
		result.Message = "Payment confirmed! Your ticket is ready."
	case ticket.Status == models.TicketScanned:
		result.Guidance = GuidanceAdmitted
		result.Message = "This ticket has already been used for entry."
	case ticket.Status == models.TicketCancelled:
		result.Guidance = GuidanceCancelled
		result.Message = "This ticket was cancelled. You can purchase a new one."
	case ticket.Payment != nil && ticket.Payment.Status == models.PaymentSuccess:
		result.Guidance = GuidanceWait
		result.Message = "Payment received. Your ticket is still being processed, please check again shortly."
	default:
		result.Guidance = GuidanceNotPaid
		result.Message = "Payment not completed yet. Retry the payment or cancel the ticket."
	}
	return result, nil
}

// RetryPayment replaces a PENDING ticket with a fresh purchase for the same
// event, after the user confirms.
func (a *ManualActions) RetryPayment(ctx context.Context, sess models.Session, ticket *models.Ticket, confirm Confirmer) (result *PurchaseResult, err error) {
	defer func() {
		a.monitor.TrackManualAction("retry", resultLabel(err))
	}()

	if ticket.Status != models.TicketPending {
		return nil, status.ErrNotPending
	}
	if sess.User.Email == "" {
		return nil, status.ErrMissingEmail
	}

	decision, err := confirm.Confirm(ctx, Prompt{
		Action:   "retry",
		TicketID: ticket.ID,
		Text:     fmt.Sprintf("Cancel your current pending ticket for %q and retry payment?", ticket.Event.Title),
	})
	if err != nil {
		return nil, err
	}
	if decision != Confirmed {
		return nil, status.ErrNotConfirmed
	}

	release, err := a.locker.Acquire(ctx, sessionKey(sess))
	if err != nil {
		return nil, err
	}
	defer release()

	// the listing the caller picked from may predate a webhook
	tickets, err := a.view.Refresh(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("retry payment: %w", err)
	}
	current := models.FindTicket(tickets, ticket.ID)
	if current == nil || current.Status != models.TicketPending {
		return nil, status.ErrNotPending
	}
	if current.Payment != nil && current.Payment.Status == models.PaymentSuccess {
		return nil, status.ErrPaymentReceived
	}
	ticket = current

	err = a.tickets.CancelTicket(ctx, sess, ticket.ID)
	if err != nil && !errors.Is(err, status.ErrAlreadyCancelled) {
		return nil, a.retryFailed(ctx, sess, StageCancelPending, err)
	}
	a.view.Invalidate(ctx, sess)

	event, err := a.events.GetEvent(ctx, sess, ticket.EventID)
	if err != nil {
		slog.Warn("event lookup failed, using ticket summary", "event", ticket.EventID, "error", err)
		summary := ticket.Event.Event()
		if summary.ID == "" {
			summary.ID = ticket.EventID
		}
		event = &summary
	}

	result, err = a.purchase.purchase(ctx, sess, event)
	if err != nil {
		return nil, a.retryFailed(ctx, sess, StagePurchase, err)
	}
	return result, nil
}

func (a *ManualActions) retryFailed(ctx context.Context, sess models.Session, stage string, err error) error {
	slog.Warn("retry payment failed", "stage", stage, "error", err)
	return &RetryError{
		Stage:   stage,
		Err:     err,
		Tickets: a.view.Resync(context.WithoutCancel(ctx), sess),
	}
}

// CancelTicket cancels ticketID after the user confirms. Cancelling a ticket
// that is already cancelled or gone succeeds.
func (a *ManualActions) CancelTicket(ctx context.Context, sess models.Session, ticketID string, confirm Confirmer) (err error) {
	defer func() {
		a.monitor.TrackManualAction("cancel", resultLabel(err))
	}()

	tickets, err := a.view.Refresh(ctx, sess)
	if err != nil {
		return fmt.Errorf("cancel ticket: %w", err)
	}

	ticket := models.FindTicket(tickets, ticketID)
	if ticket == nil || ticket.Status == models.TicketCancelled {
		return nil
	}
	if !ticket.Cancellable(a.now()) {
		return status.ErrNotCancellable
	}

	decision, err := confirm.Confirm(ctx, Prompt{
		Action:   "cancel",
		TicketID: ticket.ID,
		Text:     fmt.Sprintf("Cancel your ticket for %q? This action cannot be undone.", ticket.Event.Title),
	})
	if err != nil {
		return err
	}
	if decision != Confirmed {
		return status.ErrNotConfirmed
	}

	err = a.tickets.CancelTicket(ctx, sess, ticketID)
	switch {
	case err == nil, errors.Is(err, status.ErrAlreadyCancelled):
		a.view.Remove(ctx, sess, ticketID)
		slog.Info("ticket cancelled", "ticket", ticketID)
		return nil
	default:
		a.view.Resync(context.WithoutCancel(ctx), sess)
		return fmt.Errorf("cancel ticket: %w", err)
	}
}

const (
	BannerPaymentSuccess       = "Payment successful! Your ticket is ready."
	BannerPaymentSuccessLagged = "Payment successful! Refreshing ticket status..."
	BannerPaymentFailed        = "Payment failed. No charges were made."
)

// Landing handles arrival on the ticket list with a ?payment= flag and
// returns the banner to show, if any.
func (a *ManualActions) Landing(ctx context.Context, sess models.Session, flag string) string {
	switch flag {
	case "success":
		if _, err := a.view.Refresh(ctx, sess); err != nil {
			slog.Warn("ticket refresh after payment failed", "error", err)
			return BannerPaymentSuccessLagged
		}
		return BannerPaymentSuccess
	case "failed":
		return BannerPaymentFailed
	default:
		return ""
	}
}
