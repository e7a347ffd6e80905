package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ticket-reconcile/internal/services/backend"
	"ticket-reconcile/internal/status"
	"ticket-reconcile/models"
	"ticket-reconcile/monitoring"
)

const (
	StageCreateTicket      = "create-ticket"
	StageInitializePayment = "initialize-payment"
)

type PurchaseResult struct {
	Ticket           *models.Ticket `json:"ticket"`
	AuthorizationURL string         `json:"authorizationUrl"`
	Reference        string         `json:"reference"`
	PaymentID        string         `json:"paymentId"`
	Amount           int64          `json:"amount"`
}

// ExistingTicketError means the user already holds a live ticket for the event.
type ExistingTicketError struct {
	Ticket *models.Ticket
	Err    error
}

func (e *ExistingTicketError) Error() string {
	return fmt.Sprintf("%v (ticket %s)", e.Err, e.Ticket.ID)
}

func (e *ExistingTicketError) Unwrap() error {
	return e.Err
}

// PurchaseError is a failure after the purchase reached the backend. Ticket
// is set when a PENDING ticket was left behind.
type PurchaseError struct {
	Stage  string
	Ticket *models.Ticket
	Err    error
}

func (e *PurchaseError) Error() string {
	return fmt.Sprintf("purchase: %s: %v", e.Stage, e.Err)
}

func (e *PurchaseError) Unwrap() error {
	return e.Err
}

type PurchaseService struct {
	tickets  TicketStore
	payments PaymentGateway
	view     *TicketView
	locker   Locker
	monitor  *monitoring.Monitor
	now      func() time.Time
}

func NewPurchaseService(tickets TicketStore, payments PaymentGateway, view *TicketView, locker Locker, monitor *monitoring.Monitor) *PurchaseService {
	return &PurchaseService{
		tickets:  tickets,
		payments: payments,
		view:     view,
		locker:   locker,
		monitor:  monitor,
		now:      time.Now,
	}
}

// Purchase creates a PENDING ticket for event and opens a payment for it. The
// caller sends the user agent to AuthorizationURL.
func (s *PurchaseService) Purchase(ctx context.Context, sess models.Session, event *models.Event) (*PurchaseResult, error) {
	release, err := s.locker.Acquire(ctx, sessionKey(sess))
	if err != nil {
		s.monitor.TrackPurchase(resultLabel(err))
		return nil, err
	}
	defer release()

	return s.purchase(ctx, sess, event)
}

// purchase runs with the user's operation lock held.
func (s *PurchaseService) purchase(ctx context.Context, sess models.Session, event *models.Event) (result *PurchaseResult, err error) {
	defer func() {
		s.monitor.TrackPurchase(resultLabel(err))
	}()

	if err := s.checkExisting(ctx, sess, event.ID); err != nil {
		return nil, err
	}
	if event.SoldOut() {
		return nil, status.ErrSoldOut
	}
	if event.Started(s.now()) {
		return nil, status.ErrEventEnded
	}
	if sess.User.Email == "" {
		return nil, status.ErrMissingEmail
	}

	// from here on the backend has been touched
	defer s.view.Invalidate(context.WithoutCancel(ctx), sess)

	ticket, err := s.tickets.CreateTicket(ctx, sess, event.ID)
	if err != nil {
		return nil, &PurchaseError{Stage: StageCreateTicket, Err: err}
	}

	amount := models.MinorUnits(event.Price)
	init, err := s.payments.InitializePayment(ctx, sess, backend.InitializeRequest{
		TicketID: ticket.ID,
		Email:    sess.User.Email,
		Amount:   amount,
	})
	if err != nil {
		slog.Warn("payment initialization failed, pending ticket left in place",
			"ticket", ticket.ID, "event", event.ID, "error", err)
		return nil, &PurchaseError{Stage: StageInitializePayment, Ticket: ticket, Err: err}
	}

	slog.Info("purchase initiated",
		"ticket", ticket.ID,
		"event", event.ID,
		"reference", init.Reference,
		"amount", amount,
	)

	return &PurchaseResult{
		Ticket:           ticket,
		AuthorizationURL: init.AuthorizationURL,
		Reference:        init.Reference,
		PaymentID:        init.PaymentID,
		Amount:           amount,
	}, nil
}

func (s *PurchaseService) checkExisting(ctx context.Context, sess models.Session, eventID string) error {
	tickets, err := s.view.Refresh(ctx, sess)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// the backend rejects duplicates anyway
		slog.Warn("could not check existing tickets", "event", eventID, "error", err)
		return nil
	}

	existing := models.ActiveTicketFor(tickets, eventID)
	if existing == nil {
		return nil
	}
	if existing.Status == models.TicketPending {
		return &ExistingTicketError{Ticket: existing, Err: status.ErrPaymentInProgress}
	}
	return &ExistingTicketError{Ticket: existing, Err: status.ErrAlreadyOwned}
}
