package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"ticket-reconcile/internal/services/backend"
	"ticket-reconcile/internal/status"
	"ticket-reconcile/models"
)

// TicketStore is the ticketing side of the backend.
type TicketStore interface {
	CreateTicket(ctx context.Context, sess models.Session, eventID string) (*models.Ticket, error)
	MyTickets(ctx context.Context, sess models.Session) ([]models.Ticket, error)
	CancelTicket(ctx context.Context, sess models.Session, ticketID string) error
}

// PaymentGateway is the payment side of the backend, fronting the external gateway.
type PaymentGateway interface {
	InitializePayment(ctx context.Context, sess models.Session, req backend.InitializeRequest) (*backend.PaymentInit, error)
	VerifyPayment(ctx context.Context, sess models.Session, reference string) (*backend.Verification, error)
}

type EventStore interface {
	GetEvent(ctx context.Context, sess models.Session, eventID string) (*models.Event, error)
}

type ProfileSource interface {
	Profile(ctx context.Context, sess models.Session) (*models.User, error)
}

type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, value T) error
	Delete(ctx context.Context, key string) error
}

// Locker serializes purchase, retry and reconciliation for one user.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// sessionKey identifies the user behind a session for caches and locks.
func sessionKey(sess models.Session) string {
	if sess.User.ID != "" {
		return sess.User.ID
	}
	return tokenKey(sess.AccessToken)
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "tok_" + hex.EncodeToString(sum[:16])
}

// resultLabel buckets an error for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case status.IsPrecondition(err):
		return "precondition"
	case errors.Is(err, status.ErrOperationInProgress):
		return "busy"
	case errors.Is(err, status.ErrNotConfirmed):
		return "declined"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
