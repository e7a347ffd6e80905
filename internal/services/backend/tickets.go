package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"ticket-reconcile/internal/status"
	"ticket-reconcile/models"
)

// CreateTicket creates a PENDING ticket for eventID. A live ticket already
// held by the caller comes back as status.ErrConflict.
func (c *Client) CreateTicket(ctx context.Context, sess models.Session, eventID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := c.do(ctx, sess, request{
		op:     "createTicket",
		method: http.MethodPost,
		path:   "/tickets",
		body:   map[string]string{"eventId": eventID},
	}, &ticket)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// MyTickets returns the caller's full ticket snapshot.
func (c *Client) MyTickets(ctx context.Context, sess models.Session) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := c.do(ctx, sess, request{
		op:     "myTickets",
		method: http.MethodGet,
		path:   "/tickets/my-tickets",
	}, &tickets)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}

// CancelTicket cancels a ticket. A ticket that is already gone or cancelled is
// reported as status.ErrAlreadyCancelled so callers can treat it as done. Any
// other conflict (e.g. the event started) stays status.ErrConflict.
func (c *Client) CancelTicket(ctx context.Context, sess models.Session, ticketID string) error {
	err := c.do(ctx, sess, request{
		op:     "cancelTicket",
		method: http.MethodDelete,
		path:   "/tickets/" + url.PathEscape(ticketID),
	}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, status.ErrNotFound) ||
		(errors.Is(err, status.ErrConflict) && alreadyCancelled(apiErr.Message)) {
		apiErr.Err = status.ErrAlreadyCancelled
	}
	return err
}

func alreadyCancelled(message string) bool {
	msg := strings.ToLower(message)
	return strings.Contains(msg, "already cancelled") || strings.Contains(msg, "already canceled")
}
