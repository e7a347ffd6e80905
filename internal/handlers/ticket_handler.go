package handlers

import (
	"context"
	"errors"
	"net/http"

	"ticket-reconcile/internal/services"
	"ticket-reconcile/internal/status"
	"ticket-reconcile/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	view    *services.TicketView
	actions *services.ManualActions
}

func NewTicketHandler(view *services.TicketView, actions *services.ManualActions) *TicketHandler {
	return &TicketHandler{
		view:    view,
		actions: actions,
	}
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

// MyTickets - List the caller's tickets, with the banner for a ?payment= landing
func (h *TicketHandler) MyTickets(e *core.RequestEvent) error {
	sess, ok := sessionFrom(e)
	if !ok {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	ctx := e.Request.Context()

	banner := h.actions.Landing(ctx, sess, e.Request.URL.Query().Get("payment"))

	tickets, err := h.view.List(ctx, sess)
	if err != nil {
		return respondError(e, err, map[string]any{"banner": banner})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"tickets": tickets,
		"banner":  banner,
	})
}

// VerifyPayment - Re-check a ticket and explain where its payment stands
func (h *TicketHandler) VerifyPayment(e *core.RequestEvent) error {
	sess, ok := sessionFrom(e)
	if !ok {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	result, err := h.actions.VerifyPayment(e.Request.Context(), sess, e.Request.PathValue("ticketId"))
	if err != nil {
		return respondError(e, err, nil)
	}
	return e.JSON(http.StatusOK, result)
}

// RetryPayment - Replace a pending ticket with a fresh purchase
func (h *TicketHandler) RetryPayment(e *core.RequestEvent) error {
	sess, ok := sessionFrom(e)
	if !ok {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req confirmRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	ctx := e.Request.Context()

	tickets, err := h.view.List(ctx, sess)
	if err != nil {
		return respondError(e, err, nil)
	}
	ticket := models.FindTicket(tickets, e.Request.PathValue("ticketId"))
	if ticket == nil {
		return respondError(e, status.ErrTicketNotFound, nil)
	}

	confirm, prompt := answerFrom(req)
	result, err := h.actions.RetryPayment(ctx, sess, ticket, confirm)
	if err != nil {
		if errors.Is(err, status.ErrNotConfirmed) {
			return askConfirmation(e, *prompt)
		}
		extra := map[string]any{}
		var retryErr *services.RetryError
		if errors.As(err, &retryErr) {
			extra["tickets"] = retryErr.Tickets
			extra["stage"] = retryErr.Stage
		}
		return respondError(e, err, extra)
	}
	return e.JSON(http.StatusCreated, result)
}

// CancelTicket - Cancel a ticket the user no longer wants
func (h *TicketHandler) CancelTicket(e *core.RequestEvent) error {
	sess, ok := sessionFrom(e)
	if !ok {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req confirmRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	ctx := e.Request.Context()

	confirm, prompt := answerFrom(req)
	if err := h.actions.CancelTicket(ctx, sess, e.Request.PathValue("ticketId"), confirm); err != nil {
		if errors.Is(err, status.ErrNotConfirmed) {
			return askConfirmation(e, *prompt)
		}
		return respondError(e, err, nil)
	}

	tickets, err := h.view.List(ctx, sess)
	if err != nil {
		// cancelled anyway, the list will catch up on the next read
		tickets = nil
	}
	return e.JSON(http.StatusOK, map[string]any{
		"message": "Ticket cancelled",
		"tickets": tickets,
	})
}

// answerFrom turns the request's confirm flag into a Confirmer and records
// the question so it can be sent back when the answer was no.
func answerFrom(req confirmRequest) (services.Confirmer, *services.Prompt) {
	prompt := &services.Prompt{}
	return services.ConfirmFunc(func(_ context.Context, p services.Prompt) (services.Decision, error) {
		*prompt = p
		if req.Confirm {
			return services.Confirmed, nil
		}
		return services.Declined, nil
	}), prompt
}

func askConfirmation(e *core.RequestEvent, prompt services.Prompt) error {
	return e.JSON(http.StatusPreconditionRequired, map[string]any{
		"status":  http.StatusPreconditionRequired,
		"message": prompt.Text,
		"action":  ActionConfirm,
		"prompt":  prompt,
	})
}

func pendingTicket(err error) string {
	var purchaseErr *services.PurchaseError
	if errors.As(err, &purchaseErr) && purchaseErr.Ticket != nil {
		return purchaseErr.Ticket.ID
	}
	var existingErr *services.ExistingTicketError
	if errors.As(err, &existingErr) {
		return existingErr.Ticket.ID
	}
	return ""
}
