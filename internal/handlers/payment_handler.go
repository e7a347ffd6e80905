package handlers

import (
	"net/http"
	"strconv"

	"ticket-reconcile/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PaymentHandler struct {
	events     services.EventStore
	purchase   *services.PurchaseService
	reconciler *services.Reconciler
}

func NewPaymentHandler(events services.EventStore, purchase *services.PurchaseService, reconciler *services.Reconciler) *PaymentHandler {
	return &PaymentHandler{
		events:     events,
		purchase:   purchase,
		reconciler: reconciler,
	}
}

// Purchase - Create a pending ticket and start its payment
func (h *PaymentHandler) Purchase(e *core.RequestEvent) error {
	sess, ok := sessionFrom(e)
	if !ok {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	ctx := e.Request.Context()

	event, err := h.events.GetEvent(ctx, sess, eventID)
	if err != nil {
		return respondError(e, err, nil)
	}

	result, err := h.purchase.Purchase(ctx, sess, event)
	if err != nil {
		extra := map[string]any{}
		if ticket := pendingTicket(err); ticket != "" {
			extra["ticketId"] = ticket
		}
		return respondError(e, err, extra)
	}

	if redirect, _ := strconv.ParseBool(e.Request.URL.Query().Get("redirect")); redirect {
		return e.Redirect(http.StatusSeeOther, result.AuthorizationURL)
	}
	return e.JSON(http.StatusCreated, result)
}

// PaymentCallback - Gateway return path, settles the payment reference
func (h *PaymentHandler) PaymentCallback(e *core.RequestEvent) error {
	sess, ok := sessionFrom(e)
	if !ok {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	query := e.Request.URL.Query()
	reference := services.ResolveReference(query.Get("reference"), query.Get("trxref"))

	// the request context ends when the user navigates away
	outcome, err := h.reconciler.Reconcile(e.Request.Context(), sess, reference)
	if err != nil {
		return respondError(e, err, map[string]any{"reference": reference})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"outcome":       outcome,
		"redirect":      outcome.Redirect,
		"settleSeconds": outcome.SettleSeconds(),
	})
}
