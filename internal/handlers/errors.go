package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"

	"ticket-reconcile/internal/services"
	"ticket-reconcile/internal/services/backend"
	"ticket-reconcile/internal/status"

	"github.com/pocketbase/pocketbase/core"
)

// Recovery actions offered with every failure.
const (
	ActionLogin     = "login"
	ActionBrowse    = "browse"
	ActionMyTickets = "my-tickets"
	ActionVerify    = "verify"
	ActionRetry     = "retry"
	ActionWait      = "wait"
	ActionConfirm   = "confirm"
)

type failure struct {
	status  int
	message string
	action  string
}

func classify(err error) failure {
	var (
		retryErr    *services.RetryError
		purchaseErr *services.PurchaseError
	)

	switch {
	case errors.As(err, &retryErr):
		return failure{http.StatusBadGateway,
			fmt.Sprintf("Retry failed: %s. Your tickets have been refreshed.", backend.Reason(retryErr.Err)),
			ActionRetry}
	case errors.As(err, &purchaseErr) && purchaseErr.Stage == services.StageInitializePayment:
		return failure{http.StatusBadGateway,
			"Payment could not be started. Your ticket is reserved as pending, retry the payment from My Tickets.",
			ActionRetry}

	case errors.Is(err, status.ErrUnauthorized):
		return failure{http.StatusUnauthorized, "Your session has expired. Please log in again.", ActionLogin}
	case errors.Is(err, status.ErrMissingEmail):
		return failure{http.StatusBadRequest, "Your account needs an email address to receive the payment receipt.", ActionLogin}
	case errors.Is(err, status.ErrAlreadyOwned):
		return failure{http.StatusConflict, "You already have a ticket for this event.", ActionMyTickets}
	case errors.Is(err, status.ErrPaymentInProgress):
		return failure{http.StatusConflict, "You have a pending ticket for this event. Verify or retry its payment from My Tickets.", ActionVerify}
	case errors.Is(err, status.ErrSoldOut):
		return failure{http.StatusConflict, "This event is sold out.", ActionBrowse}
	case errors.Is(err, status.ErrEventEnded):
		return failure{http.StatusConflict, "This event has already started.", ActionBrowse}
	case errors.Is(err, status.ErrOperationInProgress):
		return failure{http.StatusConflict, "Another payment action is still running. Please wait a moment.", ActionWait}
	case errors.Is(err, status.ErrConflict):
		return failure{http.StatusConflict, backend.Reason(err), ActionMyTickets}
	case errors.Is(err, status.ErrTicketNotFound), errors.Is(err, status.ErrNotFound):
		return failure{http.StatusNotFound, "We could not find that ticket or event.", ActionMyTickets}
	case errors.Is(err, status.ErrNotCancellable):
		return failure{http.StatusBadRequest, "This ticket can no longer be cancelled.", ActionMyTickets}
	case errors.Is(err, status.ErrPaymentReceived):
		return failure{http.StatusConflict, "Your payment was received and the ticket is still being confirmed. Please check again shortly.", ActionVerify}
	case errors.Is(err, status.ErrNotPending):
		return failure{http.StatusBadRequest, "Only pending tickets can be retried.", ActionVerify}
	case errors.Is(err, status.ErrBackendUnavailable):
		return failure{http.StatusServiceUnavailable, "The ticketing service is unavailable. Please try again shortly.", ActionRetry}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return failure{http.StatusRequestTimeout, "The request was cancelled before it finished.", ActionMyTickets}
	default:
		return failure{http.StatusInternalServerError, "Something went wrong: " + backend.Reason(err), ActionRetry}
	}
}

// respondError writes err as a human readable message with a recovery action.
func respondError(e *core.RequestEvent, err error, extra map[string]any) error {
	f := classify(err)
	if f.status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", e.Request.URL.Path, "status", f.status, "error", err)
	} else {
		slog.Info("request rejected", "path", e.Request.URL.Path, "status", f.status, "error", err)
	}

	body := map[string]any{
		"status":  f.status,
		"message": f.message,
		"action":  f.action,
	}
	maps.Copy(body, extra)
	return e.JSON(f.status, body)
}
