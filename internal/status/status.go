package status

import "errors"

var (
	ErrFailedPayment   = errors.New("payment: payment failed")
	ErrPaymentReceived = errors.New("payment: payment already received, ticket is still being confirmed")
	ErrMissingRef      = errors.New("ref code: payment reference missing")

	// purchase preconditions, detected before any mutating call
	ErrSoldOut           = errors.New("purchase: event is sold out")
	ErrEventEnded        = errors.New("purchase: event has already started or ended")
	ErrAlreadyOwned      = errors.New("purchase: you already have a ticket for this event")
	ErrPaymentInProgress = errors.New("purchase: you have a pending ticket for this event, please complete payment")

	ErrTicketNotFound   = errors.New("ticket: ticket not found")
	ErrNotCancellable   = errors.New("ticket: ticket can no longer be cancelled")
	ErrAlreadyCancelled = errors.New("ticket: ticket already cancelled")
	ErrNotPending       = errors.New("ticket: only pending tickets can be retried")
	ErrNotConfirmed     = errors.New("action: not confirmed by user")

	ErrOperationInProgress = errors.New("session: another purchase or reconciliation is running")
	ErrUnauthorized        = errors.New("session: unauthorized")
	ErrMissingEmail        = errors.New("session: email required to start payment")

	ErrConflict           = errors.New("backend: conflict")
	ErrNotFound           = errors.New("backend: not found")
	ErrBackendUnavailable = errors.New("backend: unavailable")
)

// IsPrecondition reports whether err was raised before anything was created.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrSoldOut) ||
		errors.Is(err, ErrEventEnded) ||
		errors.Is(err, ErrAlreadyOwned) ||
		errors.Is(err, ErrPaymentInProgress)
}
