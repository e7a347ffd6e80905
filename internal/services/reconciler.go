package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ticket-reconcile/internal/services/backend"
	"ticket-reconcile/internal/status"
	"ticket-reconcile/models"
	"ticket-reconcile/monitoring"
)

const (
	MyTicketsPath      = "/my-tickets"
	PaymentSuccessPath = "/my-tickets?payment=success"
	PaymentFailedPath  = "/my-tickets?payment=failed"
)

type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomePending OutcomeKind = "pending"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome is the terminal state of one return-path reconciliation.
type Outcome struct {
	Kind      OutcomeKind                  `json:"kind"`
	Message   string                       `json:"message"`
	Detail    string                       `json:"detail"`
	Reason    string                       `json:"reason,omitempty"`
	Reference string                       `json:"reference,omitempty"`
	Ticket    *models.Ticket               `json:"ticket,omitempty"`
	Attempt   models.ReconciliationAttempt `json:"attempt"`
	Redirect  string                       `json:"redirect"`

	// SettleDelay is how long the outcome stays on screen before Redirect.
	SettleDelay time.Duration `json:"-"`
}

type ReconcilerConfig struct {
	PollInterval time.Duration
	MaxAttempts  int

	SuccessDelay time.Duration
	PendingDelay time.Duration
	FailureDelay time.Duration
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		PollInterval: time.Second,
		MaxAttempts:  15,
		SuccessDelay: 2 * time.Second,
		PendingDelay: 3 * time.Second,
		FailureDelay: 5 * time.Second,
	}
}

type Reconciler struct {
	payments PaymentGateway
	view     *TicketView
	locker   Locker
	notifier Notifier
	monitor  *monitoring.Monitor
	cfg      ReconcilerConfig

	sleep func(ctx context.Context, d time.Duration) error
}

func NewReconciler(payments PaymentGateway, view *TicketView, locker Locker, notifier Notifier, monitor *monitoring.Monitor, cfg ReconcilerConfig) *Reconciler {
	defaults := DefaultReconcilerConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.PollInterval < 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}

	return &Reconciler{
		payments: payments,
		view:     view,
		locker:   locker,
		notifier: notifier,
		monitor:  monitor,
		cfg:      cfg,
		sleep:    sleepContext,
	}
}

// ResolveReference picks the payment reference from the return-path query.
// trxref is the gateway's legacy alias.
func ResolveReference(reference, trxref string) string {
	if reference != "" {
		return reference
	}
	return trxref
}

// Reconcile settles what happened to the payment identified by reference:
// the gateway is asked first, then the ticket list is polled until the
// backend records the ticket as PAID or the attempts run out.
func (r *Reconciler) Reconcile(ctx context.Context, sess models.Session, reference string) (*Outcome, error) {
	if reference == "" {
		outcome := r.missingReference()
		r.monitor.TrackReconcile(string(outcome.Kind), 0, 0)
		return outcome, nil
	}

	release, err := r.locker.Acquire(ctx, sessionKey(sess))
	if err != nil {
		return nil, err
	}
	defer release()

	started := time.Now()
	outcome, err := r.reconcile(ctx, sess, reference)
	if err != nil {
		slog.Info("reconciliation abandoned", "reference", reference, "error", err)
		return nil, err
	}

	r.monitor.TrackReconcile(string(outcome.Kind), outcome.Attempt.AttemptsMade, time.Since(started))
	r.notifier.Notify(ctx, sess.User.ID, Notification{
		Type:      "payment.reconciled",
		Reference: reference,
		Outcome:   string(outcome.Kind),
		TicketID:  ticketID(outcome.Ticket),
		Message:   outcome.Message,
	})
	return outcome, nil
}

func (r *Reconciler) reconcile(ctx context.Context, sess models.Session, reference string) (*Outcome, error) {
	attempt := models.ReconciliationAttempt{
		Reference:   reference,
		MaxAttempts: r.cfg.MaxAttempts,
		Interval:    r.cfg.PollInterval,
		Outcome:     models.ReconcilePending,
	}

	verification, err := r.payments.VerifyPayment(ctx, sess, reference)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err == nil && !verification.Succeeded() {
		err = &declinedError{message: verification.Message()}
	}
	if err != nil {
		slog.Warn("payment verification failed", "reference", reference, "error", err)
		r.view.Invalidate(context.WithoutCancel(ctx), sess)
		attempt.Outcome = models.ReconcileFailed
		return r.failed(attempt, err), nil
	}

	slog.Info("payment verified, waiting for ticket", "reference", reference)

	for !attempt.Exhausted() {
		if err := r.sleep(ctx, attempt.Interval); err != nil {
			return nil, err
		}
		attempt.AttemptsMade++

		tickets, err := r.view.Refresh(ctx, sess)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			slog.Warn("ticket poll failed",
				"reference", reference,
				"attempt", attempt.AttemptsMade,
				"error", err,
			)
			continue
		}

		if ticket := models.FindPaidByReference(tickets, reference); ticket != nil {
			attempt.Outcome = models.ReconcilePaid
			slog.Info("ticket confirmed", "reference", reference, "ticket", ticket.ID, "attempts", attempt.AttemptsMade)
			return &Outcome{
				Kind:        OutcomeSuccess,
				Message:     "Payment successful!",
				Detail:      "Your ticket is confirmed.",
				Reference:   reference,
				Ticket:      ticket,
				Attempt:     attempt,
				Redirect:    PaymentSuccessPath,
				SettleDelay: r.cfg.SuccessDelay,
			}, nil
		}
	}

	attempt.Outcome = models.ReconcileUnresolved
	slog.Warn("ticket not confirmed in time", "reference", reference, "attempts", attempt.AttemptsMade)
	return &Outcome{
		Kind:        OutcomePending,
		Message:     "Payment received",
		Detail:      "Your ticket is being processed. Check My Tickets in a moment.",
		Reference:   reference,
		Attempt:     attempt,
		Redirect:    PaymentSuccessPath,
		SettleDelay: r.cfg.PendingDelay,
	}, nil
}

func (r *Reconciler) missingReference() *Outcome {
	return &Outcome{
		Kind:    OutcomeFailed,
		Message: "Payment verification failed",
		Detail:  "Payment reference missing",
		Reason:  status.ErrMissingRef.Error(),
		Attempt: models.ReconciliationAttempt{
			MaxAttempts: r.cfg.MaxAttempts,
			Interval:    r.cfg.PollInterval,
			Outcome:     models.ReconcileFailed,
		},
		Redirect:    MyTicketsPath,
		SettleDelay: r.cfg.FailureDelay,
	}
}

func (r *Reconciler) failed(attempt models.ReconciliationAttempt, err error) *Outcome {
	reason := backend.Reason(err)
	return &Outcome{
		Kind:        OutcomeFailed,
		Message:     "Payment verification failed",
		Detail:      failureDetail(err, reason),
		Reason:      reason,
		Reference:   attempt.Reference,
		Attempt:     attempt,
		Redirect:    PaymentFailedPath,
		SettleDelay: r.cfg.FailureDelay,
	}
}

// declinedError is a verification the gateway answered with anything but success.
type declinedError struct {
	message string
}

func (e *declinedError) Error() string {
	if e.message == "" {
		return "Payment not successful"
	}
	return e.message
}

func (e *declinedError) Unwrap() error { return status.ErrFailedPayment }

func failureDetail(err error, reason string) string {
	switch {
	case errors.Is(err, status.ErrNotFound), strings.Contains(strings.ToLower(reason), "not found"):
		return "Payment not found. Please contact support with your payment reference."
	case errors.Is(err, status.ErrFailedPayment):
		return fmt.Sprintf("Payment was not successful: %s. No charges were made.", reason)
	default:
		return "Error: " + truncate(reason, 100)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func ticketID(t *models.Ticket) string {
	if t == nil {
		return ""
	}
	return t.ID
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
