package models

import (
	"time"
)

type ReconcileState string

const (
	ReconcilePending    ReconcileState = "pending"
	ReconcilePaid       ReconcileState = "resolved-paid"
	ReconcileUnresolved ReconcileState = "resolved-unresolved"
	ReconcileFailed     ReconcileState = "failed"
)

// ReconciliationAttempt lives only for one return-path run and is never persisted.
type ReconciliationAttempt struct {
	Reference    string         `json:"reference"`
	AttemptsMade int            `json:"attemptsMade"`
	MaxAttempts  int            `json:"maxAttempts"`
	Interval     time.Duration  `json:"interval"`
	Outcome      ReconcileState `json:"outcome"`
}

func (a *ReconciliationAttempt) Exhausted() bool {
	return a.AttemptsMade >= a.MaxAttempts
}
