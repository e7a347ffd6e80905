package services

import "context"

type Decision int

const (
	Declined Decision = iota
	Confirmed
)

// Prompt is what the user is asked before a destructive action.
type Prompt struct {
	Action   string `json:"action"`
	TicketID string `json:"ticketId"`
	Text     string `json:"text"`
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) (Decision, error)
}

type ConfirmFunc func(ctx context.Context, prompt Prompt) (Decision, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt Prompt) (Decision, error) {
	return f(ctx, prompt)
}

// Answer is a Confirmer for a decision the caller already has, e.g. a
// "confirm": true field in a request body.
func Answer(confirmed bool) Confirmer {
	return ConfirmFunc(func(context.Context, Prompt) (Decision, error) {
		if confirmed {
			return Confirmed, nil
		}
		return Declined, nil
	})
}
