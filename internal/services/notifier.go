package services

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go"
)

// Notification is the best-effort push sent when a reconciliation settles.
// Clients must not depend on it; the ticket list stays the source of truth.
type Notification struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
	Outcome   string `json:"outcome"`
	TicketID  string `json:"ticketId,omitempty"`
	Message   string `json:"message"`
}

type Notifier interface {
	Notify(ctx context.Context, userID string, n Notification)
}

type PubNubNotifier struct {
	pubnub *pubnub.PubNub
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{pubnub: pn}
}

func userChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

func (n *PubNubNotifier) Notify(ctx context.Context, userID string, msg Notification) {
	if userID == "" || ctx.Err() != nil {
		return
	}

	_, _, err := n.pubnub.Publish().
		Channel(userChannel(userID)).
		Message(msg).
		Execute()
	if err != nil {
		slog.Warn("failed to publish notification", "user", userID, "type", msg.Type, "error", err)
		return
	}
	slog.Debug("notification published", "channel", userChannel(userID), "type", msg.Type)
}

type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string, Notification) {}
