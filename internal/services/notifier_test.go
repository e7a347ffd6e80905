package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserChannel(t *testing.T) {
	assert.Equal(t, "user-u-1", userChannel("u-1"))
}

func TestPubNubNotifier_SkipsWithoutRecipient(t *testing.T) {
	// a nil client would panic if Publish were reached
	n := NewPubNubNotifier(nil)

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), "", Notification{Type: "payment_reconciled"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() {
		n.Notify(ctx, "u-1", Notification{Type: "payment_reconciled"})
	})
}
