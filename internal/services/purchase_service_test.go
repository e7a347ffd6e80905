package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"ticket-reconcile/internal/services/backend"
	"ticket-reconcile/internal/status"
	"ticket-reconcile/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPurchase_CreatesTicketAndInitializesPayment(t *testing.T) {
	h := newHarness(t)
	sess := testSession()
	pending := ticketFor("t-new", models.TicketPending, "")

	h.backend.On("MyTickets", mock.Anything, sess).Return([]models.Ticket{}, nil).Once()
	h.backend.On("CreateTicket", mock.Anything, sess, "e-1").Return(&pending, nil).Once()
	h.backend.On("InitializePayment", mock.Anything, sess, backend.InitializeRequest{
		TicketID: "t-new",
		Email:    "ada@example.com",
		Amount:   50000000,
	}).Return(&backend.PaymentInit{
		AuthorizationURL: "https://checkout.example/abc",
		Reference:        "ref-abc",
		PaymentID:        "p-1",
	}, nil).Once()

	result, err := h.purchase.Purchase(context.Background(), sess, upcomingEvent())
	require.NoError(t, err)

	assert.Equal(t, "t-new", result.Ticket.ID)
	assert.Equal(t, "https://checkout.example/abc", result.AuthorizationURL)
	assert.Equal(t, "ref-abc", result.Reference)
	assert.Equal(t, "p-1", result.PaymentID)
	assert.Equal(t, int64(50000000), result.Amount)
}

func TestPurchase_ExistingTicketBlocks(t *testing.T) {
	tests := []struct {
		name     string
		status   models.TicketStatus
		expected error
	}{
		{"paid", models.TicketPaid, status.ErrAlreadyOwned},
		{"scanned", models.TicketScanned, status.ErrAlreadyOwned},
		{"pending", models.TicketPending, status.ErrPaymentInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			existing := ticketFor("t-1", tt.status, "ref-1")
			h.backend.On("MyTickets", mock.Anything, mock.Anything).Return([]models.Ticket{existing}, nil).Once()

			_, err := h.purchase.Purchase(context.Background(), testSession(), upcomingEvent())

			assert.ErrorIs(t, err, tt.expected)
			assert.True(t, status.IsPrecondition(err))
			var existingErr *ExistingTicketError
			require.ErrorAs(t, err, &existingErr)
			assert.Equal(t, "t-1", existingErr.Ticket.ID)
			h.backend.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPurchase_CancelledTicketDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	old := ticketFor("t-old", models.TicketCancelled, "ref-old")
	pending := ticketFor("t-new", models.TicketPending, "")

	h.backend.On("MyTickets", mock.Anything, mock.Anything).Return([]models.Ticket{old}, nil).Once()
	h.backend.On("CreateTicket", mock.Anything, mock.Anything, "e-1").Return(&pending, nil).Once()
	h.backend.On("InitializePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&backend.PaymentInit{Reference: "ref-new"}, nil).Once()

	result, err := h.purchase.Purchase(context.Background(), testSession(), upcomingEvent())
	require.NoError(t, err)
	assert.Equal(t, "ref-new", result.Reference)
}

func TestPurchase_EventPreconditions(t *testing.T) {
	soldOut := upcomingEvent()
	soldOut.TicketsSold = soldOut.Capacity

	ended := upcomingEvent()
	ended.StartTime = time.Now().Add(-time.Hour)

	tests := []struct {
		name     string
		event    *models.Event
		expected error
	}{
		{"sold out", soldOut, status.ErrSoldOut},
		{"already started", ended, status.ErrEventEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.On("MyTickets", mock.Anything, mock.Anything).Return([]models.Ticket{}, nil).Once()

			_, err := h.purchase.Purchase(context.Background(), testSession(), tt.event)

			assert.ErrorIs(t, err, tt.expected)
			h.backend.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPurchase_ListFailureDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	pending := ticketFor("t-new", models.TicketPending, "")

	h.backend.On("MyTickets", mock.Anything, mock.Anything).Return(nil, status.ErrBackendUnavailable).Once()
	h.backend.On("CreateTicket", mock.Anything, mock.Anything, "e-1").Return(&pending, nil).Once()
	h.backend.On("InitializePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&backend.PaymentInit{Reference: "ref-new"}, nil).Once()

	_, err := h.purchase.Purchase(context.Background(), testSession(), upcomingEvent())
	assert.NoError(t, err)
}

func TestPurchase_CreateConflictSurfaces(t *testing.T) {
	h := newHarness(t)
	conflict := &backend.APIError{Op: "createTicket", StatusCode: 409, Message: "You already have a ticket", Err: status.ErrConflict}

	h.backend.On("MyTickets", mock.Anything, mock.Anything).Return([]models.Ticket{}, nil).Once()
	h.backend.On("CreateTicket", mock.Anything, mock.Anything, "e-1").Return(nil, conflict).Once()

	_, err := h.purchase.Purchase(context.Background(), testSession(), upcomingEvent())

	var purchaseErr *PurchaseError
	require.ErrorAs(t, err, &purchaseErr)
	assert.Equal(t, StageCreateTicket, purchaseErr.Stage)
	assert.Nil(t, purchaseErr.Ticket)
	assert.ErrorIs(t, err, status.ErrConflict)
}

func TestPurchase_InitFailureLeavesPendingTicket(t *testing.T) {
	h := newHarness(t)
	pending := ticketFor("t-new", models.TicketPending, "")

	h.backend.On("MyTickets", mock.Anything, mock.Anything).Return([]models.Ticket{}, nil).Once()
	h.backend.On("CreateTicket", mock.Anything, mock.Anything, "e-1").Return(&pending, nil).Once()
	h.backend.On("InitializePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("gateway down")).Once()

	_, err := h.purchase.Purchase(context.Background(), testSession(), upcomingEvent())

	var purchaseErr *PurchaseError
	require.ErrorAs(t, err, &purchaseErr)
	assert.Equal(t, StageInitializePayment, purchaseErr.Stage)
	require.NotNil(t, purchaseErr.Ticket)
	assert.Equal(t, "t-new", purchaseErr.Ticket.ID)
	h.backend.AssertNotCalled(t, "CancelTicket", mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchase_RequiresEmail(t *testing.T) {
	h := newHarness(t)
	sess := testSession()
	sess.User.Email = ""

	h.backend.On("MyTickets", mock.Anything, mock.Anything).Return([]models.Ticket{}, nil).Once()

	_, err := h.purchase.Purchase(context.Background(), sess, upcomingEvent())
	assert.ErrorIs(t, err, status.ErrMissingEmail)
}

func TestPurchase_OneFlowPerUser(t *testing.T) {
	h := newHarness(t)
	sess := testSession()

	release, err := h.locker.Acquire(context.Background(), sessionKey(sess))
	require.NoError(t, err)
	defer release()

	_, err = h.purchase.Purchase(context.Background(), sess, upcomingEvent())
	assert.ErrorIs(t, err, status.ErrOperationInProgress)
}
