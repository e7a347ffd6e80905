package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ticket-reconcile/internal/services/backend"
	"ticket-reconcile/internal/store"
	"ticket-reconcile/models"
	"ticket-reconcile/monitoring"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CreateTicket(ctx context.Context, sess models.Session, eventID string) (*models.Ticket, error) {
	args := m.Called(ctx, sess, eventID)
	ticket, _ := args.Get(0).(*models.Ticket)
	return ticket, args.Error(1)
}

func (m *mockBackend) MyTickets(ctx context.Context, sess models.Session) ([]models.Ticket, error) {
	args := m.Called(ctx, sess)
	tickets, _ := args.Get(0).([]models.Ticket)
	return tickets, args.Error(1)
}

func (m *mockBackend) CancelTicket(ctx context.Context, sess models.Session, ticketID string) error {
	args := m.Called(ctx, sess, ticketID)
	return args.Error(0)
}

func (m *mockBackend) InitializePayment(ctx context.Context, sess models.Session, req backend.InitializeRequest) (*backend.PaymentInit, error) {
	args := m.Called(ctx, sess, req)
	init, _ := args.Get(0).(*backend.PaymentInit)
	return init, args.Error(1)
}

func (m *mockBackend) VerifyPayment(ctx context.Context, sess models.Session, reference string) (*backend.Verification, error) {
	args := m.Called(ctx, sess, reference)
	v, _ := args.Get(0).(*backend.Verification)
	return v, args.Error(1)
}

func (m *mockBackend) GetEvent(ctx context.Context, sess models.Session, eventID string) (*models.Event, error) {
	args := m.Called(ctx, sess, eventID)
	event, _ := args.Get(0).(*models.Event)
	return event, args.Error(1)
}

func (m *mockBackend) Profile(ctx context.Context, sess models.Session) (*models.User, error) {
	args := m.Called(ctx, sess)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, msg Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

type harness struct {
	backend    *mockBackend
	view       *TicketView
	locker     *store.MemoryLocker
	notifier   *recordingNotifier
	purchase   *PurchaseService
	reconciler *Reconciler
	actions    *ManualActions
	polls      int
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		backend:  &mockBackend{},
		locker:   store.NewMemoryLocker(),
		notifier: &recordingNotifier{},
	}
	monitor := monitoring.NewMonitor(nil)

	h.view = NewTicketView(h.backend, store.NewMemoryCache[[]models.Ticket](time.Minute))
	h.purchase = NewPurchaseService(h.backend, h.backend, h.view, h.locker, monitor)
	h.reconciler = NewReconciler(h.backend, h.view, h.locker, h.notifier, monitor, DefaultReconcilerConfig())
	h.reconciler.sleep = func(ctx context.Context, d time.Duration) error {
		h.polls++
		return ctx.Err()
	}
	h.actions = NewManualActions(h.backend, h.backend, h.view, h.purchase, h.locker, monitor)

	t.Cleanup(func() {
		h.backend.AssertExpectations(t)
	})
	return h
}

func testSession() models.Session {
	return models.Session{
		AccessToken: "token",
		SessionID:   "sess-1",
		User:        models.User{ID: "u-1", Email: "ada@example.com"},
	}
}

func upcomingEvent() *models.Event {
	return &models.Event{
		ID:          "e-1",
		Title:       "Lagos Jazz Night",
		StartTime:   time.Now().Add(48 * time.Hour),
		Capacity:    100,
		TicketsSold: 10,
		Price:       decimal.NewFromInt(500000),
	}
}

func ticketFor(id string, st models.TicketStatus, reference string) models.Ticket {
	event := upcomingEvent()
	t := models.Ticket{
		ID:      id,
		EventID: event.ID,
		Status:  st,
		Event: models.EventSummary{
			ID:        event.ID,
			Title:     event.Title,
			StartTime: event.StartTime,
			Price:     event.Price,
		},
	}
	if reference != "" {
		t.Payment = &models.Payment{ID: "p-" + id, GatewayReference: reference, Status: models.PaymentPending}
	}
	return t
}
