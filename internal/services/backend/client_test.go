package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ticket-reconcile/internal/status"
	"ticket-reconcile/models"
	"ticket-reconcile/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSession = models.Session{AccessToken: "token-1", SessionID: "sess-1"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api/v1/", 2*time.Second, nil)
}

func writeData(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

func TestClient_SendsCredentialOnEveryCall(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, "sess-1", r.Header.Get("X-Session-Id"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		assert.Equal(t, "/api/v1/tickets/my-tickets", r.URL.Path)
		writeData(w, http.StatusOK, []map[string]any{
			{"id": "t-1", "eventId": "e-1", "status": "PENDING"},
		})
	})

	tickets, err := client.MyTickets(context.Background(), testSession)

	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, models.TicketPending, tickets[0].Status)
}

func TestClient_MyTickets_EmptyData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, nil)
	})

	tickets, err := client.MyTickets(context.Background(), testSession)

	require.NoError(t, err)
	assert.NotNil(t, tickets)
	assert.Empty(t, tickets)
}

func TestClient_CreateTicket(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "e-1", body["eventId"])

		writeData(w, http.StatusCreated, map[string]any{"id": "t-9", "eventId": "e-1", "status": "PENDING"})
	})

	ticket, err := client.CreateTicket(context.Background(), testSession, "e-1")

	require.NoError(t, err)
	assert.Equal(t, "t-9", ticket.ID)
}

func TestClient_CreateTicket_Conflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, "You already have a ticket for this event")
	})

	_, err := client.CreateTicket(context.Background(), testSession, "e-1")

	assert.ErrorIs(t, err, status.ErrConflict)
	assert.Equal(t, "You already have a ticket for this event", Reason(err))
}

func TestClient_CancelTicket_AlreadyGoneIsReported(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusConflict} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/api/v1/tickets/t-1", r.URL.Path)
			writeError(w, code, "ticket already cancelled")
		})

		err := client.CancelTicket(context.Background(), testSession, "t-1")
		assert.ErrorIs(t, err, status.ErrAlreadyCancelled, "status %d", code)
	}
}

func TestClient_CancelTicket_OtherConflictStaysConflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, "Event has already started")
	})

	err := client.CancelTicket(context.Background(), testSession, "t-1")

	assert.ErrorIs(t, err, status.ErrConflict)
	assert.NotErrorIs(t, err, status.ErrAlreadyCancelled)
	assert.Equal(t, "Event has already started", Reason(err))
}

func TestClient_CancelTicket_NoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, client.CancelTicket(context.Background(), testSession, "t-1"))
}

func TestClient_InitializePayment_SendsMinorUnits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(50000000), body["amount"])
		assert.Equal(t, "t-1", body["ticketId"])
		assert.Equal(t, "ada@example.com", body["email"])

		writeData(w, http.StatusOK, map[string]any{
			"authorizationUrl": "https://checkout.example/abc",
			"reference":        "ref-1",
			"paymentId":        "p-1",
		})
	})

	init, err := client.InitializePayment(context.Background(), testSession, InitializeRequest{
		TicketID: "t-1",
		Email:    "ada@example.com",
		Amount:   50000000,
	})

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/abc", init.AuthorizationURL)
	assert.Equal(t, "ref-1", init.Reference)
}

func TestClient_VerifyPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ref 1", r.URL.Query().Get("reference"))
		writeData(w, http.StatusOK, map[string]any{"status": "failed", "gateway_response": "Declined"})
	})

	v, err := client.VerifyPayment(context.Background(), testSession, "ref 1")

	require.NoError(t, err)
	assert.False(t, v.Succeeded())
	assert.Equal(t, "Declined", v.Message())
}

func TestVerification_Message(t *testing.T) {
	v := Verification{Status: "success", GatewayMessage: "Approved"}
	assert.True(t, v.Succeeded())
	assert.Equal(t, "Approved", v.Message())

	// only the exact token counts
	v.Status = "SUCCESS"
	assert.False(t, v.Succeeded())
}

func TestClient_UnauthorizedNotifiesHook(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "jwt expired")
	})

	var rejected models.Session
	client.OnUnauthorized(func(sess models.Session) { rejected = sess })

	_, err := client.Profile(context.Background(), testSession)

	assert.ErrorIs(t, err, status.ErrUnauthorized)
	assert.Equal(t, "token-1", rejected.AccessToken)
}

func TestClient_ServerErrorsTripBreaker(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeError(w, http.StatusBadGateway, "upstream down")
	}))
	defer server.Close()

	breaker := utils.NewCircuitBreaker("test").WithSettings(2, 0.5, time.Minute)
	client := NewClient(server.URL, time.Second, breaker)

	for i := 0; i < 2; i++ {
		_, err := client.GetEvent(context.Background(), testSession, "e-1")
		assert.ErrorIs(t, err, status.ErrBackendUnavailable)
	}

	_, err := client.GetEvent(context.Background(), testSession, "e-1")
	assert.ErrorIs(t, err, status.ErrBackendUnavailable)
	assert.Equal(t, 2, calls, "open breaker must not reach the backend")
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Event not found")
	}))
	defer server.Close()

	breaker := utils.NewCircuitBreaker("test").WithSettings(1, 0.1, time.Minute)
	client := NewClient(server.URL, time.Second, breaker)

	for i := 0; i < 3; i++ {
		_, err := client.GetEvent(context.Background(), testSession, "e-1")
		assert.ErrorIs(t, err, status.ErrNotFound)
	}
	assert.Equal(t, utils.StateClosed, breaker.State())
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, assert.AnError.Error(), Reason(assert.AnError))
	assert.Equal(t, "Declined", Reason(&APIError{Op: "verifyPayment", StatusCode: 400, Message: "Declined"}))
}
