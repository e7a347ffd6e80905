package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ticket-reconcile/internal/status"
	"ticket-reconcile/models"
	"ticket-reconcile/utils"
)

// Client talks to the ticketing backend REST API. It holds no per-user state:
// the caller's credential travels with every call as a models.Session.
type Client struct {
	// baseURL is the base url of the ticketing backend, e.g. http://host/api/v1.
	baseURL string

	// hc is the http client.
	hc *http.Client

	// breaker guards every call.
	breaker *utils.CircuitBreaker

	// onUnauthorized is told about sessions the backend rejected.
	onUnauthorized func(sess models.Session)
}

// NewClient creates a backend client. A nil breaker gets a default one.
func NewClient(baseURL string, timeout time.Duration, breaker *utils.CircuitBreaker) *Client {
	if breaker == nil {
		breaker = utils.NewCircuitBreaker("ticketing-backend")
	}
	breaker.WithSuccessCheck(countsAsHealthy)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc: &http.Client{
			Timeout: timeout,
		},
		breaker: breaker,
	}
}

// OnUnauthorized registers fn to run when the backend answers 401 for a session.
func (c *Client) OnUnauthorized(fn func(sess models.Session)) {
	c.onUnauthorized = fn
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	// Err is the status sentinel for the response class, if any.
	Err error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Reason returns the backend's own error text, falling back to the full error.
func Reason(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// countsAsHealthy keeps 4xx answers from tripping the breaker.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
}

func (c *Client) do(ctx context.Context, sess models.Session, r request, out any) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.roundTrip(ctx, sess, r, out)
	})
	if errors.Is(err, utils.ErrOpenState) || errors.Is(err, utils.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %v", r.op, status.ErrBackendUnavailable, err)
	}
	if errors.Is(err, status.ErrUnauthorized) && c.onUnauthorized != nil {
		c.onUnauthorized(sess)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, sess models.Session, r request, out any) error {
	var bodyReader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: json.Marshal: %w", r.op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: http.NewRequest: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", utils.NewRequestID())
	if sess.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	}
	if sess.SessionID != "" {
		req.Header.Set("X-Session-Id", sess.SessionID)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http.Do: %w", r.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", r.op, err)
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("%s: json.Unmarshal: %w", r.op, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		slog.Warn("backend call rejected", "op", r.op, "status", resp.StatusCode, "error", msg)
		return &APIError{
			Op:         r.op,
			StatusCode: resp.StatusCode,
			Message:    msg,
			Err:        classify(resp.StatusCode),
		}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", r.op, err)
	}
	return nil
}

func classify(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return status.ErrUnauthorized
	case code == http.StatusNotFound:
		return status.ErrNotFound
	case code == http.StatusConflict:
		return status.ErrConflict
	case code >= http.StatusInternalServerError:
		return status.ErrBackendUnavailable
	default:
		return nil
	}
}
