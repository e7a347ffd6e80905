package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequestEvent(userAgent string) *core.RequestEvent {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/e-1/purchase", nil)
	req.Header.Set("User-Agent", userAgent)

	e := &core.RequestEvent{}
	e.Request = req
	e.Response = httptest.NewRecorder()
	return e
}

func byUser(*core.RequestEvent) string { return "user:u-1" }

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2, byUser)

	mock.ExpectIncr("ratelimit:user:u-1").SetVal(1)
	mock.ExpectExpire("ratelimit:user:u-1", time.Minute).SetVal(true)
	mock.ExpectIncr("ratelimit:user:u-1").SetVal(2)

	assert.NoError(t, limiter.Limit(newRequestEvent("Mozilla/5.0")))
	assert.NoError(t, limiter.Limit(newRequestEvent("Mozilla/5.0")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2, byUser)

	mock.ExpectIncr("ratelimit:user:u-1").SetVal(3)

	err := limiter.Limit(newRequestEvent("Mozilla/5.0"))

	var apiErr *router.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2, byUser)

	mock.ExpectIncr("ratelimit:user:u-1").SetErr(errors.New("connection refused"))

	assert.NoError(t, limiter.Limit(newRequestEvent("Mozilla/5.0")))
}

func TestRateLimiter_DisabledWithZeroLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 0, byUser)

	assert.NoError(t, limiter.Limit(newRequestEvent("Mozilla/5.0")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAntiBot(t *testing.T) {
	assert.NoError(t, AntiBot(newRequestEvent("Mozilla/5.0")))

	err := AntiBot(newRequestEvent("Googlebot/2.1"))
	var apiErr *router.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}
