package handlers

import (
	"errors"
	"strings"

	"ticket-reconcile/internal/services"
	"ticket-reconcile/internal/status"
	"ticket-reconcile/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const (
	sessionStoreKey = "reconcileSession"
	sessionIDHeader = "X-Session-Id"
)

// SessionMiddleware resolves the caller's backend credential and stores it on
// the request for the handlers below.
type SessionMiddleware struct {
	resolver *services.SessionResolver
}

func NewSessionMiddleware(resolver *services.SessionResolver) *SessionMiddleware {
	return &SessionMiddleware{resolver: resolver}
}

func (m *SessionMiddleware) RequireSession(e *core.RequestEvent) error {
	token := bearerToken(e.Request.Header.Get("Authorization"))
	if token == "" {
		return apis.NewUnauthorizedError("Please log in to continue.", nil)
	}

	sess, err := m.resolver.Resolve(e.Request.Context(), token, e.Request.Header.Get(sessionIDHeader))
	if err != nil {
		if errors.Is(err, status.ErrUnauthorized) {
			return apis.NewUnauthorizedError("Your session has expired. Please log in again.", nil)
		}
		return respondError(e, err, nil)
	}

	e.Set(sessionStoreKey, sess)
	return e.Next()
}

func bearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func sessionFrom(e *core.RequestEvent) (models.Session, bool) {
	sess, ok := e.Get(sessionStoreKey).(models.Session)
	return sess, ok
}

// CallerKey identifies the caller for rate limiting: the session user when
// one was resolved, the client IP otherwise.
func CallerKey(e *core.RequestEvent) string {
	if sess, ok := sessionFrom(e); ok && sess.User.ID != "" {
		return "user:" + sess.User.ID
	}
	return "ip:" + e.RealIP()
}
