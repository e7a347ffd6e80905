package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ticket-reconcile/internal/status"
	"ticket-reconcile/models"

	"github.com/golang-jwt/jwt/v5"
)

// SessionResolver turns the caller's bearer token into a models.Session. The
// backend verifies the token on every call; claims are read unverified and only
// used to reject expired tokens early and to fill in a missing email.
type SessionResolver struct {
	profiles ProfileSource
	cache    Cache[models.User]
	now      func() time.Time
}

func NewSessionResolver(profiles ProfileSource, cache Cache[models.User]) *SessionResolver {
	return &SessionResolver{
		profiles: profiles,
		cache:    cache,
		now:      time.Now,
	}
}

func (r *SessionResolver) Resolve(ctx context.Context, accessToken, sessionID string) (models.Session, error) {
	sess := models.Session{AccessToken: accessToken, SessionID: sessionID}
	if !sess.Authenticated() {
		return sess, status.ErrUnauthorized
	}

	claims := readClaims(accessToken)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && !exp.After(r.now()) {
		return sess, fmt.Errorf("token expired at %s: %w", exp.Format(time.RFC3339), status.ErrUnauthorized)
	}

	key := tokenKey(accessToken)
	if user, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		sess.User = user
		return sess, nil
	}

	user, err := r.profiles.Profile(ctx, sess)
	if err != nil {
		return sess, fmt.Errorf("resolve session: %w", err)
	}
	if user.Email == "" {
		if email, ok := claims["email"].(string); ok {
			user.Email = email
		}
	}

	if err := r.cache.Set(ctx, key, *user); err != nil {
		slog.Warn("profile cache write failed", "error", err)
	}
	sess.User = *user
	return sess, nil
}

// Forget drops the cached profile of a session the backend rejected.
func (r *SessionResolver) Forget(sess models.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.cache.Delete(ctx, tokenKey(sess.AccessToken)); err != nil {
		slog.Warn("profile cache delete failed", "error", err)
	}
}

func readClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return jwt.MapClaims{}
	}
	return claims
}
