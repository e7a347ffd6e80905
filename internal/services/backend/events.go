package backend

import (
	"context"
	"net/http"
	"net/url"

	"ticket-reconcile/models"
)

func (c *Client) GetEvent(ctx context.Context, sess models.Session, eventID string) (*models.Event, error) {
	var event models.Event
	err := c.do(ctx, sess, request{
		op:     "getEvent",
		method: http.MethodGet,
		path:   "/events/" + url.PathEscape(eventID),
	}, &event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Profile returns the user the session belongs to.
func (c *Client) Profile(ctx context.Context, sess models.Session) (*models.User, error) {
	var user models.User
	err := c.do(ctx, sess, request{
		op:     "profile",
		method: http.MethodGet,
		path:   "/auth/profile",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
