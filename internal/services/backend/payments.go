package backend

import (
	"context"
	"net/http"
	"net/url"

	"ticket-reconcile/models"
)

// VerificationSuccess is the only gateway status treated as a green light.
const VerificationSuccess = "success"

type InitializeRequest struct {
	TicketID string `json:"ticketId"`
	Email    string `json:"email"`
	Amount   int64  `json:"amount"` // minor units, see models.MinorUnits
}

type PaymentInit struct {
	AuthorizationURL string `json:"authorizationUrl"`
	Reference        string `json:"reference"`
	PaymentID        string `json:"paymentId"`
}

type Verification struct {
	Status          string `json:"status"`
	Reference       string `json:"reference,omitempty"`
	GatewayResponse string `json:"gateway_response,omitempty"`
	GatewayMessage  string `json:"gatewayMessage,omitempty"`
}

func (v *Verification) Succeeded() bool {
	return v.Status == VerificationSuccess
}

// Message is whatever the gateway said about the charge.
func (v *Verification) Message() string {
	if v.GatewayResponse != "" {
		return v.GatewayResponse
	}
	return v.GatewayMessage
}

// InitializePayment opens a gateway transaction for a ticket and returns
// where to send the user agent.
func (c *Client) InitializePayment(ctx context.Context, sess models.Session, req InitializeRequest) (*PaymentInit, error) {
	var init PaymentInit
	err := c.do(ctx, sess, request{
		op:     "initializePayment",
		method: http.MethodPost,
		path:   "/payments/initialize",
		body:   req,
	}, &init)
	if err != nil {
		return nil, err
	}
	return &init, nil
}

// VerifyPayment asks the gateway, through the backend, how reference went.
func (c *Client) VerifyPayment(ctx context.Context, sess models.Session, reference string) (*Verification, error) {
	var v Verification
	err := c.do(ctx, sess, request{
		op:     "verifyPayment",
		method: http.MethodGet,
		path:   "/payments/verify",
		query:  url.Values{"reference": []string{reference}},
	}, &v)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
