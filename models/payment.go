package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentSuccess  PaymentStatus = "SUCCESS"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Payment is owned by the backend. It is only read here, embedded in a Ticket.
type Payment struct {
	ID               string          `json:"id"`
	TicketID         string          `json:"ticketId,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           PaymentStatus   `json:"status"` // PENDING, SUCCESS, FAILED, REFUNDED
	GatewayReference string          `json:"gatewayReference,omitempty"`
	// PaystackReference is the field name older backends still send.
	PaystackReference string    `json:"paystackReference,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (p *Payment) Reference() string {
	if p.GatewayReference != "" {
		return p.GatewayReference
	}
	return p.PaystackReference
}
