package models

import (
	"time"
)

type TicketStatus string

const (
	TicketPending   TicketStatus = "PENDING"
	TicketPaid      TicketStatus = "PAID"
	TicketScanned   TicketStatus = "SCANNED"
	TicketCancelled TicketStatus = "CANCELLED"
)

// Active reports whether a ticket in this status counts as the user's live
// ticket for its event.
func (s TicketStatus) Active() bool {
	return s == TicketPending || s == TicketPaid || s == TicketScanned
}

type Ticket struct {
	ID        string       `json:"id"`
	EventID   string       `json:"eventId"`
	Status    TicketStatus `json:"status"` // PENDING, PAID, SCANNED, CANCELLED
	QRToken   string       `json:"qrToken"`
	QRCode    string       `json:"qrCode,omitempty"` // only once PAID or later
	ScannedAt *time.Time   `json:"scannedAt,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	Event     EventSummary `json:"event"`
	Payment   *Payment     `json:"payment,omitempty"`
}

// PaidFor reports whether the ticket is PAID through the payment with the
// given gateway reference.
func (t *Ticket) PaidFor(reference string) bool {
	if t.Status != TicketPaid || t.Payment == nil || reference == "" {
		return false
	}
	return t.Payment.Reference() == reference
}

// Cancellable reports whether the user may still cancel the ticket at now.
func (t *Ticket) Cancellable(now time.Time) bool {
	if t.Status == TicketScanned || t.Status == TicketCancelled {
		return false
	}
	return t.Event.StartTime.After(now)
}

// ActiveTicketFor returns the first non-cancelled ticket for eventID.
func ActiveTicketFor(tickets []Ticket, eventID string) *Ticket {
	for i := range tickets {
		if tickets[i].EventID == eventID && tickets[i].Status != TicketCancelled {
			return &tickets[i]
		}
	}
	return nil
}

func FindTicket(tickets []Ticket, ticketID string) *Ticket {
	for i := range tickets {
		if tickets[i].ID == ticketID {
			return &tickets[i]
		}
	}
	return nil
}

// FindPaidByReference returns the PAID ticket settled by reference, if the
// backend has recorded it yet.
func FindPaidByReference(tickets []Ticket, reference string) *Ticket {
	for i := range tickets {
		if tickets[i].PaidFor(reference) {
			return &tickets[i]
		}
	}
	return nil
}

// WithoutTicket returns a copy of tickets with ticketID removed.
func WithoutTicket(tickets []Ticket, ticketID string) []Ticket {
	out := make([]Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.ID != ticketID {
			out = append(out, t)
		}
	}
	return out
}
