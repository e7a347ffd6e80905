package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     time.Time       `json:"endTime"`
	Capacity    int             `json:"capacity"`
	TicketsSold int             `json:"ticketsSold"`
	Price       decimal.Decimal `json:"price"`  // major units
	Status      string          `json:"status"` // DRAFT, PUBLISHED, CANCELLED, COMPLETED
}

// SoldOut treats a non-positive capacity as unlimited.
func (e *Event) SoldOut() bool {
	return e.Capacity > 0 && e.TicketsSold >= e.Capacity
}

func (e *Event) Started(now time.Time) bool {
	return !e.StartTime.After(now)
}

// EventSummary is the slice of the event embedded in a ticket.
type EventSummary struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	Location  string          `json:"location"`
	Price     decimal.Decimal `json:"price"`
}

// Event widens the summary into an Event with unknown capacity.
func (s EventSummary) Event() Event {
	return Event{
		ID:        s.ID,
		Title:     s.Title,
		Location:  s.Location,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Price:     s.Price,
	}
}

// MinorUnits converts a major-unit price into the smallest currency unit.
// This is the only place the x100 scaling happens.
func MinorUnits(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}
