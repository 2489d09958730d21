package webhook

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/prepwise/creditcore/internal/errs"
)

// Event types that complete a purchase.
const (
	EventCheckoutCompleted = "checkout.completed"
	EventPaymentCompleted  = "payment.completed"
)

// Event is the provider notification envelope.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

// EventData carries the payment fields of an event.
type EventData struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// ParseEvent decodes a verified payload.
func ParseEvent(payload []byte) (Event, error) {
	var event Event
	dec := json.NewDecoder(bytes.NewReader(payload))
	if errDecode := dec.Decode(&event); errDecode != nil {
		return Event{}, errs.Invalid("payload", "malformed event json")
	}
	event.ID = strings.TrimSpace(event.ID)
	event.Type = strings.TrimSpace(event.Type)
	event.Data.PaymentID = strings.TrimSpace(event.Data.PaymentID)
	if event.ID == "" {
		return Event{}, errs.Invalid("id", "is required")
	}
	if event.Type == "" {
		return Event{}, errs.Invalid("type", "is required")
	}
	return event, nil
}

// Completes reports whether the event type completes a purchase.
func (e Event) Completes() bool {
	return e.Type == EventCheckoutCompleted || e.Type == EventPaymentCompleted
}
