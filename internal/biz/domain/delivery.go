package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope types sent by the Slack Events API
const (
	EnvelopeURLVerification = "url_verification"
	EnvelopeEventCallback   = "event_callback"
)

// EventTypeMessage is the only inner event type the relay answers
const EventTypeMessage = "message"

// InboundDelivery is one webhook invocation as received on the wire.
// Body holds the raw bytes; the signature is computed over them, never over a
// re-encoded payload.
type InboundDelivery struct {
	Body       []byte
	Signature  string
	Timestamp  string
	ReceivedAt time.Time
}

// EventEnvelope is the outer Events API payload
type EventEnvelope struct {
	Type      string       `json:"type"`
	EventID   string       `json:"event_id"`
	Challenge string       `json:"challenge"`
	TeamID    string       `json:"team_id"`
	Event     MessageEvent `json:"event"`
}

// MessageEvent is the inner event object
type MessageEvent struct {
	Type        string `json:"type"`
	TS          string `json:"ts"`
	Channel     string `json:"channel"`
	User        string `json:"user"`
	Text        string `json:"text"`
	ChannelType string `json:"channel_type,omitempty"`
	Subtype     string `json:"subtype,omitempty"`
	BotID       string `json:"bot_id,omitempty"`
}

// DecodeEnvelope parses a delivery body
func DecodeEnvelope(body []byte) (*EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrValidation, err)
	}
	return &env, nil
}

// Key returns the deduplication key of the envelope
func (e *EventEnvelope) Key() DeliveryKey {
	return DeliveryKey{EventID: e.EventID, EventTS: e.Event.TS}
}

// DeliveryKey identifies a logical event across redeliveries
type DeliveryKey struct {
	EventID string
	EventTS string
}

func (k DeliveryKey) String() string {
	return k.EventID + ":" + k.EventTS
}

// IsZero reports whether the key carries no event id
func (k DeliveryKey) IsZero() bool {
	return k.EventID == ""
}
