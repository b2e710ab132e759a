package domain

import (
	"strconv"
	"strings"
	"time"
)

// ChannelType values reported by Slack for message events
const (
	ChannelTypeIM      = "im"
	ChannelTypeChannel = "channel"
	ChannelTypeGroup   = "group"
)

// MessageRef identifies a single Slack message (the target of reactions)
type MessageRef struct {
	ChannelID string
	TS        string
}

// InboundMessage is a routed message that the relay pipeline will answer
type InboundMessage struct {
	ChannelID   string
	UserID      string
	Text        string // Text sent to the model (bot mention already stripped)
	TS          string
	ChannelType string
	EventType   string
}

// Ref returns the reaction target for this message
func (m *InboundMessage) Ref() MessageRef {
	return MessageRef{ChannelID: m.ChannelID, TS: m.TS}
}

// IsDirect checks if the message was sent in a direct message channel
func (m *InboundMessage) IsDirect() bool {
	return m.ChannelType == ChannelTypeIM
}

// SentAt converts the Slack ts ("1700000000.123456") to a time.
// Falls back to fallback when ts is empty or malformed.
func (m *InboundMessage) SentAt(fallback time.Time) time.Time {
	return ParseSlackTS(m.TS, fallback)
}

// ParseSlackTS parses a Slack message timestamp
func ParseSlackTS(ts string, fallback time.Time) time.Time {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return fallback
	}
	secs, frac, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return fallback
	}
	var nsec int64
	if frac != "" {
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		nsec, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return fallback
		}
	}
	return time.Unix(sec, nsec)
}
