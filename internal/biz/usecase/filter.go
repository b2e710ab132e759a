package usecase

import (
	"strings"

	"github.com/netocloud/slack-relay/internal/biz/domain"
)

// Acknowledgment statuses for events that are accepted but not answered
const (
	StatusIgnoredSubtype      = "ignored - message subtype"
	StatusIgnoredEmpty        = "ignored - empty message"
	StatusIgnoredBot          = "ignored - bot message"
	StatusIgnoredNotAddressed = "ignored - not addressed to bot"
	StatusIgnoredEventType    = "event type not processed"
)

// FilterUsecase decides whether a message event should be answered
type FilterUsecase struct{}

// NewFilterUsecase creates a new filter usecase
func NewFilterUsecase() *FilterUsecase {
	return &FilterUsecase{}
}

// Route converts an event into a message to answer.
// When the event is not answered, msg is nil and status explains why.
func (uc *FilterUsecase) Route(event domain.MessageEvent, botUserID string) (msg *domain.InboundMessage, status string) {
	if event.Type != domain.EventTypeMessage {
		return nil, StatusIgnoredEventType
	}
	if event.BotID != "" {
		return nil, StatusIgnoredBot
	}
	// message_changed, message_deleted, channel_join ...
	if event.Subtype != "" {
		return nil, StatusIgnoredSubtype
	}

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return nil, StatusIgnoredEmpty
	}

	if event.ChannelType != domain.ChannelTypeIM {
		mention := mentionTag(botUserID)
		if mention == "" || !strings.Contains(text, mention) {
			return nil, StatusIgnoredNotAddressed
		}
		text = strings.TrimSpace(strings.ReplaceAll(text, mention, ""))
		if text == "" {
			return nil, StatusIgnoredEmpty
		}
	}

	return &domain.InboundMessage{
		ChannelID:   event.Channel,
		UserID:      event.User,
		Text:        text,
		TS:          event.TS,
		ChannelType: event.ChannelType,
		EventType:   event.Type,
	}, ""
}

func mentionTag(botUserID string) string {
	if botUserID == "" {
		return ""
	}
	return "<@" + botUserID + ">"
}
