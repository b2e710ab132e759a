package domain

import (
	"sort"
	"time"
)

// ChatRole tags a message in the model prompt
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one role-tagged entry of the prompt
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// TokenUsage holds the token counts reported by the completion API
type TokenUsage struct {
	Input  int
	Output int
	Total  int
}

// Completion is the model answer for a prompt
type Completion struct {
	Text  string
	Usage TokenUsage
}

// ConversationTurn is one user message + bot reply pair
type ConversationTurn struct {
	ChannelID   string
	UserID      string
	MessageText string
	BotResponse string
	MessageType string
	Timestamp   time.Time
	Usage       TokenUsage
}

// NewConversationTurn builds the turn persisted after a successful completion
func NewConversationTurn(msg *InboundMessage, completion *Completion, now time.Time) ConversationTurn {
	messageType := msg.EventType
	if messageType == "" {
		messageType = EventTypeMessage
	}
	return ConversationTurn{
		ChannelID:   msg.ChannelID,
		UserID:      msg.UserID,
		MessageText: msg.Text,
		BotResponse: completion.Text,
		MessageType: messageType,
		Timestamp:   msg.SentAt(now),
		Usage:       completion.Usage,
	}
}

// Conversation represents the prompt aggregate for one (channel, user) pair
type Conversation struct {
	ChannelID    string
	UserID       string
	SystemPrompt string
	History      []ConversationTurn
	Current      string
}

// HistoryOldestFirst returns history sorted by timestamp, oldest first.
// History is stored most recent first, so equal timestamps keep the reverse
// of that order.
func (c *Conversation) HistoryOldestFirst() []ConversationTurn {
	history := make([]ConversationTurn, len(c.History))
	for i, turn := range c.History {
		history[len(c.History)-1-i] = turn
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	return history
}

// Messages flattens the conversation into the ordered prompt:
// system instruction, alternating user/assistant history, current text.
func (c *Conversation) Messages() []ChatMessage {
	messages := make([]ChatMessage, 0, 2*len(c.History)+2)
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: c.SystemPrompt})

	for _, turn := range c.HistoryOldestFirst() {
		if turn.MessageText != "" {
			messages = append(messages, ChatMessage{Role: RoleUser, Content: turn.MessageText})
		}
		if turn.BotResponse != "" {
			messages = append(messages, ChatMessage{Role: RoleAssistant, Content: turn.BotResponse})
		}
	}

	return append(messages, ChatMessage{Role: RoleUser, Content: c.Current})
}
