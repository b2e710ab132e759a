package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_MessagesNoHistory(t *testing.T) {
	conv := &Conversation{SystemPrompt: "be helpful", Current: "Hello"}

	messages := conv.Messages()

	require.Len(t, messages, 2)
	assert.Equal(t, ChatMessage{Role: RoleSystem, Content: "be helpful"}, messages[0])
	assert.Equal(t, ChatMessage{Role: RoleUser, Content: "Hello"}, messages[1])
}

func TestConversation_MessagesOrdersHistoryOldestFirst(t *testing.T) {
	now := time.Now()
	conv := &Conversation{
		SystemPrompt: "sys",
		History: []ConversationTurn{
			{MessageText: "second", BotResponse: "reply 2", Timestamp: now.Add(-1 * time.Minute)},
			{MessageText: "first", BotResponse: "reply 1", Timestamp: now.Add(-5 * time.Minute)},
		},
		Current: "third",
	}

	messages := conv.Messages()

	want := []ChatMessage{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply 1"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAssistant, Content: "reply 2"},
		{Role: RoleUser, Content: "third"},
	}
	assert.Equal(t, want, messages)
}

func TestConversation_EqualTimestampsKeepStoredOrder(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	conv := &Conversation{
		SystemPrompt: "sys",
		// most recent first, as returned by the warehouse
		History: []ConversationTurn{
			{MessageText: "b", Timestamp: at},
			{MessageText: "a", Timestamp: at},
		},
		Current: "c",
	}

	history := conv.HistoryOldestFirst()

	require.Len(t, history, 2)
	assert.Equal(t, "a", history[0].MessageText)
	assert.Equal(t, "b", history[1].MessageText)
}

func TestConversation_MessagesSkipsEmptySides(t *testing.T) {
	now := time.Now()
	conv := &Conversation{
		SystemPrompt: "sys",
		History: []ConversationTurn{
			{MessageText: "question", BotResponse: "", Timestamp: now},
		},
		Current: "next",
	}

	messages := conv.Messages()

	require.Len(t, messages, 3)
	assert.Equal(t, RoleUser, messages[1].Role)
	assert.Equal(t, RoleUser, messages[2].Role)
}

func TestConversation_HistoryOldestFirstDoesNotMutate(t *testing.T) {
	now := time.Now()
	conv := &Conversation{
		History: []ConversationTurn{
			{MessageText: "b", Timestamp: now},
			{MessageText: "a", Timestamp: now.Add(-time.Hour)},
		},
	}

	sorted := conv.HistoryOldestFirst()

	assert.Equal(t, "a", sorted[0].MessageText)
	assert.Equal(t, "b", conv.History[0].MessageText)
}

func TestNewConversationTurn(t *testing.T) {
	msg := &InboundMessage{ChannelID: "D1", UserID: "U1", Text: "Hello", TS: "1700000000.000100"}
	completion := &Completion{Text: "Hi there", Usage: TokenUsage{Input: 5, Output: 3, Total: 8}}

	turn := NewConversationTurn(msg, completion, time.Now())

	assert.Equal(t, "D1", turn.ChannelID)
	assert.Equal(t, "U1", turn.UserID)
	assert.Equal(t, "Hello", turn.MessageText)
	assert.Equal(t, "Hi there", turn.BotResponse)
	assert.Equal(t, EventTypeMessage, turn.MessageType)
	assert.Equal(t, 8, turn.Usage.Total)
	assert.Equal(t, int64(1700000000), turn.Timestamp.Unix())
}
