package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netocloud/slack-relay/internal/biz/domain"
)

func mexicoCity(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Mexico_City")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}
	return loc
}

func TestPersistence_Normalize(t *testing.T) {
	loc := mexicoCity(t)
	uc := NewPersistenceUsecase(&mockTurnRepo{}, PersistenceConfig{Location: loc}, nil)
	uc.now = func() time.Time { return time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC) }

	row := uc.Normalize(domain.ConversationTurn{
		ChannelID:   "C1",
		UserID:      "U1",
		MessageText: "Hello",
		BotResponse: "Hi there",
		Timestamp:   time.Date(2024, 3, 1, 18, 29, 59, 0, time.UTC),
		Usage:       domain.TokenUsage{Input: 5, Output: 3, Total: 8},
	})

	assert.Equal(t, "U1", row.UserID)
	assert.Equal(t, "C1", row.ChannelID)
	assert.Equal(t, "Hello", row.MessageText)
	assert.Equal(t, "Hi there", row.BotResponse)
	assert.Equal(t, "message", row.MessageType)
	assert.Equal(t, 5, row.InputTokens)
	assert.Equal(t, 3, row.OutputTokens)
	assert.Equal(t, 8, row.TotalTokens)
	assert.Equal(t, "2024-03-01 12:29:59.000000", row.MessageTS)
	assert.Equal(t, "2024-03-01 12:30:00", row.CreatedAt)
	assert.Equal(t, row.CreatedAt, row.UpdatedAt)
}

func TestPersistence_MessageTSKeepsMicroseconds(t *testing.T) {
	uc := NewPersistenceUsecase(&mockTurnRepo{}, PersistenceConfig{Location: time.UTC}, nil)
	sent := domain.ParseSlackTS("1700000000.000100", time.Time{})

	first := uc.Normalize(domain.ConversationTurn{Timestamp: sent})
	second := uc.Normalize(domain.ConversationTurn{Timestamp: sent.Add(400 * time.Millisecond)})

	assert.Equal(t, "2023-11-14 22:13:20.000100", first.MessageTS)
	assert.Equal(t, "2023-11-14 22:13:20.400100", second.MessageTS)
	assert.Less(t, first.MessageTS, second.MessageTS)
}

func TestPersistence_Truncates(t *testing.T) {
	uc := NewPersistenceUsecase(&mockTurnRepo{}, PersistenceConfig{}, nil)
	long := strings.Repeat("ñ", MaxTextLength+50)

	row := uc.Normalize(domain.ConversationTurn{MessageText: long, BotResponse: "short"})

	assert.Equal(t, MaxTextLength, len([]rune(row.MessageText)))
	assert.Equal(t, "short", row.BotResponse)
}

func TestPersistence_MissingTimestampUsesNow(t *testing.T) {
	uc := NewPersistenceUsecase(&mockTurnRepo{}, PersistenceConfig{Location: time.UTC}, nil)
	uc.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

	row := uc.Normalize(domain.ConversationTurn{MessageType: "test"})

	assert.Equal(t, "2024-03-01 09:00:00.000000", row.MessageTS)
	assert.Equal(t, "test", row.MessageType)
}

func TestPersistence_Write(t *testing.T) {
	turnRepo := &mockTurnRepo{}
	uc := NewPersistenceUsecase(turnRepo, PersistenceConfig{}, nil)

	err := uc.Write(context.Background(), domain.ConversationTurn{ChannelID: "C1", UserID: "U1", MessageText: "Hello"})

	require.NoError(t, err)
	require.Len(t, turnRepo.Rows(), 1)
	assert.Equal(t, "Hello", turnRepo.Rows()[0].MessageText)
}

func TestPersistence_WriteError(t *testing.T) {
	uc := NewPersistenceUsecase(&mockTurnRepo{appendErr: errors.New("insert failed")}, PersistenceConfig{}, nil)

	err := uc.Write(context.Background(), domain.ConversationTurn{})

	var depErr *domain.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "warehouse", depErr.Dependency)
}

func TestPersistence_NoWarehouse(t *testing.T) {
	uc := NewPersistenceUsecase(nil, PersistenceConfig{}, nil)

	assert.Error(t, uc.Write(context.Background(), domain.ConversationTurn{}))
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"", 3, ""},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"héllo", 2, "hé"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateRunes(tt.in, tt.n), "truncateRunes(%q, %d)", tt.in, tt.n)
	}
}
