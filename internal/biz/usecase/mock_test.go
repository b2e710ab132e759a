package usecase

import (
	"context"
	"sync"

	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/repo"
)

// Mock implementations

type mockMessageRepo struct {
	mu          sync.Mutex
	calls       []string
	posts       []string
	reactionErr error
	postErr     error
	postPanic   bool
	botUserID   string
}

func (m *mockMessageRepo) AddReaction(ctx context.Context, ref domain.MessageRef, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "add:"+name)
	return m.reactionErr
}

func (m *mockMessageRepo) RemoveReaction(ctx context.Context, ref domain.MessageRef, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "remove:"+name)
	return m.reactionErr
}

func (m *mockMessageRepo) PostMessage(ctx context.Context, channelID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "post")
	if m.postPanic {
		panic("post: nil client")
	}
	if m.postErr != nil {
		return m.postErr
	}
	m.posts = append(m.posts, text)
	return nil
}

func (m *mockMessageRepo) BotUserID(ctx context.Context) (string, error) {
	return m.botUserID, nil
}

func (m *mockMessageRepo) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockCompletionRepo struct {
	mu       sync.Mutex
	prompts  [][]domain.ChatMessage
	complete func(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error)
}

func (m *mockCompletionRepo) CreateCompletion(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, messages)
	m.mu.Unlock()
	return m.complete(ctx, messages)
}

func fixedCompletion(text string, usage domain.TokenUsage) *mockCompletionRepo {
	return &mockCompletionRepo{
		complete: func(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error) {
			return &domain.Completion{Text: text, Usage: usage}, nil
		},
	}
}

type mockTurnRepo struct {
	mu        sync.Mutex
	rows      []repo.TurnRow
	history   []domain.ConversationTurn
	appendErr error
	recentErr error
}

func (m *mockTurnRepo) Append(ctx context.Context, row repo.TurnRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *mockTurnRepo) RecentTurns(ctx context.Context, channelID, userID string, limit int) ([]domain.ConversationTurn, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	return m.history, nil
}

func (m *mockTurnRepo) Available() bool {
	return m.recentErr == nil && m.appendErr == nil
}

func (m *mockTurnRepo) Rows() []repo.TurnRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repo.TurnRow(nil), m.rows...)
}
