package repo

import (
	"context"

	"github.com/netocloud/slack-relay/internal/biz/domain"
)

// CompletionRepo is the LLM completion interface
type CompletionRepo interface {
	// CreateCompletion sends the ordered prompt and returns the model answer
	CreateCompletion(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error)
}
