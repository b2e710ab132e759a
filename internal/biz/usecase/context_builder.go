package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/repo"
)

// PromptConfig contains prompt configuration
type PromptConfig struct {
	SystemPrompt    string        // System instruction placed at the head of every prompt
	MaxHistoryTurns int           // Max prior turns loaded per (channel, user)
	HistoryTimeout  time.Duration // Bound on the history query
}

// DefaultPromptConfig contains default prompt configuration
var DefaultPromptConfig = PromptConfig{
	SystemPrompt:    "Eres un asistente útil que responde preguntas de manera amable y profesional.",
	MaxHistoryTurns: 10,
	HistoryTimeout:  10 * time.Second,
}

// ContextBuilderUsecase assembles the prompt for a new message
type ContextBuilderUsecase struct {
	turnRepo repo.TurnRepo
	cfg      PromptConfig
	logger   *slog.Logger
}

// NewContextBuilderUsecase creates a new context builder usecase
func NewContextBuilderUsecase(turnRepo repo.TurnRepo, cfg PromptConfig, logger *slog.Logger) *ContextBuilderUsecase {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultPromptConfig.SystemPrompt
	}
	if cfg.MaxHistoryTurns < 0 {
		cfg.MaxHistoryTurns = 0
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = DefaultPromptConfig.HistoryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextBuilderUsecase{
		turnRepo: turnRepo,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "context_builder")),
	}
}

// BuildConversation loads history for the (channel, user) pair.
// A history failure degrades to an empty history instead of failing.
func (uc *ContextBuilderUsecase) BuildConversation(ctx context.Context, channelID, userID, text string) *domain.Conversation {
	conv := &domain.Conversation{
		ChannelID:    channelID,
		UserID:       userID,
		SystemPrompt: uc.cfg.SystemPrompt,
		Current:      text,
	}
	if uc.turnRepo == nil || uc.cfg.MaxHistoryTurns == 0 {
		return conv
	}

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.HistoryTimeout)
	defer cancel()

	history, err := uc.turnRepo.RecentTurns(ctx, channelID, userID, uc.cfg.MaxHistoryTurns)
	if err != nil {
		uc.logger.Warn("history unavailable, continuing without it",
			slog.String("channel", channelID),
			slog.String("user", userID),
			slog.Any("error", err))
		return conv
	}
	if len(history) > uc.cfg.MaxHistoryTurns {
		history = history[:uc.cfg.MaxHistoryTurns]
	}
	conv.History = history
	return conv
}

// Assemble returns the ordered, role-tagged prompt for a new message
func (uc *ContextBuilderUsecase) Assemble(ctx context.Context, channelID, userID, text string) []domain.ChatMessage {
	return uc.BuildConversation(ctx, channelID, userID, text).Messages()
}
