package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/repo"
	"github.com/netocloud/slack-relay/internal/metrics"
)

// MaxTextLength bounds message_text and bot_response columns (in characters)
const MaxTextLength = 10000

// PersistenceConfig contains warehouse write configuration
type PersistenceConfig struct {
	Location *time.Location // Timezone of created_at/updated_at
	Timeout  time.Duration
}

// PersistenceUsecase normalizes and appends completed turns to the warehouse
type PersistenceUsecase struct {
	turnRepo repo.TurnRepo
	cfg      PersistenceConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewPersistenceUsecase creates a new persistence usecase
func NewPersistenceUsecase(turnRepo repo.TurnRepo, cfg PersistenceConfig, logger *slog.Logger) *PersistenceUsecase {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistenceUsecase{
		turnRepo: turnRepo,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "persistence")),
	}
}

// Write appends the turn. The error is reported to the caller but nothing
// already delivered to the user is undone.
func (uc *PersistenceUsecase) Write(ctx context.Context, turn domain.ConversationTurn) error {
	if uc.turnRepo == nil {
		metrics.WarehouseWritesTotal.WithLabelValues("disabled").Inc()
		return domain.NewDependencyError("warehouse", errors.New("warehouse not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	row := uc.Normalize(turn)
	if err := uc.turnRepo.Append(ctx, row); err != nil {
		metrics.WarehouseWritesTotal.WithLabelValues("error").Inc()
		uc.logger.Error("failed to save turn",
			slog.String("channel", row.ChannelID),
			slog.String("user", row.UserID),
			slog.Any("error", err))
		return domain.NewDependencyError("warehouse", err)
	}

	metrics.WarehouseWritesTotal.WithLabelValues("ok").Inc()
	uc.logger.Info("turn saved",
		slog.String("channel", row.ChannelID),
		slog.String("user", row.UserID),
		slog.String("message_ts", row.MessageTS))
	return nil
}

// Normalize converts a turn to the fixed warehouse row schema
func (uc *PersistenceUsecase) Normalize(turn domain.ConversationTurn) repo.TurnRow {
	at := uc.now().In(uc.cfg.Location)
	now := at.Format(repo.TimeLayout)

	sentAt := at
	if !turn.Timestamp.IsZero() {
		sentAt = turn.Timestamp.In(uc.cfg.Location)
	}
	messageTS := sentAt.Format(repo.MessageTimeLayout)
	messageType := turn.MessageType
	if messageType == "" {
		messageType = domain.EventTypeMessage
	}

	return repo.TurnRow{
		UserID:       turn.UserID,
		MessageTS:    messageTS,
		ChannelID:    turn.ChannelID,
		MessageText:  truncateRunes(turn.MessageText, MaxTextLength),
		BotResponse:  truncateRunes(turn.BotResponse, MaxTextLength),
		MessageType:  messageType,
		InputTokens:  turn.Usage.Input,
		OutputTokens: turn.Usage.Output,
		TotalTokens:  turn.Usage.Total,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func truncateRunes(s string, n int) string {
	runes := 0
	for i := range s {
		if runes == n {
			return s[:i]
		}
		runes++
	}
	return s
}
