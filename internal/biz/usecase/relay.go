package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/repo"
)

// RelayUsecase answers one routed message: assemble, complete, reply, persist.
type RelayUsecase struct {
	contextUC     *ContextBuilderUsecase
	dispatcher    *CompletionDispatcher
	reactionUC    *ReactionUsecase
	persistenceUC *PersistenceUsecase
	messageRepo   repo.MessageRepo

	replyTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewRelayUsecase creates a new relay usecase
func NewRelayUsecase(
	contextUC *ContextBuilderUsecase,
	dispatcher *CompletionDispatcher,
	reactionUC *ReactionUsecase,
	persistenceUC *PersistenceUsecase,
	messageRepo repo.MessageRepo,
	logger *slog.Logger,
) *RelayUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayUsecase{
		contextUC:     contextUC,
		dispatcher:    dispatcher,
		reactionUC:    reactionUC,
		persistenceUC: persistenceUC,
		messageRepo:   messageRepo,
		replyTimeout:  10 * time.Second,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "relay")),
	}
}

// Process runs the pipeline for msg. The reaction marker always ends in done
// or failed, whichever way this function exits.
func (uc *RelayUsecase) Process(ctx context.Context, msg *domain.InboundMessage) (err error) {
	marker := uc.reactionUC.Begin(ctx, msg.Ref())
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("relay panic: %v", r)
		}
		marker.Finish(err)
	}()

	log := uc.logger.With(slog.String("channel", msg.ChannelID), slog.String("user", msg.UserID))

	messages := uc.contextUC.Assemble(ctx, msg.ChannelID, msg.UserID, msg.Text)
	log.Debug("prompt assembled", slog.Int("messages", len(messages)))

	completion, err := uc.dispatcher.Complete(ctx, messages)
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}

	if err := uc.reply(ctx, msg.ChannelID, completion.Text); err != nil {
		return fmt.Errorf("reply: %w", err)
	}

	// The reply is already delivered; a failed write only costs future context.
	turn := domain.NewConversationTurn(msg, completion, uc.now())
	if werr := uc.persistenceUC.Write(ctx, turn); werr != nil {
		log.Warn("turn not persisted", slog.Any("error", werr))
	}

	log.Info("message relayed", slog.Int("reply_chars", len(completion.Text)))
	return nil
}

func (uc *RelayUsecase) reply(ctx context.Context, channelID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, uc.replyTimeout)
	defer cancel()
	return domain.NewDependencyError("messaging", uc.messageRepo.PostMessage(ctx, channelID, text))
}
