package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/repo"
	"github.com/netocloud/slack-relay/internal/metrics"
)

// ReactionUsecase drives the processing-status reactions on a message
type ReactionUsecase struct {
	messageRepo repo.MessageRepo
	names       domain.ReactionNames
	timeout     time.Duration
	logger      *slog.Logger
}

// NewReactionUsecase creates a new reaction usecase
func NewReactionUsecase(messageRepo repo.MessageRepo, names domain.ReactionNames, timeout time.Duration, logger *slog.Logger) *ReactionUsecase {
	if names.Seen == "" {
		names.Seen = domain.DefaultReactionNames.Seen
	}
	if names.Done == "" {
		names.Done = domain.DefaultReactionNames.Done
	}
	if names.Failed == "" {
		names.Failed = domain.DefaultReactionNames.Failed
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReactionUsecase{
		messageRepo: messageRepo,
		names:       names,
		timeout:     timeout,
		logger:      logger.With(slog.String("component", "reaction")),
	}
}

// Marker is the reaction state of one in-flight message.
// It leaves seen exactly once, through Finish.
type Marker struct {
	uc  *ReactionUsecase
	ref domain.MessageRef
	ctx context.Context

	once  sync.Once
	mu    sync.Mutex
	state domain.ReactionState
}

// Begin moves the message from unmarked to seen.
// The caller must defer Finish on the returned marker.
func (uc *ReactionUsecase) Begin(ctx context.Context, ref domain.MessageRef) *Marker {
	m := &Marker{
		uc:    uc,
		ref:   ref,
		ctx:   context.WithoutCancel(ctx),
		state: domain.ReactionUnmarked,
	}
	uc.apply(m.ctx, func(ctx context.Context) error {
		return uc.messageRepo.AddReaction(ctx, ref, uc.names.Seen)
	}, "add", uc.names.Seen, ref)
	m.setState(domain.ReactionSeen)
	return m
}

// Finish moves the message to done when err is nil and to failed otherwise.
// Calls after the first are no-ops.
func (m *Marker) Finish(err error) {
	m.once.Do(func() {
		target, emoji := domain.ReactionDone, m.uc.names.Done
		if err != nil {
			target, emoji = domain.ReactionFailed, m.uc.names.Failed
		}

		// seen is removed before the terminal marker is added
		m.uc.apply(m.ctx, func(ctx context.Context) error {
			return m.uc.messageRepo.RemoveReaction(ctx, m.ref, m.uc.names.Seen)
		}, "remove", m.uc.names.Seen, m.ref)
		m.uc.apply(m.ctx, func(ctx context.Context) error {
			return m.uc.messageRepo.AddReaction(ctx, m.ref, emoji)
		}, "add", emoji, m.ref)

		m.setState(target)
	})
}

// State returns the current reaction state
func (m *Marker) State() domain.ReactionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Marker) setState(s domain.ReactionState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	metrics.ReactionTransitionsTotal.WithLabelValues(string(s)).Inc()
}

// apply runs one reaction call with its own timeout. Failures are logged only.
func (uc *ReactionUsecase) apply(ctx context.Context, call func(context.Context) error, op, emoji string, ref domain.MessageRef) {
	if uc.messageRepo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	if err := call(ctx); err != nil {
		uc.logger.Warn("reaction update failed",
			slog.String("op", op),
			slog.String("emoji", emoji),
			slog.String("channel", ref.ChannelID),
			slog.String("ts", ref.TS),
			slog.Any("error", err))
	}
}
