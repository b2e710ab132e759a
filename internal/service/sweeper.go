package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/netocloud/slack-relay/internal/biz/usecase"
	"github.com/netocloud/slack-relay/internal/metrics"
)

// DedupSweeper periodically drops expired delivery keys
type DedupSweeper struct {
	dedup    *usecase.Deduplicator
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDedupSweeper creates a new sweeper
func NewDedupSweeper(dedup *usecase.Deduplicator, interval time.Duration, logger *slog.Logger) *DedupSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DedupSweeper{
		dedup:    dedup,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Start starts the sweeper
func (s *DedupSweeper) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("sweeper started", slog.Duration("interval", s.interval))
}

// Stop stops the sweeper
func (s *DedupSweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *DedupSweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *DedupSweeper) sweep() {
	removed := s.dedup.Sweep()
	remaining := s.dedup.Len()
	metrics.DedupKeys.Set(float64(remaining))
	if removed > 0 {
		s.logger.Debug("expired delivery keys removed",
			slog.Int("removed", removed),
			slog.Int("remaining", remaining))
	}
}
