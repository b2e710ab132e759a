package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/repo"
	"github.com/netocloud/slack-relay/internal/metrics"
)

// DispatcherConfig contains completion dispatcher configuration
type DispatcherConfig struct {
	Workers int           // Number of goroutines issuing model calls
	Timeout time.Duration // Bound on a single completion, including queueing
}

// DefaultDispatcherConfig contains default dispatcher configuration
var DefaultDispatcherConfig = DispatcherConfig{
	Workers: 4,
	Timeout: 60 * time.Second,
}

// ErrDispatcherStopped is returned when Complete is called after Stop
var ErrDispatcherStopped = errors.New("completion dispatcher stopped")

type completionJob struct {
	ctx      context.Context
	messages []domain.ChatMessage
	result   chan completionResult
}

type completionResult struct {
	completion *domain.Completion
	err        error
}

// CompletionDispatcher runs model calls on a dedicated worker pool so a slow
// call never holds up intake of other deliveries.
type CompletionDispatcher struct {
	completionRepo repo.CompletionRepo
	cfg            DispatcherConfig
	logger         *slog.Logger

	jobs     chan completionJob
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCompletionDispatcher creates a dispatcher and starts its workers
func NewCompletionDispatcher(completionRepo repo.CompletionRepo, cfg DispatcherConfig, logger *slog.Logger) *CompletionDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultDispatcherConfig.Workers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDispatcherConfig.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &CompletionDispatcher{
		completionRepo: completionRepo,
		cfg:            cfg,
		logger:         logger.With(slog.String("component", "dispatcher")),
		jobs:           make(chan completionJob),
		quit:           make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	return d
}

// Complete submits the prompt and waits for the answer or the timeout
func (d *CompletionDispatcher) Complete(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	job := completionJob{
		ctx:      ctx,
		messages: messages,
		result:   make(chan completionResult, 1),
	}

	select {
	case d.jobs <- job:
	case <-d.quit:
		return nil, domain.NewDependencyError("completion", ErrDispatcherStopped)
	case <-ctx.Done():
		return nil, domain.NewDependencyError("completion", fmt.Errorf("queue: %w", ctx.Err()))
	}

	select {
	case res := <-job.result:
		return res.completion, res.err
	case <-ctx.Done():
		return nil, domain.NewDependencyError("completion", ctx.Err())
	}
}

// Stop stops the workers and waits for in-flight calls to return
func (d *CompletionDispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.quit)
	})
	d.wg.Wait()
}

func (d *CompletionDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.quit:
			return
		case job := <-d.jobs:
			job.result <- d.run(job)
		}
	}
}

func (d *CompletionDispatcher) run(job completionJob) (res completionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = completionResult{err: fmt.Errorf("completion panic: %v", r)}
		}
	}()

	if err := job.ctx.Err(); err != nil {
		return completionResult{err: domain.NewDependencyError("completion", err)}
	}

	start := time.Now()
	completion, err := d.completionRepo.CreateCompletion(job.ctx, job.messages)
	elapsed := time.Since(start)
	if err != nil {
		metrics.CompletionDuration.WithLabelValues("error").Observe(elapsed.Seconds())
		d.logger.Error("completion failed",
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err))
		return completionResult{err: domain.NewDependencyError("completion", err)}
	}
	if completion == nil || completion.Text == "" {
		metrics.CompletionDuration.WithLabelValues("empty").Observe(elapsed.Seconds())
		return completionResult{err: domain.NewDependencyError("completion", errors.New("empty response"))}
	}

	metrics.CompletionDuration.WithLabelValues("ok").Observe(elapsed.Seconds())
	metrics.CompletionTokensTotal.WithLabelValues("input").Add(float64(completion.Usage.Input))
	metrics.CompletionTokensTotal.WithLabelValues("output").Add(float64(completion.Usage.Output))

	d.logger.Info("completion received",
		slog.Duration("elapsed", elapsed),
		slog.Int("total_tokens", completion.Usage.Total))
	return completionResult{completion: completion}
}
