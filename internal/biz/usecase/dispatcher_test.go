package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netocloud/slack-relay/internal/biz/domain"
)

var helloPrompt = []domain.ChatMessage{
	{Role: domain.RoleSystem, Content: "sys"},
	{Role: domain.RoleUser, Content: "Hello"},
}

func TestDispatcher_Complete(t *testing.T) {
	completionRepo := fixedCompletion("Hi there", domain.TokenUsage{Input: 5, Output: 3, Total: 8})
	d := NewCompletionDispatcher(completionRepo, DispatcherConfig{Workers: 2, Timeout: time.Second}, nil)
	defer d.Stop()

	completion, err := d.Complete(context.Background(), helloPrompt)

	require.NoError(t, err)
	assert.Equal(t, "Hi there", completion.Text)
	assert.Equal(t, 8, completion.Usage.Total)
	require.Len(t, completionRepo.prompts, 1)
	assert.Equal(t, helloPrompt, completionRepo.prompts[0])
}

func TestDispatcher_ErrorIsDependencyError(t *testing.T) {
	completionRepo := &mockCompletionRepo{
		complete: func(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error) {
			return nil, errors.New("rate limited")
		},
	}
	d := NewCompletionDispatcher(completionRepo, DefaultDispatcherConfig, nil)
	defer d.Stop()

	_, err := d.Complete(context.Background(), helloPrompt)

	var depErr *domain.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "completion", depErr.Dependency)
	assert.True(t, domain.ShouldRetract(err))
}

func TestDispatcher_EmptyAnswerIsError(t *testing.T) {
	d := NewCompletionDispatcher(fixedCompletion("", domain.TokenUsage{}), DefaultDispatcherConfig, nil)
	defer d.Stop()

	_, err := d.Complete(context.Background(), helloPrompt)

	assert.Error(t, err)
}

func TestDispatcher_Timeout(t *testing.T) {
	completionRepo := &mockCompletionRepo{
		complete: func(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	d := NewCompletionDispatcher(completionRepo, DispatcherConfig{Workers: 1, Timeout: 50 * time.Millisecond}, nil)
	defer d.Stop()

	start := time.Now()
	_, err := d.Complete(context.Background(), helloPrompt)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDispatcher_SlowCallDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	completionRepo := &mockCompletionRepo{
		complete: func(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error) {
			if messages[len(messages)-1].Content == "slow" {
				<-release
			}
			return &domain.Completion{Text: "ok"}, nil
		},
	}
	d := NewCompletionDispatcher(completionRepo, DispatcherConfig{Workers: 2, Timeout: 5 * time.Second}, nil)
	defer d.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = d.Complete(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "slow"}})
	}()

	completion, err := d.Complete(context.Background(), helloPrompt)
	require.NoError(t, err)
	assert.Equal(t, "ok", completion.Text)

	close(release)
	wg.Wait()
}

func TestDispatcher_PanicRecovered(t *testing.T) {
	completionRepo := &mockCompletionRepo{
		complete: func(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error) {
			panic("boom")
		},
	}
	d := NewCompletionDispatcher(completionRepo, DispatcherConfig{Workers: 1, Timeout: time.Second}, nil)
	defer d.Stop()

	_, err := d.Complete(context.Background(), helloPrompt)
	assert.Error(t, err)

	// the worker survives the panic
	completionRepo.complete = func(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error) {
		return &domain.Completion{Text: "fine"}, nil
	}
	completion, err := d.Complete(context.Background(), helloPrompt)
	require.NoError(t, err)
	assert.Equal(t, "fine", completion.Text)
}

func TestDispatcher_Stopped(t *testing.T) {
	d := NewCompletionDispatcher(fixedCompletion("x", domain.TokenUsage{}), DefaultDispatcherConfig, nil)
	d.Stop()
	d.Stop()

	_, err := d.Complete(context.Background(), helloPrompt)

	assert.ErrorIs(t, err, ErrDispatcherStopped)
}
