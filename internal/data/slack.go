package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/netocloud/slack-relay/internal/biz/domain"
	"github.com/netocloud/slack-relay/internal/biz/repo"
)

// SlackAPI is the subset of the slack-go client used by the relay
type SlackAPI interface {
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	RemoveReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
}

// Errors that leave the reaction in the wanted state
var benignReactionErrors = map[string]bool{
	"already_reacted": true,
	"no_reaction":     true,
}

const (
	maxRateLimitRetries = 2
	maxRetryWait        = 5 * time.Second
)

// slackRepo implements the Slack message repository
type slackRepo struct {
	api    SlackAPI
	logger *slog.Logger

	mu        sync.Mutex
	botUserID string
}

// NewSlackClient creates the slack-go client. apiURL overrides the Web API base URL when set.
func NewSlackClient(token, apiURL string) *slack.Client {
	opts := []slack.Option{}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return slack.New(token, opts...)
}

// NewSlackRepo creates a Slack repository
func NewSlackRepo(api SlackAPI, logger *slog.Logger) repo.MessageRepo {
	if api == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &slackRepo{api: api, logger: logger.With(slog.String("component", "slack"))}
}

// AddReaction adds an emoji reaction to the message
func (r *slackRepo) AddReaction(ctx context.Context, ref domain.MessageRef, name string) error {
	err := r.withRetry(ctx, "reactions.add", func() error {
		return r.api.AddReactionContext(ctx, name, slack.NewRefToMessage(ref.ChannelID, ref.TS))
	})
	return ignoreBenign(err)
}

// RemoveReaction removes an emoji reaction from the message
func (r *slackRepo) RemoveReaction(ctx context.Context, ref domain.MessageRef, name string) error {
	err := r.withRetry(ctx, "reactions.remove", func() error {
		return r.api.RemoveReactionContext(ctx, name, slack.NewRefToMessage(ref.ChannelID, ref.TS))
	})
	return ignoreBenign(err)
}

// PostMessage posts text to the channel
func (r *slackRepo) PostMessage(ctx context.Context, channelID, text string) error {
	return r.withRetry(ctx, "chat.postMessage", func() error {
		_, _, err := r.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
		return err
	})
}

// BotUserID returns the bot's own user id, resolved once through auth.test
func (r *slackRepo) BotUserID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.botUserID != "" {
		return r.botUserID, nil
	}

	var resp *slack.AuthTestResponse
	err := r.withRetry(ctx, "auth.test", func() error {
		var err error
		resp, err = r.api.AuthTestContext(ctx)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("auth.test: %w", err)
	}
	r.botUserID = resp.UserID
	return r.botUserID, nil
}

// withRetry retries Slack rate limit responses, honoring Retry-After
func (r *slackRepo) withRetry(ctx context.Context, method string, call func() error) error {
	for attempt := 0; ; attempt++ {
		err := call()
		var rateErr *slack.RateLimitedError
		if err == nil || !errors.As(err, &rateErr) || attempt >= maxRateLimitRetries {
			return err
		}

		wait := min(rateErr.RetryAfter, maxRetryWait)
		r.logger.Warn("rate limited",
			slog.String("method", method),
			slog.Duration("retry_after", wait),
			slog.Int("attempt", attempt+1))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func ignoreBenign(err error) error {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) && benignReactionErrors[slackErr.Err] {
		return nil
	}
	return err
}
