package repo

import (
	"context"

	"github.com/netocloud/slack-relay/internal/biz/domain"
)

// MessageRepo is the messaging platform interface
// Responsible for reactions and replies on Slack
type MessageRepo interface {
	// AddReaction adds an emoji reaction to a message
	AddReaction(ctx context.Context, ref domain.MessageRef, name string) error

	// RemoveReaction removes an emoji reaction previously added by the bot
	RemoveReaction(ctx context.Context, ref domain.MessageRef, name string) error

	// PostMessage posts a text message to a channel
	PostMessage(ctx context.Context, channelID, text string) error

	// BotUserID returns the bot's own user id (empty if unknown)
	BotUserID(ctx context.Context) (string, error)
}
