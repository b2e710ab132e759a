package repo

import (
	"context"
	"time"

	"github.com/netocloud/slack-relay/internal/biz/domain"
)

// TurnRow is a normalized warehouse row
type TurnRow struct {
	UserID       string
	MessageTS    string
	ChannelID    string
	MessageText  string
	BotResponse  string
	MessageType  string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CreatedAt    string
	UpdatedAt    string
}

// TurnRepo is the conversation turn repository interface
// Responsible for warehouse persistence
type TurnRepo interface {
	// Append inserts one row
	Append(ctx context.Context, row TurnRow) error

	// RecentTurns returns up to limit turns of message type "message" for the
	// (channel, user) pair, most recent first
	RecentTurns(ctx context.Context, channelID, userID string, limit int) ([]domain.ConversationTurn, error)

	// Available reports whether a warehouse connection is currently established
	Available() bool
}

// TimeLayout is the layout of timestamp columns in the warehouse
const TimeLayout = "2006-01-02 15:04:05"

// MessageTimeLayout is the layout of message_ts. It keeps the microseconds of
// the Slack ts so turns sent within one second still sort in order.
const MessageTimeLayout = "2006-01-02 15:04:05.000000"

// ParseRowTime parses a timestamp column value, with or without fractional seconds
func ParseRowTime(value string, loc *time.Location) time.Time {
	t, err := time.ParseInLocation(TimeLayout, value, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}
