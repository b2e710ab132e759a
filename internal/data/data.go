package data

import (
	"log/slog"
	"time"

	"github.com/netocloud/slack-relay/internal/biz/repo"
)

// Repositories contains all repositories
type Repositories struct {
	Message    repo.MessageRepo
	Completion repo.CompletionRepo
	Turn       repo.TurnRepo
	Warehouse  *Warehouse
}

// NewRepositories creates all repositories. wh may be nil when no warehouse is configured.
func NewRepositories(
	slackAPI SlackAPI,
	completer ChatCompleter,
	params ModelParams,
	wh *Warehouse,
	turnLoc *time.Location,
	logger *slog.Logger,
) *Repositories {
	return &Repositories{
		Message:    NewSlackRepo(slackAPI, logger),
		Completion: NewOpenAIRepo(completer, params),
		Turn:       NewTurnRepo(wh, turnLoc),
		Warehouse:  wh,
	}
}

// Close releases the warehouse connection
func (r *Repositories) Close() error {
	if r.Warehouse == nil {
		return nil
	}
	return r.Warehouse.Close()
}
