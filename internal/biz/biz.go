package biz

import (
	"github.com/netocloud/slack-relay/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Verifier    *usecase.SignatureVerifier
	Dedup       *usecase.Deduplicator
	Filter      *usecase.FilterUsecase
	Context     *usecase.ContextBuilderUsecase
	Dispatcher  *usecase.CompletionDispatcher
	Reaction    *usecase.ReactionUsecase
	Persistence *usecase.PersistenceUsecase
	Relay       *usecase.RelayUsecase
}
