package service

import (
	"log/slog"

	"artforge.app/orchestrator/internal/model"
	"artforge.app/orchestrator/internal/queue"
	"artforge.app/orchestrator/internal/store"
)

// Services bundles the business services for the composition root.
type Services struct {
	Submission SubmissionService
	Completion CompletionService
}

func NewServices(
	stores *store.Stores,
	txRunner TxRunner,
	producer queue.Producer,
	chains map[model.GenerationKind][]ProviderCaller,
	costs map[model.GenerationKind]int64,
	callbackURL string,
	logger *slog.Logger,
) *Services {
	return &Services{
		Submission: NewSubmissionService(stores.Jobs(), stores.Ledger(), txRunner, chains, costs, callbackURL, logger),
		Completion: NewCompletionService(stores.Jobs(), txRunner, producer, logger),
	}
}
