package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"artforge.app/orchestrator/common/id"
	"artforge.app/orchestrator/common/logger"
	"artforge.app/orchestrator/internal/breaker"
	"artforge.app/orchestrator/internal/model"
	"artforge.app/orchestrator/internal/provider"
	"artforge.app/orchestrator/internal/store"
)

const maxPromptLength = 4096

type SubmitParams struct {
	UserID int64           `json:"user_id"`
	Kind   string          `json:"kind"`
	Prompt string          `json:"prompt"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ProviderCaller is the outbound face of one provider as the submitter sees
// it: already wrapped in its reliable client.
type ProviderCaller interface {
	Name() string
	Submit(ctx context.Context, req provider.SubmitRequest) (provider.SubmitResult, error)
}

type SubmissionService interface {
	Submit(ctx context.Context, params SubmitParams) (*model.Job, error)
	GetJob(ctx context.Context, jobID int64) (*model.Job, error)
	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
}

type submissionService struct {
	jobs        store.JobStore
	ledger      store.LedgerStore
	txRunner    TxRunner
	chains      map[model.GenerationKind][]ProviderCaller
	costs       map[model.GenerationKind]int64
	callbackURL string
	logger      *slog.Logger
}

func NewSubmissionService(
	jobs store.JobStore,
	ledger store.LedgerStore,
	txRunner TxRunner,
	chains map[model.GenerationKind][]ProviderCaller,
	costs map[model.GenerationKind]int64,
	callbackURL string,
	logger *slog.Logger,
) SubmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &submissionService{
		jobs:        jobs,
		ledger:      ledger,
		txRunner:    txRunner,
		chains:      chains,
		costs:       costs,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// Submit reserves credits, creates the job, and walks the provider fallback
// chain until one provider accepts. Credits are reserved before the first
// attempt and refunded synchronously if the whole chain declines, so a job
// never holds credits without a provider working on it.
func (s *submissionService) Submit(ctx context.Context, params SubmitParams) (*model.Job, error) {
	kind := model.GenerationKind(params.Kind)
	if err := s.validate(params, kind); err != nil {
		return nil, err
	}

	chain := s.chains[kind]
	cost := s.costs[kind]

	job := &model.Job{
		ID:              id.New(),
		UserID:          params.UserID,
		Kind:            kind,
		Prompt:          params.Prompt,
		Params:          params.Params,
		ReservedCredits: cost,
		PrimaryProvider: chain[0].Name(),
		Status:          model.StatusPending,
		CreatedAt:       time.Now(),
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		JobID:  logger.Ptr(job.ID),
		UserID: logger.Ptr(job.UserID),
	})

	// Reservation and job creation commit together: a hold without a job row
	// (or the reverse) must be impossible.
	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		ok, err := sp.Ledger().Reserve(ctx, job.ID, job.UserID, cost)
		if err != nil {
			return fmt.Errorf("reserving credits: %w", err)
		}
		if !ok {
			return ErrInsufficientBalance
		}
		if err := sp.Jobs().Create(ctx, job); err != nil {
			return fmt.Errorf("creating job: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	req := provider.SubmitRequest{
		JobID:       job.ID,
		Kind:        kind,
		Prompt:      params.Prompt,
		Params:      params.Params,
		CallbackURL: s.callbackURL,
	}

	reasons := make([]string, 0, len(chain))
	for _, caller := range chain {
		result, err := caller.Submit(ctx, req)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %s", caller.Name(), hopReason(err)))
			s.logger.WarnContext(ctx, "provider declined, advancing fallback chain",
				"provider", caller.Name(), "reason", hopReason(err), "error", err)
			continue
		}

		if err := s.jobs.MarkSubmitted(ctx, job.ID, caller.Name(), result.TaskID); err != nil {
			// The provider accepted but we failed to record it, so the later
			// webhook can never match the task. Release the hold now; the
			// terminal claim makes that webhook a harmless no-op.
			reason := "failed to record provider acceptance"
			if ferr := s.failAndRefund(ctx, job.ID, reason); ferr != nil {
				s.logger.ErrorContext(ctx, "failed to release hold after bookkeeping error", "error", ferr)
			}
			return nil, fmt.Errorf("marking job submitted: %w", err)
		}

		now := time.Now()
		job.Status = model.StatusSubmitted
		job.ActiveProvider = logger.Ptr(caller.Name())
		job.ProviderTaskID = logger.Ptr(result.TaskID)
		job.SubmittedAt = &now

		s.logger.InfoContext(ctx, "job submitted to provider",
			"provider", caller.Name(), "task_id", result.TaskID, "fallbacks_used", len(reasons))
		return job, nil
	}

	// Every provider declined. Fail the job and release the hold in one
	// transaction; the caller gets a synchronous answer, not a notification.
	exhausted := &ProvidersExhaustedError{Kind: string(kind), Reasons: reasons}
	if err := s.failAndRefund(ctx, job.ID, exhausted.Error()); err != nil {
		return nil, err
	}

	s.logger.ErrorContext(ctx, "provider chain exhausted, job failed and refunded",
		"kind", kind, "providers_tried", len(chain))
	return nil, exhausted
}

// failAndRefund claims the job into FAILED and releases its hold in one
// transaction. The claim guard keeps it safe to call against a job that has
// already settled.
func (s *submissionService) failAndRefund(ctx context.Context, jobID int64, reason string) error {
	return s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		claimed, err := sp.Jobs().ClaimTerminal(ctx, jobID, model.StatusFailed, nil, &reason)
		if err != nil {
			return fmt.Errorf("failing job: %w", err)
		}
		if !claimed {
			return nil
		}
		if err := sp.Ledger().Refund(ctx, jobID); err != nil {
			return fmt.Errorf("refunding reservation: %w", err)
		}
		return nil
	})
}

func (s *submissionService) validate(params SubmitParams, kind model.GenerationKind) error {
	if params.UserID <= 0 {
		return &ValidationError{Field: "user_id", Reason: "must be positive"}
	}
	if !kind.Valid() {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown generation kind %q", params.Kind)}
	}
	if params.Prompt == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	if len(params.Prompt) > maxPromptLength {
		return &ValidationError{Field: "prompt", Reason: fmt.Sprintf("exceeds %d characters", maxPromptLength)}
	}
	if len(s.chains[kind]) == 0 {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("no provider chain configured for %q", params.Kind)}
	}
	return nil
}

func (s *submissionService) GetJob(ctx context.Context, jobID int64) (*model.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("fetching job: %w", err)
	}
	return job, nil
}

func (s *submissionService) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching balance: %w", err)
	}
	return balance, nil
}

// hopReason condenses a chain-hop failure into the short label stored on the
// failed job.
func hopReason(err error) string {
	switch {
	case breaker.IsOpen(err):
		return "circuit open"
	case provider.IsRejected(err):
		return "rejected"
	case provider.IsUnreachable(err):
		return "unreachable"
	default:
		return "error"
	}
}
