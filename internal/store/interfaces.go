package store

import (
	"context"
	"errors"

	"artforge.app/orchestrator/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// JobStore defines the contract for job data access. The pre-terminal
// transitions belong to the submitter; ClaimTerminal is the completion
// handler's single, race-free path out of the live states.
type JobStore interface {
	Create(ctx context.Context, job *model.Job) error
	GetByID(ctx context.Context, id int64) (*model.Job, error)

	// GetByProviderTask looks a job up by its (provider, task id) pair.
	// Task ids are only unique within one provider.
	GetByProviderTask(ctx context.Context, provider, taskID string) (*model.Job, error)

	// MarkSubmitted records provider acceptance: pending -> submitted.
	MarkSubmitted(ctx context.Context, id int64, provider, taskID string) error

	// MarkProcessing applies a provider progress update: submitted ->
	// processing. A no-op in any other status.
	MarkProcessing(ctx context.Context, provider, taskID string) error

	// ClaimTerminal atomically moves a live job (pending/submitted/
	// processing) to the given terminal status. Returns false without
	// modifying anything if the job is already terminal, which makes
	// duplicate webhook deliveries harmless.
	ClaimTerminal(ctx context.Context, id int64, status model.JobStatus, resultRef, failureReason *string) (bool, error)
}

// LedgerStore defines the contract for balance and credit-hold access.
// Every mutation is a single conditional statement; no method reads a
// balance and writes it back.
type LedgerStore interface {
	// Reserve soft-debits amount from the user's balance and records a hold
	// keyed by job id. Returns false when the balance is insufficient.
	// Must run inside a transaction.
	Reserve(ctx context.Context, jobID, userID, amount int64) (bool, error)

	// FinalizeCharge converts the job's hold to a real charge. Idempotent:
	// a second call (or a call after a refund) changes nothing.
	FinalizeCharge(ctx context.Context, jobID int64) error

	// Refund releases the job's hold back to the user's balance. Idempotent
	// for the same reason. Must run inside a transaction.
	Refund(ctx context.Context, jobID int64) error

	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	GetHold(ctx context.Context, jobID int64) (*model.CreditHold, error)
}
