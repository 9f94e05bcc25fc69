package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"artforge.app/orchestrator/common/logger"
	"artforge.app/orchestrator/internal/mapper"
	"artforge.app/orchestrator/internal/model"
	"artforge.app/orchestrator/internal/queue"
	"artforge.app/orchestrator/internal/store"
)

type CompletionService interface {
	// HandleCallback applies one normalized provider callback. Safe to call
	// any number of times with the same delivery.
	HandleCallback(ctx context.Context, cb mapper.Callback) error

	// Cancel fails a live job on an operator's behalf and releases its hold.
	Cancel(ctx context.Context, jobID int64) (*model.Job, error)
}

type completionService struct {
	jobs     store.JobStore
	txRunner TxRunner
	queue    queue.Producer
	logger   *slog.Logger
}

func NewCompletionService(jobs store.JobStore, txRunner TxRunner, queue queue.Producer, logger *slog.Logger) CompletionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &completionService{
		jobs:     jobs,
		txRunner: txRunner,
		queue:    queue,
		logger:   logger,
	}
}

// HandleCallback settles the job named by the callback. The terminal claim
// and the ledger settlement commit in one transaction, so the charge or
// refund happens exactly once no matter how many times the provider
// delivers. The user notification is enqueued only after commit.
func (s *completionService) HandleCallback(ctx context.Context, cb mapper.Callback) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Provider: logger.Ptr(cb.Provider),
		TaskID:   logger.Ptr(cb.TaskID),
	})

	if cb.Outcome == model.OutcomeProcessing {
		if err := s.jobs.MarkProcessing(ctx, cb.Provider, cb.TaskID); err != nil {
			return fmt.Errorf("marking job processing: %w", err)
		}
		return nil
	}

	job, err := s.jobs.GetByProviderTask(ctx, cb.Provider, cb.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("fetching job by provider task: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		JobID:  logger.Ptr(job.ID),
		UserID: logger.Ptr(job.UserID),
	})

	status := model.StatusCompleted
	if cb.Outcome == model.OutcomeFailure {
		status = model.StatusFailed
	}

	var claimed bool
	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		var err error
		claimed, err = sp.Jobs().ClaimTerminal(ctx, job.ID, status, cb.ArtifactRef, cb.ErrorDetail)
		if err != nil {
			return fmt.Errorf("claiming terminal transition: %w", err)
		}
		if !claimed {
			return nil
		}
		if status == model.StatusCompleted {
			if err := sp.Ledger().FinalizeCharge(ctx, job.ID); err != nil {
				return fmt.Errorf("finalizing charge: %w", err)
			}
		} else {
			if err := sp.Ledger().Refund(ctx, job.ID); err != nil {
				return fmt.Errorf("refunding reservation: %w", err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if !claimed {
		s.logger.DebugContext(ctx, "duplicate completion delivery ignored",
			"status", job.Status, "outcome", cb.Outcome)
		return nil
	}

	s.logger.InfoContext(ctx, "job settled", "status", status, "credits", job.ReservedCredits)
	s.enqueueNotification(ctx, job, status, cb)
	return nil
}

// Cancel is the admin path out of a live job. It reuses the same terminal
// claim as the completion handler, with the dedicated refunded status.
func (s *completionService) Cancel(ctx context.Context, jobID int64) (*model.Job, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{JobID: logger.Ptr(jobID)})

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("fetching job: %w", err)
	}

	reason := "cancelled by operator"
	var claimed bool
	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		var err error
		claimed, err = sp.Jobs().ClaimTerminal(ctx, jobID, model.StatusRefunded, nil, &reason)
		if err != nil {
			return fmt.Errorf("cancelling job: %w", err)
		}
		if !claimed {
			return nil
		}
		if err := sp.Ledger().Refund(ctx, jobID); err != nil {
			return fmt.Errorf("refunding reservation: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if !claimed {
		return nil, ErrAlreadyTerminal
	}

	s.logger.InfoContext(ctx, "job cancelled and refunded", "user_id", job.UserID)

	if err := s.queue.Enqueue(ctx, queue.Notification{
		JobID:   jobID,
		UserID:  job.UserID,
		Kind:    queue.NotificationFailure,
		Reason:  reason,
		Attempt: 1,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue cancellation notification", "error", err)
	}

	return s.jobs.GetByID(ctx, jobID)
}

// enqueueNotification hands the settled outcome to the delivery pipeline.
// The job is already settled at this point, so an enqueue failure is logged
// and swallowed rather than bounced back to the provider.
func (s *completionService) enqueueNotification(ctx context.Context, job *model.Job, status model.JobStatus, cb mapper.Callback) {
	n := queue.Notification{
		JobID:   job.ID,
		UserID:  job.UserID,
		Attempt: 1,
	}
	if status == model.StatusCompleted {
		n.Kind = queue.NotificationSuccess
		if cb.ArtifactRef != nil {
			n.ArtifactRef = *cb.ArtifactRef
		}
	} else {
		n.Kind = queue.NotificationFailure
		if cb.ErrorDetail != nil {
			n.Reason = *cb.ErrorDetail
		}
	}

	if err := s.queue.Enqueue(ctx, n); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue completion notification",
			"error", err, "kind", n.Kind)
	}
}
