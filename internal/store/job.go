package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"artforge.app/orchestrator/core/db"
	"artforge.app/orchestrator/internal/model"
)

type jobStore struct {
	db db.DBTX
}

func newJobStore(dbtx db.DBTX) JobStore {
	return &jobStore{db: dbtx}
}

const jobColumns = `id, user_id, kind, prompt, params, reserved_credits,
	primary_provider, active_provider, provider_task_id, status,
	result_ref, failure_reason, created_at, submitted_at, completed_at`

func (s *jobStore) Create(ctx context.Context, job *model.Job) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO jobs (id, user_id, kind, prompt, params, reserved_credits, primary_provider, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.UserID, string(job.Kind), job.Prompt, job.Params,
		job.ReservedCredits, job.PrimaryProvider, string(job.Status), job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

func (s *jobStore) GetByID(ctx context.Context, id int64) (*model.Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *jobStore) GetByProviderTask(ctx context.Context, provider, taskID string) (*model.Job, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE active_provider = $1 AND provider_task_id = $2`,
		provider, taskID,
	)
	return scanJob(row)
}

func (s *jobStore) MarkSubmitted(ctx context.Context, id int64, provider, taskID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET status = 'submitted', active_provider = $2, provider_task_id = $3, submitted_at = now()
		WHERE id = $1 AND status = 'pending'`,
		id, provider, taskID,
	)
	if err != nil {
		return fmt.Errorf("marking job submitted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *jobStore) MarkProcessing(ctx context.Context, provider, taskID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET status = 'processing'
		WHERE active_provider = $1 AND provider_task_id = $2 AND status = 'submitted'`,
		provider, taskID,
	)
	if err != nil {
		return fmt.Errorf("marking job processing: %w", err)
	}
	return nil
}

func (s *jobStore) ClaimTerminal(ctx context.Context, id int64, status model.JobStatus, resultRef, failureReason *string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("status %q is not terminal", status)
	}

	// The status filter is the idempotence guard: only one of any number of
	// racing updates can move the row out of a live status.
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET status = $2, result_ref = $3, failure_reason = $4, completed_at = now()
		WHERE id = $1 AND status IN ('pending', 'submitted', 'processing')`,
		id, string(status), resultRef, failureReason,
	)
	if err != nil {
		return false, fmt.Errorf("claiming terminal status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var job model.Job
	err := row.Scan(
		&job.ID, &job.UserID, &job.Kind, &job.Prompt, &job.Params,
		&job.ReservedCredits, &job.PrimaryProvider, &job.ActiveProvider,
		&job.ProviderTaskID, &job.Status, &job.ResultRef, &job.FailureReason,
		&job.CreatedAt, &job.SubmittedAt, &job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}
