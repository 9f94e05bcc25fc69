package dto

import (
	"encoding/json"
	"time"

	"artforge.app/orchestrator/internal/model"
)

type SubmitGenerationRequest struct {
	UserID int64           `json:"user_id" binding:"required"`
	Kind   string          `json:"kind" binding:"required"`
	Prompt string          `json:"prompt" binding:"required"`
	Params json.RawMessage `json:"params,omitempty"`
}

type JobResponse struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Kind            string          `json:"kind"`
	Status          string          `json:"status"`
	ReservedCredits int64           `json:"reserved_credits"`
	PrimaryProvider string          `json:"primary_provider"`
	ActiveProvider  *string         `json:"active_provider,omitempty"`
	ResultRef       *string         `json:"result_ref,omitempty"`
	FailureReason   *string         `json:"failure_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Params          json.RawMessage `json:"params,omitempty"`
}

func NewJobResponse(job *model.Job) JobResponse {
	return JobResponse{
		ID:              job.ID,
		UserID:          job.UserID,
		Kind:            string(job.Kind),
		Status:          string(job.Status),
		ReservedCredits: job.ReservedCredits,
		PrimaryProvider: job.PrimaryProvider,
		ActiveProvider:  job.ActiveProvider,
		ResultRef:       job.ResultRef,
		FailureReason:   job.FailureReason,
		CreatedAt:       job.CreatedAt,
		SubmittedAt:     job.SubmittedAt,
		CompletedAt:     job.CompletedAt,
		Params:          job.Params,
	}
}

type BalanceResponse struct {
	UserID  int64 `json:"user_id"`
	Credits int64 `json:"credits"`
}
