package model

import (
	"encoding/json"
	"time"
)

type (
	JobStatus      string
	GenerationKind string
	Outcome        string
)

const (
	StatusPending    JobStatus = "pending"
	StatusSubmitted  JobStatus = "submitted"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusRefunded   JobStatus = "refunded"
)

const (
	KindVideo  GenerationKind = "video"
	KindImage  GenerationKind = "image"
	KindSpeech GenerationKind = "speech"
)

// Outcome is the canonical result reported by a provider callback after
// normalization, regardless of the provider's own status vocabulary.
const (
	OutcomeSuccess    Outcome = "success"
	OutcomeFailure    Outcome = "failure"
	OutcomeProcessing Outcome = "processing"
)

// Terminal reports whether a job in this status may never transition again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRefunded
}

func (k GenerationKind) Valid() bool {
	return k == KindVideo || k == KindImage || k == KindSpeech
}

// Job is one generation request from submission to completion. Credits are
// reserved before the first provider attempt and settled exactly once when
// the job reaches a terminal status.
type Job struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Kind            GenerationKind  `json:"kind"`
	Prompt          string          `json:"prompt"`
	Params          json.RawMessage `json:"params,omitempty"`
	ReservedCredits int64           `json:"reserved_credits"`

	// PrimaryProvider is the first provider in the fallback chain at
	// submission time. ActiveProvider is whichever provider actually accepted
	// the request; the two differ after a fallback.
	PrimaryProvider string  `json:"primary_provider"`
	ActiveProvider  *string `json:"active_provider,omitempty"`
	ProviderTaskID  *string `json:"provider_task_id,omitempty"`

	Status        JobStatus `json:"status"`
	ResultRef     *string   `json:"result_ref,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
