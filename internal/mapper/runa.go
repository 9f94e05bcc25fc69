package mapper

import (
	"context"
	"fmt"

	"artforge.app/orchestrator/internal/model"
)

const runaProvider = "runa"

// RunaNormalizer handles Runa's video callbacks. Runa sends an
// "X-Runa-Event" header and a flat payload:
//
//	{"task_id": "...", "state": "succeeded", "output": {"video_url": "..."}, "error": {"message": "..."}}
type RunaNormalizer struct{}

func NewRunaNormalizer() *RunaNormalizer {
	return &RunaNormalizer{}
}

func (n *RunaNormalizer) Provider() string {
	return runaProvider
}

func (n *RunaNormalizer) MatchHeader(headers map[string]string) bool {
	return headers["X-Runa-Event"] != ""
}

// MatchShape: Runa is the only dialect with task_id + state.
func (n *RunaNormalizer) MatchShape(body map[string]any) bool {
	return stringField(body, "task_id") != "" && stringField(body, "state") != ""
}

func (n *RunaNormalizer) Normalize(_ context.Context, body map[string]any, _ map[string]string) (Callback, error) {
	taskID := stringField(body, "task_id")
	if taskID == "" {
		return Callback{}, fmt.Errorf("missing task_id")
	}

	state := stringField(body, "state")
	cb := Callback{
		Provider: runaProvider,
		TaskID:   taskID,
	}

	switch state {
	case "succeeded":
		cb.Outcome = model.OutcomeSuccess
		cb.ArtifactRef = ptrIfSet(stringField(nestedMap(body, "output"), "video_url"))
	case "failed", "canceled":
		cb.Outcome = model.OutcomeFailure
		detail := stringField(nestedMap(body, "error"), "message")
		if detail == "" {
			detail = "generation " + state
		}
		cb.ErrorDetail = &detail
	case "queued", "processing":
		cb.Outcome = model.OutcomeProcessing
	default:
		return Callback{}, fmt.Errorf("unknown state %q", state)
	}

	return cb, nil
}
