package mapper

import (
	"context"
	"fmt"

	"artforge.app/orchestrator/internal/model"
)

const lumenProvider = "lumen"

// LumenNormalizer handles Lumen's callbacks. Lumen signs deliveries with an
// "X-Lumen-Signature" header and uses a flat payload:
//
//	{"id": "...", "status": "completed", "result_url": "...", "failure_reason": "..."}
type LumenNormalizer struct{}

func NewLumenNormalizer() *LumenNormalizer {
	return &LumenNormalizer{}
}

func (n *LumenNormalizer) Provider() string {
	return lumenProvider
}

func (n *LumenNormalizer) MatchHeader(headers map[string]string) bool {
	return headers["X-Lumen-Signature"] != ""
}

func (n *LumenNormalizer) MatchShape(body map[string]any) bool {
	if stringField(body, "id") == "" || stringField(body, "status") == "" {
		return false
	}
	_, hasResult := body["result_url"]
	_, hasReason := body["failure_reason"]
	return hasResult || hasReason
}

func (n *LumenNormalizer) Normalize(_ context.Context, body map[string]any, _ map[string]string) (Callback, error) {
	taskID := stringField(body, "id")
	if taskID == "" {
		return Callback{}, fmt.Errorf("missing id")
	}

	cb := Callback{
		Provider: lumenProvider,
		TaskID:   taskID,
	}

	switch status := stringField(body, "status"); status {
	case "completed":
		cb.Outcome = model.OutcomeSuccess
		cb.ArtifactRef = ptrIfSet(stringField(body, "result_url"))
	case "error":
		cb.Outcome = model.OutcomeFailure
		detail := stringField(body, "failure_reason")
		if detail == "" {
			detail = "generation error"
		}
		cb.ErrorDetail = &detail
	case "running":
		cb.Outcome = model.OutcomeProcessing
	default:
		return Callback{}, fmt.Errorf("unknown status %q", status)
	}

	return cb, nil
}
