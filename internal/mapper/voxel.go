package mapper

import (
	"context"
	"fmt"

	"artforge.app/orchestrator/internal/model"
)

const voxelProvider = "voxel"

// VoxelNormalizer handles Voxel's speech callbacks. Voxel sends an
// "X-Voxel-Notification" header and nests its task under "generation":
//
//	{"generation": {"id": "...", "status": "done"}, "audio_url": "...", "detail": "..."}
type VoxelNormalizer struct{}

func NewVoxelNormalizer() *VoxelNormalizer {
	return &VoxelNormalizer{}
}

func (n *VoxelNormalizer) Provider() string {
	return voxelProvider
}

func (n *VoxelNormalizer) MatchHeader(headers map[string]string) bool {
	return headers["X-Voxel-Notification"] != ""
}

func (n *VoxelNormalizer) MatchShape(body map[string]any) bool {
	gen := nestedMap(body, "generation")
	return gen != nil && stringField(gen, "id") != ""
}

func (n *VoxelNormalizer) Normalize(_ context.Context, body map[string]any, _ map[string]string) (Callback, error) {
	gen := nestedMap(body, "generation")
	if gen == nil {
		return Callback{}, fmt.Errorf("missing generation object")
	}
	taskID := stringField(gen, "id")
	if taskID == "" {
		return Callback{}, fmt.Errorf("missing generation.id")
	}

	cb := Callback{
		Provider: voxelProvider,
		TaskID:   taskID,
	}

	switch status := stringField(gen, "status"); status {
	case "done":
		cb.Outcome = model.OutcomeSuccess
		cb.ArtifactRef = ptrIfSet(stringField(body, "audio_url"))
	case "failed":
		cb.Outcome = model.OutcomeFailure
		detail := stringField(body, "detail")
		if detail == "" {
			detail = "speech generation failed"
		}
		cb.ErrorDetail = &detail
	case "pending", "synthesizing":
		cb.Outcome = model.OutcomeProcessing
	default:
		return Callback{}, fmt.Errorf("unknown status %q", status)
	}

	return cb, nil
}
