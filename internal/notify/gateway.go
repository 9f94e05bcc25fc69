package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"artforge.app/orchestrator/core/config"
	"artforge.app/orchestrator/internal/reliable"
)

// GatewayNotifier posts notifications to the bot gateway, which owns the
// actual chat delivery. Calls go through a reliable client like every other
// outbound dependency.
type GatewayNotifier struct {
	baseURL string
	client  *http.Client
	rc      *reliable.Client
}

func NewGatewayNotifier(cfg config.NotifierConfig, rc *reliable.Client) *GatewayNotifier {
	return &GatewayNotifier{
		baseURL: cfg.BotGatewayURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		rc:      rc,
	}
}

type notificationPayload struct {
	UserID      int64  `json:"user_id"`
	Kind        string `json:"kind"`
	ArtifactRef string `json:"artifact_ref,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (n *GatewayNotifier) NotifySuccess(ctx context.Context, userID int64, artifactRef string) error {
	return n.post(ctx, notificationPayload{UserID: userID, Kind: "success", ArtifactRef: artifactRef})
}

func (n *GatewayNotifier) NotifyFailure(ctx context.Context, userID int64, reason string) error {
	return n.post(ctx, notificationPayload{UserID: userID, Kind: "failure", Reason: reason})
}

func (n *GatewayNotifier) post(ctx context.Context, payload notificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	return n.rc.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v1/notifications", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building notification request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("posting notification: %w", err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body) //nolint:errcheck

		if resp.StatusCode >= 300 {
			return fmt.Errorf("bot gateway status %d", resp.StatusCode)
		}
		return nil
	})
}
