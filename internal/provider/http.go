package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"artforge.app/orchestrator/core/config"
)

// httpProvider speaks the JSON-over-HTTP dialect shared by the generation
// vendors we integrate: POST /v1/generations to submit, GET /v1/health to
// probe. Vendor-specific payload shapes only exist on the inbound webhook
// side, where the mapper normalizes them.
type httpProvider struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTP builds a provider from its config. The HTTP client timeout bounds
// every call; a timeout surfaces as an UnreachableError and counts as a
// failure for both retry and breaker accounting.
func NewHTTP(cfg config.ProviderConfig) Provider {
	return &httpProvider{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *httpProvider) Name() string {
	return p.name
}

type submitPayload struct {
	Reference   string          `json:"reference"`
	Kind        string          `json:"kind"`
	Prompt      string          `json:"prompt"`
	Params      json.RawMessage `json:"params,omitempty"`
	CallbackURL string          `json:"callback_url"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
	ID     string `json:"id"`
}

func (p *httpProvider) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	payload := submitPayload{
		Reference:   strconv.FormatInt(req.JobID, 10),
		Kind:        string(req.Kind),
		Prompt:      req.Prompt,
		Params:      req.Params,
		CallbackURL: req.CallbackURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("marshaling submit payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/generations", bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("building submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return SubmitResult{}, &UnreachableError{Provider: p.name, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SubmitResult{}, &UnreachableError{Provider: p.name, Cause: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// accepted
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return SubmitResult{}, &UnreachableError{
			Provider: p.name,
			Cause:    fmt.Errorf("status %d: %s", resp.StatusCode, respBody),
		}
	default:
		return SubmitResult{}, &RejectedError{
			Provider: p.name,
			Status:   resp.StatusCode,
			Detail:   string(respBody),
		}
	}

	var parsed submitResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return SubmitResult{}, &UnreachableError{Provider: p.name, Cause: fmt.Errorf("decoding response: %w", err)}
	}

	taskID := parsed.TaskID
	if taskID == "" {
		taskID = parsed.ID
	}
	if taskID == "" {
		return SubmitResult{}, &UnreachableError{Provider: p.name, Cause: fmt.Errorf("response missing task id")}
	}

	return SubmitResult{TaskID: taskID}, nil
}

func (p *httpProvider) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return &UnreachableError{Provider: p.name, Cause: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return &UnreachableError{Provider: p.name, Cause: fmt.Errorf("health status %d", resp.StatusCode)}
	}
	return nil
}
