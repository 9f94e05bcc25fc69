// Package webhook receives completion callbacks from generation providers.
// One endpoint serves every provider; identification happens inside the
// mapper registry, not in routing.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"artforge.app/orchestrator/common/logger"
	"artforge.app/orchestrator/internal/mapper"
	"artforge.app/orchestrator/internal/service"
)

type ProviderWebhookHandler struct {
	registry   *mapper.Registry
	completion service.CompletionService
}

func NewProviderWebhookHandler(registry *mapper.Registry, completion service.CompletionService) *ProviderWebhookHandler {
	return &ProviderWebhookHandler{
		registry:   registry,
		completion: completion,
	}
}

// HandleCallback identifies the sending provider, normalizes the payload,
// and delegates to the completion service. Only an unidentifiable payload
// earns a 400; everything else is acked with 200 so providers don't retry
// deliveries we have already absorbed.
func (h *ProviderWebhookHandler) HandleCallback(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var bodyMap map[string]any
	if err := json.Unmarshal(body, &bodyMap); err != nil {
		slog.WarnContext(ctx, "webhook payload is not valid JSON", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	headers := make(map[string]string)
	for key, values := range c.Request.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	cb, err := h.registry.Resolve(ctx, bodyMap, headers)
	if err != nil {
		if errors.Is(err, mapper.ErrUnknownProvider) {
			slog.WarnContext(ctx, "webhook from unidentifiable provider",
				"body", logger.Truncate(string(body), 512))
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
			return
		}
		// Identified provider, malformed payload. Ack it; a redelivery of the
		// same broken payload will never parse either.
		slog.ErrorContext(ctx, "failed to normalize webhook payload", "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "payload not processable"})
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Provider: logger.Ptr(cb.Provider),
		TaskID:   logger.Ptr(cb.TaskID),
	})

	if err := h.completion.HandleCallback(ctx, cb); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			// A task we never submitted, or a callback that outlived its job
			// row. Nothing to settle.
			slog.WarnContext(ctx, "callback for unknown task, ignoring")
			c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "unknown task"})
			return
		}
		slog.ErrorContext(ctx, "failed to process provider callback", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process callback"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
