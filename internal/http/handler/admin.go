package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"artforge.app/orchestrator/internal/breaker"
	"artforge.app/orchestrator/internal/http/dto"
	"artforge.app/orchestrator/internal/service"
)

// AdminHandler exposes the operator surface: breaker introspection and the
// manual job escape hatch.
type AdminHandler struct {
	breakers   *breaker.Registry
	completion service.CompletionService
}

func NewAdminHandler(breakers *breaker.Registry, completion service.CompletionService) *AdminHandler {
	return &AdminHandler{
		breakers:   breakers,
		completion: completion,
	}
}

// ListBreakers returns a snapshot of every circuit's state and counters.
func (h *AdminHandler) ListBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"breakers": h.breakers.Stats()})
}

// ResetBreaker forces one circuit back to closed with cleared counters.
func (h *AdminHandler) ResetBreaker(c *gin.Context) {
	name := c.Param("name")
	if !h.breakers.Reset(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown breaker"})
		return
	}

	slog.InfoContext(c.Request.Context(), "breaker manually reset", "dependency", name)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "breaker": name})
}

// CancelJob fails a live job and refunds its hold.
func (h *AdminHandler) CancelJob(c *gin.Context) {
	ctx := c.Request.Context()

	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.completion.Cancel(ctx, jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(err, service.ErrAlreadyTerminal):
			c.JSON(http.StatusConflict, gin.H{"error": "job already terminal"})
		default:
			slog.ErrorContext(ctx, "failed to cancel job", "error", err, "job_id", jobID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel job"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewJobResponse(job))
}
