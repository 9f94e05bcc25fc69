package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"artforge.app/orchestrator/internal/http/dto"
	"artforge.app/orchestrator/internal/service"
)

type GenerationHandler struct {
	submission service.SubmissionService
}

func NewGenerationHandler(submission service.SubmissionService) *GenerationHandler {
	return &GenerationHandler{submission: submission}
}

// Submit accepts a generation request from the bot layer. The response is
// synchronous: either the job was handed to a provider, or the caller learns
// exactly why not.
func (h *GenerationHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SubmitGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid generation request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.submission.Submit(ctx, service.SubmitParams{
		UserID: req.UserID,
		Kind:   req.Kind,
		Prompt: req.Prompt,
		Params: req.Params,
	})
	if err != nil {
		switch {
		case service.IsValidation(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInsufficientBalance):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient balance"})
		case service.IsProvidersExhausted(err):
			// Credits were already refunded by the submitter.
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "all providers unavailable, credits refunded"})
		default:
			slog.ErrorContext(ctx, "failed to submit generation", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit generation"})
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.NewJobResponse(job))
}

func (h *GenerationHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.submission.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch job", "error", err, "job_id", jobID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch job"})
		return
	}

	c.JSON(http.StatusOK, dto.NewJobResponse(job))
}

func (h *GenerationHandler) GetBalance(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	balance, err := h.submission.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch balance", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch balance"})
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{UserID: balance.UserID, Credits: balance.Credits})
}
