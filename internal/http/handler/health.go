package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether one dependency is currently usable.
type HealthChecker interface {
	Name() string
	HealthCheck(ctx context.Context) bool
}

// HealthHandler serves the liveness and readiness probes. Readiness asks
// each registered dependency through its reliable client, so an open breaker
// shows up here without sending extra traffic to a struggling provider.
type HealthHandler struct {
	pinger   func(ctx context.Context) error
	checkers []HealthChecker
}

func NewHealthHandler(pinger func(ctx context.Context) error, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{
		pinger:   pinger,
		checkers: checkers,
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	deps := make(map[string]bool, len(h.checkers)+1)
	ready := true

	if h.pinger != nil {
		dbOK := h.pinger(ctx) == nil
		deps["database"] = dbOK
		ready = ready && dbOK
	}

	// A single healthy provider is enough to take traffic.
	anyProvider := len(h.checkers) == 0
	for _, checker := range h.checkers {
		ok := checker.HealthCheck(ctx)
		deps[checker.Name()] = ok
		anyProvider = anyProvider || ok
	}
	ready = ready && anyProvider

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "dependencies": deps})
}
