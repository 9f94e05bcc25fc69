package router

import (
	"context"

	"github.com/gin-gonic/gin"

	"artforge.app/orchestrator/internal/breaker"
	"artforge.app/orchestrator/internal/http/handler"
	"artforge.app/orchestrator/internal/http/middleware"
	"artforge.app/orchestrator/internal/mapper"
	"artforge.app/orchestrator/internal/service"
)

type RouterConfig struct {
	AdminAPIKey string
}

// Deps carries everything the route tree needs from the composition root.
type Deps struct {
	Services *service.Services
	Breakers *breaker.Registry
	Mappers  *mapper.Registry
	DBPing   func(ctx context.Context) error
	Health   []handler.HealthChecker
}

func SetupRoutes(router *gin.Engine, deps Deps, cfg RouterConfig) {
	healthHandler := handler.NewHealthHandler(deps.DBPing, deps.Health...)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		generationHandler := handler.NewGenerationHandler(deps.Services.Submission)
		GenerationRouter(v1, generationHandler)

		webhookHandler := webhookHandlerFor(deps)
		WebhookRouter(v1.Group("/webhooks"), webhookHandler)

		adminHandler := handler.NewAdminHandler(deps.Breakers, deps.Services.Completion)
		admin := v1.Group("/admin", middleware.RequireAdminKey(cfg.AdminAPIKey))
		AdminRouter(admin, adminHandler)
	}
}
