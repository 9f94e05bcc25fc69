package router

import (
	"github.com/gin-gonic/gin"

	"artforge.app/orchestrator/internal/http/handler/webhook"
)

func webhookHandlerFor(deps Deps) *webhook.ProviderWebhookHandler {
	return webhook.NewProviderWebhookHandler(deps.Mappers, deps.Services.Completion)
}

func WebhookRouter(rg *gin.RouterGroup, h *webhook.ProviderWebhookHandler) {
	rg.POST("/providers", h.HandleCallback)
}
