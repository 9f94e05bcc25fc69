package router

import (
	"github.com/gin-gonic/gin"

	"artforge.app/orchestrator/internal/http/handler"
)

func AdminRouter(rg *gin.RouterGroup, h *handler.AdminHandler) {
	rg.GET("/breakers", h.ListBreakers)
	rg.POST("/breakers/:name/reset", h.ResetBreaker)
	rg.POST("/jobs/:id/cancel", h.CancelJob)
}
