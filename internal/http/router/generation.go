package router

import (
	"github.com/gin-gonic/gin"

	"artforge.app/orchestrator/internal/http/handler"
)

func GenerationRouter(rg *gin.RouterGroup, h *handler.GenerationHandler) {
	rg.POST("/generations", h.Submit)
	rg.GET("/jobs/:id", h.Get)
	rg.GET("/users/:id/balance", h.GetBalance)
}
