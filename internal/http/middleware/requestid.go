package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"artforge.app/orchestrator/common/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with a delivery id, honoring the caller's
// X-Request-ID when present. Webhook deliveries are retried by providers, so
// the id is what lets duplicate deliveries be correlated in the logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
			DeliveryID: &requestID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, requestID)

		c.Next()
	}
}
