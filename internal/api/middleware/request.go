package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// RequestID tags every request with an id, honoring one supplied by the
// caller, and echoes it back on the response
func RequestID(c *gin.Context) {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = types.GenerateUUID()
	}

	ctx := types.SetRequestID(c.Request.Context(), requestID)
	c.Request = c.Request.WithContext(ctx)

	c.Header("X-Request-ID", requestID)
	c.Next()
}
