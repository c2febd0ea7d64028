package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/config"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/service"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Authenticate resolves the API key header to an organization and scopes the
// request context to it. Requests without a resolvable key are rejected.
func Authenticate(cfg *config.Configuration, auth service.AuthService, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := c.GetHeader(cfg.Auth.Header)
		if rawKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			c.Abort()
			return
		}

		orgID, err := auth.Authenticate(c.Request.Context(), rawKey)
		if err != nil {
			log.Debugw("rejected api key", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}

		ctx := types.SetOrganizationID(c.Request.Context(), orgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
