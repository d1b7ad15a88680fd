package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/recruitlink/billing/internal/auth"
	"github.com/recruitlink/billing/internal/config"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/types"
)

// APIKeyAuthMiddleware admits requests carrying an active API key in the
// configured header. With no keys configured every request passes, which is
// only acceptable when the admin routes are reachable from a private network.
func APIKeyAuthMiddleware(cfg *config.Configuration, logger *logger.Logger) gin.HandlerFunc {
	if !auth.Enabled(cfg) {
		logger.Warnw("no admin api keys configured, admin endpoints are unauthenticated")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		key := c.GetHeader(cfg.Auth.APIKey.Header)
		if key == "" {
			unauthorized(c, "Unauthorized")
			return
		}

		name, valid := auth.ValidateAPIKey(cfg, key)
		if !valid {
			logger.Security("rejected admin api key",
				"path", c.FullPath(),
				"request_id", types.GetRequestID(c.Request.Context()),
			)
			unauthorized(c, "Invalid API key")
			return
		}

		c.Request = c.Request.WithContext(types.WithAPIKeyName(c.Request.Context(), name))
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ierr.ErrorResponse{
		Success: false,
		Error:   ierr.ErrorDetail{Display: message},
	})
}
