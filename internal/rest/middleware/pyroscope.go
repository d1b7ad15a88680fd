package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/recruitlink/billing/internal/pyroscope"
)

// PyroscopeMiddleware labels profiles with the matched route so hot endpoints
// can be told apart. Raw path parameters are left out to keep label cardinality low.
func PyroscopeMiddleware(profiler *pyroscope.Service) gin.HandlerFunc {
	if !profiler.IsEnabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		labels := map[string]string{
			"method":   c.Request.Method,
			"endpoint": c.FullPath(),
		}
		profiler.TagWrapper(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
