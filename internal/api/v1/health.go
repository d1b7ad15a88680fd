package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/recruitlink/billing/internal/service"
)

type HealthHandler struct {
	healthService service.HealthService
}

func NewHealthHandler(healthService service.HealthService) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
	}
}

// Health handles GET /health. It answers 503 while webhooks cannot be processed.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := h.healthService.Check(c.Request.Context())

	status := http.StatusOK
	if !resp.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
