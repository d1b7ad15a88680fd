package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/recruitlink/billing/internal/api/dto"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/service"
	"github.com/recruitlink/billing/internal/types"
)

// AdminHandler serves the read-only billing views and customer provisioning
// used by the main application
type AdminHandler struct {
	billingReadService service.BillingReadService
	customerService    service.CustomerService
	logger             *logger.Logger
}

func NewAdminHandler(
	billingReadService service.BillingReadService,
	customerService service.CustomerService,
	logger *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		billingReadService: billingReadService,
		customerService:    customerService,
		logger:             logger,
	}
}

// GetCurrentSubscription handles GET /v1/admin/users/:user_id/subscription
func (h *AdminHandler) GetCurrentSubscription(c *gin.Context) {
	resp, err := h.billingReadService.GetCurrentSubscription(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListLedgerHistory handles GET /v1/admin/subscriptions/:id/ledger
func (h *AdminHandler) ListLedgerHistory(c *gin.Context) {
	resp, err := h.billingReadService.ListLedgerHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// EnsureCustomer handles POST /v1/admin/customers
func (h *AdminHandler) EnsureCustomer(c *gin.Context) {
	var req dto.EnsureCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.customerService.EnsureCustomer(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.Debugw("customer ensured",
		"user_id", resp.UserID,
		"api_key", types.GetAPIKeyName(c.Request.Context()),
	)
	c.JSON(http.StatusOK, resp)
}
