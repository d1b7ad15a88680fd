package v1

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/recruitlink/billing/internal/api/dto"
	"github.com/recruitlink/billing/internal/config"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/integration/stripe"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/sentry"
	"github.com/recruitlink/billing/internal/service"
	"github.com/recruitlink/billing/internal/types"
)

// WebhookHandler receives processor deliveries. Events are applied inline so
// the response status tells the processor whether to retry.
type WebhookHandler struct {
	config     *config.Configuration
	gateway    stripe.Gateway
	dispatcher service.EventDispatcher
	sentry     *sentry.Service
	logger     *logger.Logger
}

func NewWebhookHandler(
	cfg *config.Configuration,
	gateway stripe.Gateway,
	dispatcher service.EventDispatcher,
	sentry *sentry.Service,
	logger *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		config:     cfg,
		gateway:    gateway,
		dispatcher: dispatcher,
		sentry:     sentry,
		logger:     logger,
	}
}

// HandleProcessorWebhook handles POST /v1/webhooks/processor
func (h *WebhookHandler) HandleProcessorWebhook(c *gin.Context) {
	body, err := h.readBody(c)
	if err != nil {
		h.logger.Warnw("rejected processor webhook", "stage", "received", "error", err)
		_ = c.Error(err)
		return
	}

	event, err := h.gateway.VerifyAndParseEvent(body, c.GetHeader(stripe.SignatureHeader))
	if err != nil {
		if ierr.IsInvalidSignature(err) {
			h.logger.Security("rejected processor webhook with invalid signature",
				"stage", "rejected",
				"client_ip", c.ClientIP(),
				"payload_length", len(body),
				"request_id", types.GetRequestID(c.Request.Context()),
			)
			h.sentry.CaptureSecurityEvent("processor webhook signature rejected", map[string]interface{}{
				"client_ip":      c.ClientIP(),
				"payload_length": len(body),
			})
		} else {
			h.logger.Warnw("rejected processor webhook", "stage", "rejected", "error", err)
		}
		_ = c.Error(err)
		return
	}

	timeout := h.config.Webhook.ProcessingTimeout
	if timeout <= 0 {
		timeout = config.GetDefaultConfig().Webhook.ProcessingTimeout
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	span, ctx := h.sentry.MonitorEventProcessing(ctx, event.Type, event.CreatedAt, map[string]interface{}{
		"event_id": event.ID,
	})
	if span != nil {
		defer span.Finish()
	}

	h.sentry.AddBreadcrumb("webhook", "signature verified", map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
	})
	h.logger.Debugw("processing processor webhook",
		"stage", "signature_checked",
		"event_id", event.ID,
		"event_type", event.Type,
		"livemode", event.Livemode,
	)

	if err := h.dispatcher.Dispatch(ctx, event); err != nil {
		if ierr.IsAlreadyProcessed(err) {
			h.logger.Infow("duplicate processor event acknowledged",
				"stage", "acknowledged",
				"event_id", event.ID,
				"event_type", event.Type,
			)
			c.JSON(http.StatusOK, dto.WebhookResponse{Received: true, Duplicate: true})
			return
		}

		if ierr.IsNotFound(err) || ierr.IsValidation(err) {
			h.logger.Warnw("processor event not applied",
				"stage", "dispatched",
				"event_id", event.ID,
				"event_type", event.Type,
				"error", err,
			)
			_ = c.Error(err)
			return
		}

		h.logger.Errorw("failed to process processor event",
			"stage", "dispatched",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		h.sentry.CaptureException(err)
		// any other failure is a server error so the processor retries
		_ = c.Error(ierr.NewError("failed to process processor event").
			WithReportableDetails(map[string]any{"event_id": event.ID}).
			Mark(ierr.ErrSystem))
		return
	}

	h.logger.Infow("processor event applied",
		"stage", "acknowledged",
		"event_id", event.ID,
		"event_type", event.Type,
	)
	c.JSON(http.StatusOK, dto.WebhookResponse{Received: true})
}

func (h *WebhookHandler) readBody(c *gin.Context) ([]byte, error) {
	limit := h.config.Webhook.MaxBodyBytes
	if limit <= 0 {
		limit = config.GetDefaultConfig().Webhook.MaxBodyBytes
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ierr.NewError("webhook payload too large").
				WithHint("Webhook payload is too large").
				WithReportableDetails(map[string]any{"max_bytes": limit}).
				Mark(ierr.ErrValidation)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrValidation)
	}
	return body, nil
}
