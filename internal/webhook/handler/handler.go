package handler

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	jsoniter "github.com/json-iterator/go"
	"github.com/recruitlink/billing/internal/config"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/pubsub"
	pubsubRouter "github.com/recruitlink/billing/internal/pubsub/router"
	"github.com/recruitlink/billing/internal/types"
	"github.com/recruitlink/billing/internal/webhook/notifier"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler consumes billing notifications from the router
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub   pubsub.PubSub
	config   *config.NotificationsConfig
	notifier notifier.Notifier
	logger   *logger.Logger
}

func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	notifier notifier.Notifier,
	logger *logger.Logger,
) Handler {
	return &handler{
		pubSub:   pubSub,
		config:   &cfg.Notifications,
		notifier: notifier,
		logger:   logger,
	}
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"billing_notification_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

func (h *handler) processMessage(msg *message.Message) error {
	ctx := msg.Context()
	if requestID := msg.Metadata.Get("request_id"); requestID != "" {
		ctx = context.WithValue(ctx, types.CtxRequestID, requestID)
	}

	var n types.BillingNotification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		h.logger.Errorw("failed to unmarshal billing notification",
			"error", err,
			"message_uuid", msg.UUID,
		)
		// redelivery cannot fix a malformed payload
		return nil
	}

	return h.notifier.Notify(ctx, &n)
}
