package publisher

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	jsoniter "github.com/json-iterator/go"
	"github.com/recruitlink/billing/internal/config"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/pubsub"
	"github.com/recruitlink/billing/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NotificationPublisher hands committed billing changes to the notification pipeline
type NotificationPublisher interface {
	Publish(ctx context.Context, n *types.BillingNotification) error
	Close() error
}

type notificationPublisher struct {
	pubSub pubsub.PubSub
	config *config.NotificationsConfig
	logger *logger.Logger
}

func NewPublisher(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
) (NotificationPublisher, error) {
	return &notificationPublisher{
		pubSub: pubSub,
		config: &cfg.Notifications,
		logger: logger,
	}, nil
}

func (p *notificationPublisher) Publish(ctx context.Context, n *types.BillingNotification) error {
	if !p.config.Enabled {
		p.logger.Debugw("notifications disabled, dropping notification",
			"notification_type", n.Type,
			"event_id", n.EventID,
		)
		return nil
	}

	if n.ID == "" {
		n.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NOTIFICATION)
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode notification").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(n.ID, payload)
	msg.Metadata.Set("notification_type", string(n.Type))
	msg.Metadata.Set("event_id", n.EventID)
	if requestID := types.GetRequestID(ctx); requestID != "" {
		msg.Metadata.Set("request_id", requestID)
	} else {
		msg.Metadata.Set("request_id", watermill.NewUUID())
	}

	if err := p.pubSub.Publish(ctx, p.config.Topic, msg); err != nil {
		p.logger.Errorw("failed to publish notification",
			"error", err,
			"notification_id", n.ID,
			"notification_type", n.Type,
			"event_id", n.EventID,
		)
		return ierr.WithError(err).
			WithHint("Failed to publish notification").
			Mark(ierr.ErrSystem)
	}

	p.logger.Debugw("published notification",
		"notification_id", n.ID,
		"notification_type", n.Type,
		"event_id", n.EventID,
		"topic", p.config.Topic,
	)
	return nil
}

func (p *notificationPublisher) Close() error {
	return p.pubSub.Close()
}
