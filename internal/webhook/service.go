package webhook

import (
	"context"

	"github.com/recruitlink/billing/internal/config"
	"github.com/recruitlink/billing/internal/logger"
	pubsubRouter "github.com/recruitlink/billing/internal/pubsub/router"
	"github.com/recruitlink/billing/internal/webhook/handler"
	"github.com/recruitlink/billing/internal/webhook/publisher"
)

// NotificationService owns the consuming side of the notification pipeline
type NotificationService struct {
	config    *config.Configuration
	publisher publisher.NotificationPublisher
	handler   handler.Handler
	logger    *logger.Logger
}

func NewNotificationService(
	cfg *config.Configuration,
	publisher publisher.NotificationPublisher,
	h handler.Handler,
	l *logger.Logger,
) *NotificationService {
	return &NotificationService{
		config:    cfg,
		publisher: publisher,
		handler:   h,
		logger:    l,
	}
}

// Start registers the notification consumer on the router
func (s *NotificationService) Start(ctx context.Context, router *pubsubRouter.Router) error {
	if !s.config.Notifications.Enabled {
		s.logger.Info("billing notifications disabled")
		return nil
	}

	s.handler.RegisterHandler(router)
	s.logger.Infow("billing notification consumer registered",
		"topic", s.config.Notifications.Topic,
		"pubsub", s.config.Notifications.PubSub,
	)
	return nil
}

// Stop closes the publisher, which also closes the underlying pubsub
func (s *NotificationService) Stop() error {
	if err := s.publisher.Close(); err != nil {
		s.logger.Errorw("failed to close notification publisher", "error", err)
		return err
	}
	s.logger.Info("billing notification pipeline stopped")
	return nil
}
