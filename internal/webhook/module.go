package webhook

import (
	"github.com/recruitlink/billing/internal/config"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/pubsub"
	"github.com/recruitlink/billing/internal/pubsub/kafka"
	"github.com/recruitlink/billing/internal/pubsub/memory"
	"github.com/recruitlink/billing/internal/types"
	"github.com/recruitlink/billing/internal/webhook/handler"
	"github.com/recruitlink/billing/internal/webhook/notifier"
	"github.com/recruitlink/billing/internal/webhook/publisher"
	"go.uber.org/fx"
)

// Module provides the billing notification pipeline
var Module = fx.Options(
	fx.Provide(
		NewPubSub,
	),

	fx.Provide(
		publisher.NewPublisher,
		notifier.NewLogNotifier,
		handler.NewHandler,
		NewNotificationService,
	),
)

// NewPubSub builds the transport selected by notifications.pubsub
func NewPubSub(
	cfg *config.Configuration,
	logger *logger.Logger,
) (pubsub.PubSub, error) {
	switch cfg.Notifications.PubSub {
	case types.MemoryPubSub, "":
		return memory.NewPubSub(cfg, logger), nil
	case types.KafkaPubSub:
		return kafka.NewPubSub(cfg, logger)
	}
	return nil, ierr.NewErrorf("unsupported pubsub type %q", cfg.Notifications.PubSub).
		WithHint("Unsupported notification pubsub").
		Mark(ierr.ErrValidation)
}
