package notifier

import (
	"context"

	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/types"
)

// Notifier delivers billing notifications to users. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n *types.BillingNotification) error
}

type logNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier records notifications in the service log instead of delivering them
func NewLogNotifier(logger *logger.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (l *logNotifier) Notify(ctx context.Context, n *types.BillingNotification) error {
	l.logger.Infow("billing notification",
		"notification_id", n.ID,
		"notification_type", n.Type,
		"event_id", n.EventID,
		"user_id", n.UserID,
		"subscription_id", n.SubscriptionID,
		"ledger_entry_id", n.LedgerEntryID,
		"status", n.Status,
		"amount", n.Amount,
		"currency", n.Currency,
	)
	return nil
}
