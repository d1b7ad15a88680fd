package types

import "time"

// NotificationType names a billing notification handed to the notifier
type NotificationType string

const (
	NotificationPaymentSucceeded     NotificationType = "billing.payment.succeeded"
	NotificationPaymentFailed        NotificationType = "billing.payment.failed"
	NotificationPaymentRefunded      NotificationType = "billing.payment.refunded"
	NotificationSubscriptionChanged  NotificationType = "billing.subscription.changed"
	NotificationSubscriptionCanceled NotificationType = "billing.subscription.canceled"
)

// BillingNotification is published after an event's effects have been committed
type BillingNotification struct {
	ID             string             `json:"id"`
	Type           NotificationType   `json:"type"`
	EventID        string             `json:"event_id"`
	UserID         string             `json:"user_id,omitempty"`
	SubscriptionID string             `json:"subscription_id,omitempty"`
	LedgerEntryID  string             `json:"ledger_entry_id,omitempty"`
	Status         SubscriptionStatus `json:"status,omitempty"`
	Amount         int64              `json:"amount,omitempty"`
	Currency       string             `json:"currency,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}
