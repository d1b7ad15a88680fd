package types

import (
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the local status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCanceled,
		SubscriptionStatusIncomplete,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionStatusFromProcessor maps a processor subscription status onto the local set.
// The second return value is false for statuses that have no local meaning.
func SubscriptionStatusFromProcessor(status string) (SubscriptionStatus, bool) {
	switch status {
	case "active", "trialing":
		return SubscriptionStatusActive, true
	case "past_due", "unpaid":
		return SubscriptionStatusPastDue, true
	case "canceled", "incomplete_expired":
		return SubscriptionStatusCanceled, true
	case "incomplete":
		return SubscriptionStatusIncomplete, true
	default:
		return "", false
	}
}
