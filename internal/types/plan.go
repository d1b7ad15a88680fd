package types

import (
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/samber/lo"
)

// BillingInterval is the recurring interval a plan is charged on
type BillingInterval string

const (
	BillingIntervalDay   BillingInterval = "day"
	BillingIntervalWeek  BillingInterval = "week"
	BillingIntervalMonth BillingInterval = "month"
	BillingIntervalYear  BillingInterval = "year"
)

// ProductionBillingIntervals are the intervals a plan may use outside sandbox mode
var ProductionBillingIntervals = []BillingInterval{
	BillingIntervalMonth,
	BillingIntervalYear,
}

// SandboxBillingIntervals additionally allow short cycles for end-to-end testing
var SandboxBillingIntervals = []BillingInterval{
	BillingIntervalDay,
	BillingIntervalWeek,
	BillingIntervalMonth,
	BillingIntervalYear,
}

func (b BillingInterval) String() string {
	return string(b)
}

// Validate checks the interval against the full set the processor understands.
// Production restrictions are applied by plan validation.
func (b BillingInterval) Validate() error {
	if !lo.Contains(SandboxBillingIntervals, b) {
		return ierr.NewError("invalid billing interval").
			WithHint("Invalid billing interval").
			WithReportableDetails(map[string]any{
				"billing_interval": b,
				"allowed_values":   SandboxBillingIntervals,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

const (
	// MinimumChargeAmount is the smallest amount in minor units a production plan may charge
	MinimumChargeAmount int64 = 50

	// DefaultCurrency is the only currency plans are billed in
	DefaultCurrency = "usd"

	// MetadataKeyLocalPlanID links processor catalog objects back to a plan
	MetadataKeyLocalPlanID = "local_plan_id"
	// MetadataKeyUserID links processor customers and subscriptions back to a user
	MetadataKeyUserID = "user_id"
	// MetadataKeySubscriptionID links a payment back to a local subscription
	MetadataKeySubscriptionID = "subscription_id"
	// MetadataKeyPlanID is set on processor subscriptions created for a plan
	MetadataKeyPlanID = "plan_id"
)

// PlanLookupKey is the processor lookup key attached to the price of a plan
func PlanLookupKey(planID string) string {
	return "plan_" + planID
}
