package subscription

import (
	"time"

	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/types"
)

// Subscription binds a user to a plan. Rows are created by the registration flow;
// this service only changes them in response to authenticated processor events.
type Subscription struct {
	ID                     string                   `db:"id" json:"id"`
	UserID                 string                   `db:"user_id" json:"user_id"`
	PlanID                 string                   `db:"plan_id" json:"plan_id"`
	ExternalSubscriptionID *string                  `db:"external_subscription_id" json:"-"`
	ExternalCustomerID     *string                  `db:"external_customer_id" json:"-"`
	Status                 types.SubscriptionStatus `db:"status" json:"status"`
	CurrentPeriodStart     *time.Time               `db:"current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time               `db:"current_period_end" json:"current_period_end,omitempty"`
	// StatusChangedAt is the processor timestamp of the last applied status event
	StatusChangedAt *time.Time `db:"status_changed_at" json:"status_changed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Transition is a status change proposed by a processor event
type Transition struct {
	Status types.SubscriptionStatus
	// EventTime is the processor's creation timestamp for the event
	EventTime time.Time
	// PeriodStart and PeriodEnd replace the current period when set
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	// ExternalSubscriptionID binds the processor subscription when the row has none yet
	ExternalSubscriptionID string
	// ExternalCustomerID binds the processor customer when the row has none yet
	ExternalCustomerID string
	// PlanID moves the subscription to another plan when set
	PlanID string
}

// Apply returns the subscription after t, or the unchanged subscription and false when
// t is older than the state already stored. Events with an equal timestamp never
// overwrite a cancellation.
func (s *Subscription) Apply(t Transition) (*Subscription, bool, error) {
	if err := t.Status.Validate(); err != nil {
		return nil, false, err
	}

	if t.EventTime.IsZero() {
		return nil, false, ierr.NewError("transition without event time").
			WithHint("Event timestamp is required").
			Mark(ierr.ErrValidation)
	}

	if t.PeriodStart != nil && t.PeriodEnd != nil && t.PeriodEnd.Before(*t.PeriodStart) {
		return nil, false, ierr.NewError("period end before period start").
			WithHint("Invalid subscription period").
			WithReportableDetails(map[string]any{
				"period_start": *t.PeriodStart,
				"period_end":   *t.PeriodEnd,
			}).
			Mark(ierr.ErrValidation)
	}

	if t.ExternalSubscriptionID != "" && s.ExternalSubscriptionID != nil &&
		*s.ExternalSubscriptionID != "" && *s.ExternalSubscriptionID != t.ExternalSubscriptionID {
		return nil, false, ierr.NewError("subscription bound to another processor subscription").
			WithHint("Subscription is bound to a different processor subscription").
			WithReportableDetails(map[string]any{"subscription_id": s.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	if s.isNewerThan(t) {
		return s, false, nil
	}

	next := *s
	next.Status = t.Status
	eventTime := t.EventTime.UTC()
	next.StatusChangedAt = &eventTime
	if t.PeriodStart != nil {
		start := t.PeriodStart.UTC()
		next.CurrentPeriodStart = &start
	}
	if t.PeriodEnd != nil {
		end := t.PeriodEnd.UTC()
		next.CurrentPeriodEnd = &end
	}
	if t.ExternalSubscriptionID != "" {
		externalID := t.ExternalSubscriptionID
		next.ExternalSubscriptionID = &externalID
	}
	if t.ExternalCustomerID != "" && (s.ExternalCustomerID == nil || *s.ExternalCustomerID == "") {
		customerID := t.ExternalCustomerID
		next.ExternalCustomerID = &customerID
	}
	if t.PlanID != "" {
		next.PlanID = t.PlanID
	}
	next.UpdatedAt = time.Now().UTC()

	return &next, true, nil
}

func (s *Subscription) isNewerThan(t Transition) bool {
	if s.StatusChangedAt == nil {
		return false
	}
	if t.EventTime.Before(*s.StatusChangedAt) {
		return true
	}
	return t.EventTime.Equal(*s.StatusChangedAt) &&
		s.Status == types.SubscriptionStatusCanceled &&
		t.Status != types.SubscriptionStatusCanceled
}
