package subscription

import (
	"context"
)

// Repository defines the interface for subscription persistence.
// Methods named ForUpdate lock the row for the rest of the surrounding transaction.
type Repository interface {
	Get(ctx context.Context, id string) (*Subscription, error)
	GetForUpdate(ctx context.Context, id string) (*Subscription, error)
	GetByExternalIDForUpdate(ctx context.Context, externalSubscriptionID string) (*Subscription, error)
	// GetLatestByUserIDForUpdate returns the user's most recently created subscription
	GetLatestByUserIDForUpdate(ctx context.Context, userID string) (*Subscription, error)
	// GetCurrentByUserID prefers a subscription that is not canceled, then the most recent one
	GetCurrentByUserID(ctx context.Context, userID string) (*Subscription, error)
	// UpdateState persists the fields a Transition may change
	UpdateState(ctx context.Context, s *Subscription) error
}
