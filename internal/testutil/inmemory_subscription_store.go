package testutil

import (
	"context"
	"time"

	"github.com/recruitlink/billing/internal/domain/subscription"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/types"
	"github.com/samber/lo"
)

var _ subscription.Repository = (*InMemorySubscriptionStore)(nil)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[subscription.Subscription]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[subscription.Subscription](),
	}
}

func subscriptionNotFound(details map[string]any) error {
	return ierr.NewError("subscription not found").
		WithHint("Subscription not found").
		WithReportableDetails(details).
		Mark(ierr.ErrNotFound)
}

func newestFirst(i, j subscription.Subscription) bool {
	return i.CreatedAt.After(j.CreatedAt)
}

// Seed stores a subscription the way the registration flow would create it
func (s *InMemorySubscriptionStore) Seed(sub *subscription.Subscription) *subscription.Subscription {
	if sub.ID == "" {
		sub.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION)
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = sub.CreatedAt
	}
	if sub.Status == "" {
		sub.Status = types.SubscriptionStatusIncomplete
	}
	_ = s.InMemoryStore.Create(context.Background(), sub.ID, *sub)
	out := *sub
	return &out
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, subscriptionNotFound(map[string]any{"subscription_id": id})
	}
	return &sub, nil
}

func (s *InMemorySubscriptionStore) GetForUpdate(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.Get(ctx, id)
}

func (s *InMemorySubscriptionStore) GetByExternalIDForUpdate(ctx context.Context, externalSubscriptionID string) (*subscription.Subscription, error) {
	sub, ok := s.Find(ctx, func(item subscription.Subscription) bool {
		return lo.FromPtr(item.ExternalSubscriptionID) == externalSubscriptionID
	}, nil)
	if !ok {
		return nil, subscriptionNotFound(map[string]any{})
	}
	return &sub, nil
}

func (s *InMemorySubscriptionStore) GetLatestByUserIDForUpdate(ctx context.Context, userID string) (*subscription.Subscription, error) {
	sub, ok := s.Find(ctx, func(item subscription.Subscription) bool {
		return item.UserID == userID
	}, newestFirst)
	if !ok {
		return nil, subscriptionNotFound(map[string]any{"user_id": userID})
	}
	return &sub, nil
}

func (s *InMemorySubscriptionStore) GetCurrentByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	sub, ok := s.Find(ctx, func(item subscription.Subscription) bool {
		return item.UserID == userID
	}, func(i, j subscription.Subscription) bool {
		iCanceled := i.Status == types.SubscriptionStatusCanceled
		jCanceled := j.Status == types.SubscriptionStatusCanceled
		if iCanceled != jCanceled {
			return !iCanceled
		}
		return newestFirst(i, j)
	})
	if !ok {
		return nil, subscriptionNotFound(map[string]any{"user_id": userID})
	}
	return &sub, nil
}

func (s *InMemorySubscriptionStore) UpdateState(ctx context.Context, sub *subscription.Subscription) error {
	current, err := s.InMemoryStore.Get(ctx, sub.ID)
	if err != nil {
		return subscriptionNotFound(map[string]any{"subscription_id": sub.ID})
	}
	current.PlanID = sub.PlanID
	current.ExternalSubscriptionID = sub.ExternalSubscriptionID
	current.ExternalCustomerID = sub.ExternalCustomerID
	current.Status = sub.Status
	current.CurrentPeriodStart = sub.CurrentPeriodStart
	current.CurrentPeriodEnd = sub.CurrentPeriodEnd
	current.StatusChangedAt = sub.StatusChangedAt
	current.UpdatedAt = sub.UpdatedAt
	return s.Update(ctx, sub.ID, current)
}
