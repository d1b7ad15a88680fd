package testutil

import (
	"context"

	"github.com/recruitlink/billing/internal/domain/customer"
	ierr "github.com/recruitlink/billing/internal/errors"
)

var _ customer.Repository = (*InMemoryCustomerStore)(nil)

// InMemoryCustomerStore implements customer.Repository, keyed by user id
type InMemoryCustomerStore struct {
	*InMemoryStore[customer.Customer]
}

func NewInMemoryCustomerStore() *InMemoryCustomerStore {
	return &InMemoryCustomerStore{
		InMemoryStore: NewInMemoryStore[customer.Customer](),
	}
}

func customerNotFound() error {
	return ierr.NewError("billing customer not found").
		WithHint("Billing customer not found").
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryCustomerStore) Create(ctx context.Context, c *customer.Customer) error {
	if _, dup := s.Find(ctx, func(item customer.Customer) bool {
		return item.ExternalCustomerID == c.ExternalCustomerID
	}, nil); dup {
		return ierr.NewError("billing customer already exists").
			WithHint("Billing customer already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, c.UserID, *c)
}

func (s *InMemoryCustomerStore) GetByUserID(ctx context.Context, userID string) (*customer.Customer, error) {
	c, err := s.InMemoryStore.Get(ctx, userID)
	if err != nil {
		return nil, customerNotFound()
	}
	return &c, nil
}

func (s *InMemoryCustomerStore) GetByExternalID(ctx context.Context, externalCustomerID string) (*customer.Customer, error) {
	c, ok := s.Find(ctx, func(item customer.Customer) bool {
		return item.ExternalCustomerID == externalCustomerID
	}, nil)
	if !ok {
		return nil, customerNotFound()
	}
	return &c, nil
}
