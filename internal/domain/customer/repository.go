package customer

import "context"

type Repository interface {
	// Create inserts the mapping; an existing mapping for the user is reported as ErrAlreadyExists
	Create(ctx context.Context, c *Customer) error
	GetByUserID(ctx context.Context, userID string) (*Customer, error)
	GetByExternalID(ctx context.Context, externalCustomerID string) (*Customer, error)
}
