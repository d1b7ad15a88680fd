package plan

import (
	"context"
)

// Repository defines the interface for plan persistence.
// Amount, currency and interval have no update path once a plan is created.
type Repository interface {
	// FindOrCreate returns the plan with the same interval, amount and currency, inserting p if none exists.
	// The boolean reports whether p was inserted. Uniqueness is enforced by the database.
	FindOrCreate(ctx context.Context, p *Plan) (*Plan, bool, error)
	Get(ctx context.Context, id string) (*Plan, error)
	GetByExternalPriceID(ctx context.Context, priceID string) (*Plan, error)
	ListActive(ctx context.Context) ([]*Plan, error)
	// SetExternalIDs records the processor product and price for a plan
	SetExternalIDs(ctx context.Context, id, productID, priceID string) error
}
