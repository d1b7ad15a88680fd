package stripe

import (
	"context"

	"github.com/recruitlink/billing/internal/idempotency"
	"github.com/recruitlink/billing/internal/types"
	"github.com/recruitlink/billing/internal/webhook/payload"
)

// Gateway is the narrow surface through which the service talks to the
// payment processor. Every error it returns is already translated into the
// internal error taxonomy.
type Gateway interface {
	CreateProduct(ctx context.Context, name, description string, metadata map[string]string) (string, error)
	CreatePrice(ctx context.Context, in CreatePriceInput) (string, error)
	RetrievePrice(ctx context.Context, id string) (*ExternalPrice, error)
	// FindPriceByLookupKey returns ErrNotFound when no price carries the key
	FindPriceByLookupKey(ctx context.Context, key string) (*ExternalPrice, error)
	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)
	RetrieveEvent(ctx context.Context, id string) (*payload.Event, error)
	VerifyAndParseEvent(body []byte, signatureHeader string) (*payload.Event, error)
	WebhookSecretConfigured() bool
	Ping(ctx context.Context) error
}

// CreatePriceInput describes a recurring price to create on the processor
type CreatePriceInput struct {
	ProductID string
	Amount    int64
	Currency  string
	Interval  types.BillingInterval
	LookupKey string
	Metadata  map[string]string
	// Supersedes is the recorded price this one replaces, empty for a plan's first price
	Supersedes string
}

// IdempotencyKey identifies one price creation. A replacement gets its own key
// so the processor never answers it with the price it supersedes.
func (in CreatePriceInput) IdempotencyKey() string {
	return idempotency.NewGenerator().GenerateKey(idempotency.ScopePrice, keyParams(in.Metadata, map[string]interface{}{
		"product_id": in.ProductID,
		"amount":     in.Amount,
		"currency":   in.Currency,
		"interval":   in.Interval,
		"lookup_key": in.LookupKey,
		"supersedes": in.Supersedes,
	}))
}

// ExternalPrice is the processor's view of a price
type ExternalPrice struct {
	ID        string
	ProductID string
	Amount    int64
	Currency  string
	Interval  types.BillingInterval
	Active    bool
	LookupKey string
	Metadata  map[string]string
}

// LocalPlanID is the plan the price was created for, if it carries the linkage
func (p *ExternalPrice) LocalPlanID() string {
	return p.Metadata[types.MetadataKeyLocalPlanID]
}
