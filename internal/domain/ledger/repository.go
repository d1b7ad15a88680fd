package ledger

import (
	"context"
	"time"
)

// Repository is append-only: there is no delete, and updates are limited to
// settling a pending entry and recording refunds.
type Repository interface {
	// Create inserts an entry. A duplicate external payment id is reported as ErrAlreadyExists.
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	// GetByExternalPaymentID locks the entry for the rest of the surrounding transaction
	GetByExternalPaymentID(ctx context.Context, externalPaymentID string) (*Entry, error)
	// ListByReference returns all attempts for a payment intent or invoice, oldest first, locking them
	ListByReference(ctx context.Context, externalReferenceID string) ([]*Entry, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*Entry, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*Entry, error)
	// SaveOutcome persists a Finalize result. Only pending rows are updated.
	SaveOutcome(ctx context.Context, e *Entry) error
	// SaveRefund persists an ApplyRefund result. The refunded amount can only grow.
	SaveRefund(ctx context.Context, e *Entry) error
}
