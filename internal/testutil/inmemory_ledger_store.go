package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/recruitlink/billing/internal/domain/ledger"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/types"
	"github.com/samber/lo"
)

var _ ledger.Repository = (*InMemoryLedgerStore)(nil)

type ledgerRow struct {
	entry ledger.Entry
	seq   int64
}

// InMemoryLedgerStore implements ledger.Repository with the same uniqueness and
// update guards as the database schema.
type InMemoryLedgerStore struct {
	*InMemoryStore[ledgerRow]
	mu  sync.Mutex
	seq int64
}

func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{
		InMemoryStore: NewInMemoryStore[ledgerRow](),
	}
}

func insertionOrder(i, j ledgerRow) bool {
	return i.seq < j.seq
}

func entries(rows []ledgerRow) []*ledger.Entry {
	return lo.Map(rows, func(r ledgerRow, _ int) *ledger.Entry {
		e := r.entry
		return &e
	})
}

func ledgerNotFound(details map[string]any) error {
	return ierr.NewError("ledger entry not found").
		WithHint("Ledger entry not found").
		WithReportableDetails(details).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryLedgerStore) Create(ctx context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ExternalPaymentID != nil {
		if _, dup := s.Find(ctx, func(r ledgerRow) bool {
			return lo.FromPtr(r.entry.ExternalPaymentID) == *e.ExternalPaymentID
		}, nil); dup {
			return ierr.NewError("ledger entry already exists").
				WithHint("Ledger entry already exists").
				Mark(ierr.ErrAlreadyExists)
		}
	}

	s.seq++
	return s.InMemoryStore.Create(ctx, e.ID, ledgerRow{entry: *e, seq: s.seq})
}

func (s *InMemoryLedgerStore) Get(ctx context.Context, id string) (*ledger.Entry, error) {
	r, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ledgerNotFound(map[string]any{"ledger_entry_id": id})
	}
	e := r.entry
	return &e, nil
}

func (s *InMemoryLedgerStore) GetByExternalPaymentID(ctx context.Context, externalPaymentID string) (*ledger.Entry, error) {
	r, ok := s.Find(ctx, func(r ledgerRow) bool {
		return lo.FromPtr(r.entry.ExternalPaymentID) == externalPaymentID
	}, nil)
	if !ok {
		return nil, ledgerNotFound(map[string]any{})
	}
	e := r.entry
	return &e, nil
}

func (s *InMemoryLedgerStore) ListByReference(ctx context.Context, externalReferenceID string) ([]*ledger.Entry, error) {
	return entries(s.List(ctx, func(r ledgerRow) bool {
		return r.entry.ExternalReferenceID == externalReferenceID
	}, insertionOrder)), nil
}

func (s *InMemoryLedgerStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*ledger.Entry, error) {
	return entries(s.List(ctx, func(r ledgerRow) bool {
		return r.entry.SubscriptionID == subscriptionID
	}, insertionOrder)), nil
}

func (s *InMemoryLedgerStore) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*ledger.Entry, error) {
	return entries(s.List(ctx, func(r ledgerRow) bool {
		return !r.entry.CreatedAt.Before(from) && r.entry.CreatedAt.Before(to)
	}, insertionOrder)), nil
}

// All returns every entry in insertion order
func (s *InMemoryLedgerStore) All() []*ledger.Entry {
	return entries(s.List(context.Background(), nil, insertionOrder))
}

func (s *InMemoryLedgerStore) SaveOutcome(ctx context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.InMemoryStore.Get(ctx, e.ID)
	if err != nil || r.entry.Status != types.LedgerStatusPending {
		return concurrentlyModified(e.ID)
	}
	if e.ExternalPaymentID != nil && r.entry.ExternalPaymentID == nil {
		if _, dup := s.Find(ctx, func(other ledgerRow) bool {
			return lo.FromPtr(other.entry.ExternalPaymentID) == *e.ExternalPaymentID
		}, nil); dup {
			return ierr.NewError("ledger entry already exists").
				WithHint("Ledger entry already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		r.entry.ExternalPaymentID = e.ExternalPaymentID
	}
	r.entry.Status = e.Status
	r.entry.FailureCode = e.FailureCode
	r.entry.FailureMessage = e.FailureMessage
	r.entry.ConfirmedAt = e.ConfirmedAt
	r.entry.UpdatedAt = e.UpdatedAt
	return s.Update(ctx, e.ID, r)
}

func (s *InMemoryLedgerStore) SaveRefund(ctx context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.InMemoryStore.Get(ctx, e.ID)
	if err != nil || r.entry.Status != types.LedgerStatusSucceeded || e.RefundedAmount < r.entry.RefundedAmount {
		return concurrentlyModified(e.ID)
	}
	if e.RefundedAmount > r.entry.Amount {
		return ierr.NewError("refunded amount exceeds amount").
			WithHint("Refund would exceed the original payment amount").
			Mark(ierr.ErrDatabase)
	}
	r.entry.RefundedAmount = e.RefundedAmount
	r.entry.Status = e.Status
	r.entry.UpdatedAt = e.UpdatedAt
	return s.Update(ctx, e.ID, r)
}

func concurrentlyModified(id string) error {
	return ierr.NewError("ledger entry changed concurrently").
		WithHint("Payment record was modified concurrently").
		WithReportableDetails(map[string]any{"ledger_entry_id": id}).
		Mark(ierr.ErrDatabase)
}
