package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/recruitlink/billing/internal/domain/plan"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/samber/lo"
)

var _ plan.Repository = (*InMemoryPlanStore)(nil)

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	*InMemoryStore[plan.Plan]
	// createMu makes FindOrCreate atomic like the unique constraint it stands in for
	createMu sync.Mutex
}

func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		InMemoryStore: NewInMemoryStore[plan.Plan](),
	}
}

func planNotFound(details map[string]any) error {
	return ierr.NewError("plan not found").
		WithHint("Plan not found").
		WithReportableDetails(details).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPlanStore) FindOrCreate(ctx context.Context, p *plan.Plan) (*plan.Plan, bool, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	existing, ok := s.Find(ctx, func(item plan.Plan) bool {
		return item.BillingInterval == p.BillingInterval &&
			item.Amount == p.Amount &&
			item.Currency == p.Currency
	}, nil)
	if ok {
		return &existing, false, nil
	}

	if err := s.InMemoryStore.Create(ctx, p.ID, *p); err != nil {
		return nil, false, err
	}
	created := *p
	return &created, true, nil
}

func (s *InMemoryPlanStore) Get(ctx context.Context, id string) (*plan.Plan, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, planNotFound(map[string]any{"plan_id": id})
	}
	return &p, nil
}

func (s *InMemoryPlanStore) GetByExternalPriceID(ctx context.Context, priceID string) (*plan.Plan, error) {
	p, ok := s.Find(ctx, func(item plan.Plan) bool {
		return item.ExternalPriceID != nil && *item.ExternalPriceID == priceID
	}, nil)
	if !ok {
		return nil, planNotFound(map[string]any{"price_id": priceID})
	}
	return &p, nil
}

func (s *InMemoryPlanStore) ListActive(ctx context.Context) ([]*plan.Plan, error) {
	items := s.List(ctx, func(item plan.Plan) bool {
		return item.IsActive
	}, func(i, j plan.Plan) bool {
		if i.DisplayOrder != j.DisplayOrder {
			return i.DisplayOrder < j.DisplayOrder
		}
		return i.CreatedAt.Before(j.CreatedAt)
	})
	return lo.Map(items, func(p plan.Plan, _ int) *plan.Plan { return &p }), nil
}

func (s *InMemoryPlanStore) SetExternalIDs(ctx context.Context, id, productID, priceID string) error {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return planNotFound(map[string]any{"plan_id": id})
	}
	p.ExternalProductID = lo.ToPtr(productID)
	p.ExternalPriceID = lo.ToPtr(priceID)
	p.UpdatedAt = time.Now().UTC()
	return s.Update(ctx, id, p)
}

// Put stores p as is, replacing any plan with the same id
func (s *InMemoryPlanStore) Put(p *plan.Plan) {
	ctx := context.Background()
	s.Delete(ctx, p.ID)
	_ = s.InMemoryStore.Create(ctx, p.ID, *p)
}
