package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/recruitlink/billing/internal/domain/plan"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/integration/stripe"
	"github.com/recruitlink/billing/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

const defaultSyncConcurrency = 4

// PlanSyncService mirrors the configured plan catalog onto the processor
type PlanSyncService interface {
	// Sync is safe to re-run. A second run without remote changes performs no
	// processor writes. It fails with ErrSyncValidation when any active plan
	// diverges from its processor price.
	Sync(ctx context.Context) (*SyncReport, error)
}

// SyncReport summarizes one synchronization run
type SyncReport struct {
	PlansCreated    int           `json:"plans_created"`
	ProductsCreated int           `json:"products_created"`
	PricesCreated   int           `json:"prices_created"`
	PricesReused    int           `json:"prices_reused"`
	PlansVerified   int           `json:"plans_verified"`
	Duration        time.Duration `json:"duration"`
}

// PriceMismatch is one divergence found by the validation pass
type PriceMismatch struct {
	PlanID  string `json:"plan_id"`
	PriceID string `json:"price_id,omitempty"`
	Field   string `json:"field"`
	Local   string `json:"local"`
	Remote  string `json:"remote"`
}

func (m PriceMismatch) String() string {
	return fmt.Sprintf("plan %s price %s: %s local=%s remote=%s", m.PlanID, m.PriceID, m.Field, m.Local, m.Remote)
}

type planSyncService struct {
	ServiceParams
}

func NewPlanSyncService(params ServiceParams) PlanSyncService {
	return &planSyncService{
		ServiceParams: params,
	}
}

func (s *planSyncService) Sync(ctx context.Context) (*SyncReport, error) {
	start := time.Now()
	report := &SyncReport{}
	opts := plan.ValidationOptions{Sandbox: s.Config.Billing.SandboxMode}

	if opts.Sandbox {
		s.Logger.Warnw("synchronizing plans in sandbox mode, relaxed plan validation is active")
	}

	if err := s.ensurePlans(ctx, opts, report); err != nil {
		return report, err
	}

	plans, err := s.PlanRepo.ListActive(ctx)
	if err != nil {
		return report, err
	}

	for _, p := range plans {
		if err := interrupted(ctx, "price"); err != nil {
			return report, err
		}
		if err := s.ensurePrice(ctx, p, opts, report); err != nil {
			s.Logger.Errorw("failed to synchronize plan price",
				"plan_id", p.ID,
				"error", err,
			)
			return report, err
		}
	}

	if err := s.validate(ctx, report); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	s.Logger.Infow("plan synchronization complete",
		"plans_created", report.PlansCreated,
		"products_created", report.ProductsCreated,
		"prices_created", report.PricesCreated,
		"prices_reused", report.PricesReused,
		"plans_verified", report.PlansVerified,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// ensurePlans finds or creates a registry row for every configured plan
func (s *planSyncService) ensurePlans(ctx context.Context, opts plan.ValidationOptions, report *SyncReport) error {
	for _, cfg := range s.Config.Billing.Plans {
		if err := interrupted(ctx, "plan"); err != nil {
			return err
		}

		candidate := plan.New(cfg.Name, cfg.Description, cfg.Amount, cfg.Currency, cfg.BillingInterval, cfg.Features, cfg.DisplayOrder)
		if err := candidate.Validate(opts); err != nil {
			return err
		}

		p, created, err := s.PlanRepo.FindOrCreate(ctx, candidate)
		if err != nil {
			return err
		}
		if created {
			report.PlansCreated++
			s.Logger.Infow("created plan",
				"plan_id", p.ID,
				"name", p.Name,
				"amount", p.Amount,
				"currency", p.Currency,
				"billing_interval", p.BillingInterval,
			)
		}
	}
	return nil
}

// ensurePrice makes sure p points at a live processor price, creating one when none is usable
func (s *planSyncService) ensurePrice(ctx context.Context, p *plan.Plan, opts plan.ValidationOptions, report *SyncReport) error {
	if err := p.Validate(opts); err != nil {
		return err
	}

	existing, err := s.resolvePrice(ctx, p)
	if err != nil {
		return err
	}
	if existing != nil {
		report.PricesReused++
		if lo.FromPtr(p.ExternalPriceID) != existing.ID {
			// recovered through the lookup key after an interrupted run
			if err := s.PlanRepo.SetExternalIDs(ctx, p.ID, existing.ProductID, existing.ID); err != nil {
				return err
			}
			s.Logger.Infow("linked existing processor price",
				"plan_id", p.ID,
				"price_id", existing.ID,
			)
		}
		return nil
	}

	metadata := map[string]string{types.MetadataKeyLocalPlanID: p.ID}

	productID := lo.FromPtr(p.ExternalProductID)
	if productID == "" {
		productID, err = s.Gateway.CreateProduct(ctx, p.Name, p.Description, metadata)
		if err != nil {
			return err
		}
		report.ProductsCreated++
		s.Logger.Infow("created processor product", "plan_id", p.ID, "product_id", productID)
	}

	priceID, err := s.Gateway.CreatePrice(ctx, stripe.CreatePriceInput{
		ProductID: productID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Interval:  p.BillingInterval,
		LookupKey: p.LookupKey(),
		Metadata:  metadata,
		// a recorded price that resolved to nothing is inactive or gone
		Supersedes: lo.FromPtr(p.ExternalPriceID),
	})
	if err != nil {
		return err
	}
	report.PricesCreated++
	s.Logger.Infow("created processor price",
		"plan_id", p.ID,
		"product_id", productID,
		"price_id", priceID,
	)

	return s.PlanRepo.SetExternalIDs(ctx, p.ID, productID, priceID)
}

// resolvePrice returns the usable processor price for p, or nil when one must be created
func (s *planSyncService) resolvePrice(ctx context.Context, p *plan.Plan) (*stripe.ExternalPrice, error) {
	if p.HasExternalPrice() {
		price, err := s.Gateway.RetrievePrice(ctx, *p.ExternalPriceID)
		switch {
		case err == nil && price.Active:
			return price, nil
		case err == nil:
			s.Logger.Warnw("recorded processor price is inactive, recreating",
				"plan_id", p.ID,
				"price_id", price.ID,
			)
			return nil, nil
		case ierr.IsNotFound(err):
			s.Logger.Warnw("recorded processor price not found, recreating",
				"plan_id", p.ID,
				"price_id", *p.ExternalPriceID,
			)
			return nil, nil
		default:
			return nil, err
		}
	}

	price, err := s.Gateway.FindPriceByLookupKey(ctx, p.LookupKey())
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if price.LocalPlanID() != p.ID {
		s.Logger.Warnw("processor price carries the lookup key of another plan",
			"plan_id", p.ID,
			"price_id", price.ID,
			"linked_plan_id", price.LocalPlanID(),
		)
		return nil, nil
	}
	return price, nil
}

// validate compares every active plan with its processor price concurrently
func (s *planSyncService) validate(ctx context.Context, report *SyncReport) error {
	plans, err := s.PlanRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	concurrency := s.Config.Billing.SyncConcurrency
	if concurrency <= 0 {
		concurrency = defaultSyncConcurrency
	}

	var (
		mu         sync.Mutex
		mismatches []PriceMismatch
	)
	p := pool.New().WithMaxGoroutines(concurrency).WithContext(ctx).WithCancelOnError()
	for _, pl := range plans {
		pl := pl
		p.Go(func(ctx context.Context) error {
			found, err := s.compare(ctx, pl)
			if err != nil {
				return err
			}
			mu.Lock()
			mismatches = append(mismatches, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	if len(mismatches) > 0 {
		sort.Slice(mismatches, func(i, j int) bool {
			if mismatches[i].PlanID != mismatches[j].PlanID {
				return mismatches[i].PlanID < mismatches[j].PlanID
			}
			return mismatches[i].Field < mismatches[j].Field
		})
		for _, m := range mismatches {
			s.Logger.Errorw("plan diverges from processor price",
				"plan_id", m.PlanID,
				"price_id", m.PriceID,
				"field", m.Field,
				"local", m.Local,
				"remote", m.Remote,
			)
		}
		return ierr.NewErrorf("%d plan price mismatches", len(mismatches)).
			WithHint("Plan catalog diverges from the processor; correct the plans and re-run synchronization").
			WithReportableDetails(map[string]any{
				"mismatches": lo.Map(mismatches, func(m PriceMismatch, _ int) string { return m.String() }),
			}).
			Mark(ierr.ErrSyncValidation)
	}

	report.PlansVerified = len(plans)
	return nil
}

func (s *planSyncService) compare(ctx context.Context, p *plan.Plan) ([]PriceMismatch, error) {
	if !p.HasExternalPrice() {
		return []PriceMismatch{{PlanID: p.ID, Field: "external_price_id", Local: "", Remote: "missing"}}, nil
	}

	price, err := s.Gateway.RetrievePrice(ctx, *p.ExternalPriceID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return []PriceMismatch{{PlanID: p.ID, PriceID: *p.ExternalPriceID, Field: "external_price_id", Local: *p.ExternalPriceID, Remote: "not found"}}, nil
		}
		return nil, err
	}

	var out []PriceMismatch
	add := func(field, local, remote string) {
		out = append(out, PriceMismatch{PlanID: p.ID, PriceID: price.ID, Field: field, Local: local, Remote: remote})
	}
	if price.Amount != p.Amount {
		add("amount", fmt.Sprint(p.Amount), fmt.Sprint(price.Amount))
	}
	if !strings.EqualFold(price.Currency, p.Currency) {
		add("currency", p.Currency, price.Currency)
	}
	if price.Interval != p.BillingInterval {
		add("billing_interval", string(p.BillingInterval), string(price.Interval))
	}
	if !price.Active {
		add("active", "true", "false")
	}
	return out, nil
}

func interrupted(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return ierr.WithError(err).
			WithHint("Plan synchronization was interrupted; re-run to finish").
			WithReportableDetails(map[string]any{"stage": stage}).
			Mark(ierr.ErrSystem)
	}
	return nil
}
