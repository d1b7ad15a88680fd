package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/recruitlink/billing/internal/domain/plan"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/postgres"
)

type planRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPlanRepository(db *postgres.DB, logger *logger.Logger) plan.Repository {
	return &planRepository{db: db, logger: logger}
}

const planColumns = `id, name, description, amount, currency, billing_interval, features,
	external_product_id, external_price_id, is_active, display_order, created_at, updated_at`

func (r *planRepository) FindOrCreate(ctx context.Context, p *plan.Plan) (*plan.Plan, bool, error) {
	query := `
		INSERT INTO plans (
			id,
			name,
			description,
			amount,
			currency,
			billing_interval,
			features,
			is_active,
			display_order,
			created_at,
			updated_at
		)
		VALUES (
			:id,
			:name,
			:description,
			:amount,
			:currency,
			:billing_interval,
			:features,
			:is_active,
			:display_order,
			:created_at,
			:updated_at
		)
		ON CONFLICT ON CONSTRAINT plans_interval_amount_currency_key DO NOTHING
	`

	result, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		r.logger.Errorw("failed to insert plan", "plan_name", p.Name, "error", err)
		return nil, false, translate(err, "Plan", map[string]any{"name": p.Name})
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, translate(err, "Plan", nil)
	}

	var existing plan.Plan
	err = r.db.GetQuerier(ctx).GetContext(ctx, &existing, `
		SELECT `+planColumns+`
		FROM plans
		WHERE billing_interval = $1 AND amount = $2 AND currency = $3
	`, p.BillingInterval, p.Amount, p.Currency)
	if err != nil {
		return nil, false, translate(err, "Plan", map[string]any{
			"billing_interval": p.BillingInterval,
			"amount":           p.Amount,
		})
	}

	r.logger.Debugw("resolved plan",
		"plan_id", existing.ID,
		"billing_interval", existing.BillingInterval,
		"amount", existing.Amount,
		"created", inserted == 1,
	)

	return &existing, inserted == 1, nil
}

func (r *planRepository) Get(ctx context.Context, id string) (*plan.Plan, error) {
	var p plan.Plan
	err := r.db.GetQuerier(ctx).GetContext(ctx, &p, `
		SELECT `+planColumns+`
		FROM plans
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, translate(err, "Plan", map[string]any{"plan_id": id})
	}
	return &p, nil
}

func (r *planRepository) GetByExternalPriceID(ctx context.Context, priceID string) (*plan.Plan, error) {
	var p plan.Plan
	err := r.db.GetQuerier(ctx).GetContext(ctx, &p, `
		SELECT `+planColumns+`
		FROM plans
		WHERE external_price_id = $1
	`, priceID)
	if err != nil {
		return nil, translate(err, "Plan", nil)
	}
	return &p, nil
}

func (r *planRepository) ListActive(ctx context.Context) ([]*plan.Plan, error) {
	var plans []*plan.Plan
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &plans, `
		SELECT `+planColumns+`
		FROM plans
		WHERE is_active = TRUE
		ORDER BY display_order, created_at
	`)
	if err != nil {
		r.logger.Errorw("failed to list plans", "error", err)
		return nil, translate(err, "Plan", nil)
	}
	return plans, nil
}

func (r *planRepository) SetExternalIDs(ctx context.Context, id, productID, priceID string) error {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `
		UPDATE plans
		SET external_product_id = $2,
			external_price_id = $3,
			updated_at = $4
		WHERE id = $1
	`, id, productID, priceID, time.Now().UTC())
	if err != nil {
		r.logger.Errorw("failed to record plan external ids", "plan_id", id, "error", err)
		return translate(err, "Plan", map[string]any{"plan_id": id})
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return translate(sql.ErrNoRows, "Plan", map[string]any{"plan_id": id})
	}
	return nil
}
