package plan

import (
	"strings"
	"time"

	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/types"
	"github.com/samber/lo"
)

// Plan is a sellable subscription offering and its mirrored processor catalog ids
type Plan struct {
	ID              string                `db:"id" json:"id"`
	Name            string                `db:"name" json:"name"`
	Description     string                `db:"description" json:"description"`
	Amount          int64                 `db:"amount" json:"amount"`
	Currency        string                `db:"currency" json:"currency"`
	BillingInterval types.BillingInterval `db:"billing_interval" json:"billing_interval"`
	Features        types.StringList      `db:"features" json:"features"`
	// ExternalProductID and ExternalPriceID are nil until the plan has been synchronized
	ExternalProductID *string   `db:"external_product_id" json:"-"`
	ExternalPriceID   *string   `db:"external_price_id" json:"-"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	DisplayOrder      int       `db:"display_order" json:"display_order"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ValidationOptions controls how strictly a plan is validated.
// Sandbox comes from configuration and is never inferred from plan data.
type ValidationOptions struct {
	Sandbox bool
}

// New builds an active plan with a fresh id
func New(name, description string, amount int64, currency string, interval types.BillingInterval, features []string, displayOrder int) *Plan {
	now := time.Now().UTC()
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return &Plan{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		Name:            name,
		Description:     description,
		Amount:          amount,
		Currency:        strings.ToLower(currency),
		BillingInterval: interval,
		Features:        features,
		IsActive:        true,
		DisplayOrder:    displayOrder,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate checks the financial fields of a plan
func (p *Plan) Validate(opts ValidationOptions) error {
	if strings.TrimSpace(p.Name) == "" {
		return ierr.NewError("plan name is required").
			WithHint("Plan name is required").
			Mark(ierr.ErrValidation)
	}

	if len(p.Currency) != 3 {
		return ierr.NewError("invalid plan currency").
			WithHint("Plan currency must be a three letter ISO code").
			WithReportableDetails(map[string]any{"currency": p.Currency}).
			Mark(ierr.ErrValidation)
	}

	allowedIntervals := types.ProductionBillingIntervals
	minimum := types.MinimumChargeAmount
	if opts.Sandbox {
		allowedIntervals = types.SandboxBillingIntervals
		minimum = 1
	}

	if !lo.Contains(allowedIntervals, p.BillingInterval) {
		return ierr.NewError("billing interval not allowed").
			WithHint("Billing interval is not allowed").
			WithReportableDetails(map[string]any{
				"billing_interval": p.BillingInterval,
				"allowed_values":   allowedIntervals,
				"sandbox":          opts.Sandbox,
			}).
			Mark(ierr.ErrValidation)
	}

	if p.Amount < minimum {
		return ierr.NewError("plan amount below minimum").
			WithHint("Plan amount is below the minimum charge").
			WithReportableDetails(map[string]any{
				"amount":  p.Amount,
				"minimum": minimum,
				"sandbox": opts.Sandbox,
			}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

// HasExternalPrice reports whether a processor price id has been recorded
func (p *Plan) HasExternalPrice() bool {
	return p.ExternalPriceID != nil && *p.ExternalPriceID != ""
}

// LookupKey is the processor lookup key used to find this plan's price without a recorded id
func (p *Plan) LookupKey() string {
	return types.PlanLookupKey(p.ID)
}
