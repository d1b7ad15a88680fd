package plan

import (
	"testing"

	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    *Plan
		opts    ValidationOptions
		wantErr bool
	}{
		{
			name: "monthly production plan",
			plan: New("Athlete Monthly", "", 2999, "usd", types.BillingIntervalMonth, nil, 1),
		},
		{
			name: "yearly production plan",
			plan: New("Athlete Annual", "", 29999, "USD", types.BillingIntervalYear, nil, 2),
		},
		{
			name:    "daily interval rejected in production",
			plan:    New("Athlete Daily", "", 2999, "usd", types.BillingIntervalDay, nil, 1),
			wantErr: true,
		},
		{
			name: "daily interval allowed in sandbox",
			plan: New("Athlete Daily", "", 2999, "usd", types.BillingIntervalDay, nil, 1),
			opts: ValidationOptions{Sandbox: true},
		},
		{
			name:    "amount below minimum in production",
			plan:    New("Tiny", "", 10, "usd", types.BillingIntervalMonth, nil, 1),
			wantErr: true,
		},
		{
			name: "small amount allowed in sandbox",
			plan: New("Tiny", "", 10, "usd", types.BillingIntervalMonth, nil, 1),
			opts: ValidationOptions{Sandbox: true},
		},
		{
			name:    "zero amount rejected even in sandbox",
			plan:    New("Free", "", 0, "usd", types.BillingIntervalMonth, nil, 1),
			opts:    ValidationOptions{Sandbox: true},
			wantErr: true,
		},
		{
			// validation must not depend on free-text content
			name:    "name containing test marker does not relax rules",
			plan:    New("TEST daily plan", "sandbox", 2999, "usd", types.BillingIntervalDay, nil, 1),
			wantErr: true,
		},
		{
			name:    "missing name",
			plan:    New(" ", "", 2999, "usd", types.BillingIntervalMonth, nil, 1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewNormalizesCurrency(t *testing.T) {
	p := New("Athlete Monthly", "", 2999, "USD", types.BillingIntervalMonth, nil, 1)
	assert.Equal(t, "usd", p.Currency)
	assert.True(t, p.IsActive)
	assert.False(t, p.HasExternalPrice())
	assert.Equal(t, "plan_"+p.ID, p.LookupKey())

	p = New("Athlete Monthly", "", 2999, "", types.BillingIntervalMonth, nil, 1)
	assert.Equal(t, types.DefaultCurrency, p.Currency)
}
