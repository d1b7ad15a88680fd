package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionStatusFromProcessor(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   SubscriptionStatus
		wantOK bool
	}{
		{name: "active", input: "active", want: SubscriptionStatusActive, wantOK: true},
		{name: "trialing counts as active", input: "trialing", want: SubscriptionStatusActive, wantOK: true},
		{name: "unpaid counts as past due", input: "unpaid", want: SubscriptionStatusPastDue, wantOK: true},
		{name: "expired incomplete is canceled", input: "incomplete_expired", want: SubscriptionStatusCanceled, wantOK: true},
		{name: "incomplete", input: "incomplete", want: SubscriptionStatusIncomplete, wantOK: true},
		{name: "paused has no local meaning", input: "paused", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SubscriptionStatusFromProcessor(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "29.99", FormatMinorUnits(2999, "usd"))
	assert.Equal(t, "0.50", FormatMinorUnits(50, "USD"))
	assert.Equal(t, "500", FormatMinorUnits(500, "jpy"))
}

func TestBillingIntervalValidate(t *testing.T) {
	assert.NoError(t, BillingIntervalMonth.Validate())
	assert.NoError(t, BillingIntervalDay.Validate())
	assert.Error(t, BillingInterval("fortnight").Validate())
}
