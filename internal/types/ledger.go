package types

import (
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/samber/lo"
)

// LedgerStatus is the lifecycle status of a ledger entry
type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusSucceeded LedgerStatus = "succeeded"
	LedgerStatusFailed    LedgerStatus = "failed"
	LedgerStatusCanceled  LedgerStatus = "canceled"
	LedgerStatusRefunded  LedgerStatus = "refunded"
)

func (s LedgerStatus) String() string {
	return string(s)
}

func (s LedgerStatus) Validate() error {
	allowed := []LedgerStatus{
		LedgerStatusPending,
		LedgerStatusSucceeded,
		LedgerStatusFailed,
		LedgerStatusCanceled,
		LedgerStatusRefunded,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid ledger status").
			WithHint("Invalid ledger status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsFinal reports whether an attempt with this status has been settled by the processor
func (s LedgerStatus) IsFinal() bool {
	return s != LedgerStatusPending
}

// PaymentType classifies why a payment attempt happened
type PaymentType string

const (
	PaymentTypeInitial   PaymentType = "initial"
	PaymentTypeRecurring PaymentType = "recurring"
	PaymentTypeRetry     PaymentType = "retry"
	PaymentTypeUpgrade   PaymentType = "upgrade"
	PaymentTypeDowngrade PaymentType = "downgrade"
)

func (p PaymentType) String() string {
	return string(p)
}

func (p PaymentType) Validate() error {
	allowed := []PaymentType{
		PaymentTypeInitial,
		PaymentTypeRecurring,
		PaymentTypeRetry,
		PaymentTypeUpgrade,
		PaymentTypeDowngrade,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid payment type").
			WithHint("Invalid payment type").
			WithReportableDetails(map[string]any{
				"payment_type":   p,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
