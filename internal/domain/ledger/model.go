package ledger

import (
	"strings"
	"time"

	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/types"
)

// Entry is one payment attempt and its outcome. Financial fields never change once written;
// Finalize and ApplyRefund are the only transitions and both return a new value.
type Entry struct {
	ID             string `db:"id" json:"id"`
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`
	UserID         string `db:"user_id" json:"user_id"`
	// ExternalPaymentID identifies the confirmed processor payment. Nil only while pending.
	ExternalPaymentID *string `db:"external_payment_id" json:"-"`
	// ExternalReferenceID is the processor object the attempt belongs to (payment intent or invoice)
	ExternalReferenceID string             `db:"external_reference_id" json:"-"`
	Amount              int64              `db:"amount" json:"amount"`
	Currency            string             `db:"currency" json:"currency"`
	Status              types.LedgerStatus `db:"status" json:"status"`
	PaymentType         types.PaymentType  `db:"payment_type" json:"payment_type"`
	FailureCode         *string            `db:"failure_code" json:"failure_code,omitempty"`
	FailureMessage      *string            `db:"failure_message" json:"failure_message,omitempty"`
	RefundedAmount      int64              `db:"refunded_amount" json:"refunded_amount"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	ConfirmedAt         *time.Time         `db:"confirmed_at" json:"confirmed_at,omitempty"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`
}

// Attempt describes a payment attempt as first observed
type Attempt struct {
	SubscriptionID      string
	UserID              string
	ExternalReferenceID string
	Amount              int64
	Currency            string
	PaymentType         types.PaymentType
}

// Outcome is the processor's verdict on an attempt
type Outcome struct {
	Status            types.LedgerStatus
	ExternalPaymentID string
	ConfirmedAt       time.Time
	FailureCode       string
	FailureMessage    string
}

// NewPending records an attempt whose outcome is not known yet
func NewPending(a Attempt) (*Entry, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Entry{
		ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LEDGER_ENTRY),
		SubscriptionID:      a.SubscriptionID,
		UserID:              a.UserID,
		ExternalReferenceID: a.ExternalReferenceID,
		Amount:              a.Amount,
		Currency:            strings.ToLower(a.Currency),
		Status:              types.LedgerStatusPending,
		PaymentType:         a.PaymentType,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// NewSettled records an attempt first observed together with its outcome
func NewSettled(a Attempt, o Outcome) (*Entry, error) {
	pending, err := NewPending(a)
	if err != nil {
		return nil, err
	}
	return pending.Finalize(o)
}

// Finalize settles a pending entry
func (e *Entry) Finalize(o Outcome) (*Entry, error) {
	if e.Status != types.LedgerStatusPending {
		return nil, ierr.NewError("ledger entry already finalized").
			WithHint("Payment attempt has already been settled").
			WithReportableDetails(map[string]any{
				"ledger_entry_id": e.ID,
				"status":          e.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	switch o.Status {
	case types.LedgerStatusSucceeded, types.LedgerStatusFailed, types.LedgerStatusCanceled:
	default:
		return nil, ierr.NewError("invalid outcome status").
			WithHint("Payment outcome must be succeeded, failed or canceled").
			WithReportableDetails(map[string]any{"status": o.Status}).
			Mark(ierr.ErrValidation)
	}

	if o.Status == types.LedgerStatusSucceeded && o.ExternalPaymentID == "" {
		return nil, ierr.NewError("succeeded payment without external id").
			WithHint("A confirmed payment requires a processor payment id").
			Mark(ierr.ErrValidation)
	}

	if e.ExternalPaymentID != nil && o.ExternalPaymentID != "" && *e.ExternalPaymentID != o.ExternalPaymentID {
		return nil, ierr.NewError("external payment id mismatch").
			WithHint("Payment attempt is bound to a different processor payment").
			WithReportableDetails(map[string]any{"ledger_entry_id": e.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	next := *e
	next.Status = o.Status
	if o.ExternalPaymentID != "" {
		externalID := o.ExternalPaymentID
		next.ExternalPaymentID = &externalID
	}
	confirmedAt := o.ConfirmedAt.UTC()
	if o.ConfirmedAt.IsZero() {
		confirmedAt = time.Now().UTC()
	}
	next.ConfirmedAt = &confirmedAt
	if o.FailureCode != "" {
		code := o.FailureCode
		next.FailureCode = &code
	}
	if o.FailureMessage != "" {
		msg := o.FailureMessage
		next.FailureMessage = &msg
	}
	next.UpdatedAt = time.Now().UTC()
	return &next, nil
}

// ApplyRefund adds delta to the refunded amount. The entry becomes refunded once the
// whole amount has been returned; a fully refunded entry accepts no further refunds.
func (e *Entry) ApplyRefund(delta int64) (*Entry, error) {
	if e.Status != types.LedgerStatusSucceeded {
		return nil, ierr.NewError("refund on entry that is not succeeded").
			WithHint("Only succeeded payments can be refunded").
			WithReportableDetails(map[string]any{
				"ledger_entry_id": e.ID,
				"status":          e.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if delta <= 0 {
		return nil, ierr.NewError("refund amount must be positive").
			WithHint("Refund amount must be positive").
			WithReportableDetails(map[string]any{"refund_amount": delta}).
			Mark(ierr.ErrValidation)
	}

	if e.RefundedAmount+delta > e.Amount {
		return nil, ierr.NewError("refund exceeds payment amount").
			WithHint("Refund would exceed the original payment amount").
			WithReportableDetails(map[string]any{
				"ledger_entry_id": e.ID,
				"amount":          e.Amount,
				"refunded_amount": e.RefundedAmount,
				"refund_amount":   delta,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	next := *e
	next.RefundedAmount += delta
	if next.RefundedAmount == next.Amount {
		next.Status = types.LedgerStatusRefunded
	}
	next.UpdatedAt = time.Now().UTC()
	return &next, nil
}

// RemainingRefundable is the amount that can still be refunded
func (e *Entry) RemainingRefundable() int64 {
	return e.Amount - e.RefundedAmount
}

func (a Attempt) validate() error {
	if a.SubscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("Payment attempt must reference a subscription").
			Mark(ierr.ErrValidation)
	}
	if a.ExternalReferenceID == "" {
		return ierr.NewError("external reference id is required").
			WithHint("Payment attempt must reference a processor object").
			Mark(ierr.ErrValidation)
	}
	if a.Amount < 0 {
		return ierr.NewError("negative payment amount").
			WithHint("Payment amount cannot be negative").
			WithReportableDetails(map[string]any{"amount": a.Amount}).
			Mark(ierr.ErrValidation)
	}
	if len(a.Currency) != 3 {
		return ierr.NewError("invalid currency").
			WithHint("Currency must be a three letter ISO code").
			WithReportableDetails(map[string]any{"currency": a.Currency}).
			Mark(ierr.ErrValidation)
	}
	return a.PaymentType.Validate()
}
