package payload

import (
	"context"
	"time"

	ierr "github.com/recruitlink/billing/internal/errors"
)

// Effect is the business effect carried by a verified event. The set of
// implementations is closed: every variant is declared in this package and
// must be handled by a Handler.
type Effect interface {
	apply(ctx context.Context, ev *Event, h Handler) error
}

// Handler applies each effect variant. Adding a variant adds a method here,
// so an implementation that misses it no longer compiles.
type Handler interface {
	ChargePending(ctx context.Context, ev *Event, e *ChargePending) error
	ChargeSucceeded(ctx context.Context, ev *Event, e *ChargeSucceeded) error
	ChargeFailed(ctx context.Context, ev *Event, e *ChargeFailed) error
	ChargeCanceled(ctx context.Context, ev *Event, e *ChargeCanceled) error
	InvoicePaid(ctx context.Context, ev *Event, e *InvoicePaid) error
	InvoiceFailed(ctx context.Context, ev *Event, e *InvoiceFailed) error
	SubscriptionChanged(ctx context.Context, ev *Event, e *SubscriptionChanged) error
	ChargeRefunded(ctx context.Context, ev *Event, e *ChargeRefunded) error
	Unsupported(ctx context.Context, ev *Event, e *Unsupported) error
}

// Apply routes the effect to the matching Handler method
func Apply(ctx context.Context, ev *Event, effect Effect, h Handler) error {
	if effect == nil {
		return ierr.NewError("no effect to apply").
			WithHint("Event could not be decoded").
			Mark(ierr.ErrValidation)
	}
	return effect.apply(ctx, ev, h)
}

// Linkage carries the identifiers a payment or subscription object holds
// back to local records. Any of them may be empty.
type Linkage struct {
	SubscriptionID         string
	UserID                 string
	ExternalSubscriptionID string
	ExternalCustomerID     string
}

// Charge is the common part of every payment intent variant
type Charge struct {
	Linkage
	PaymentIntentID string
	ChargeID        string
	InvoiceID       string
	Amount          int64
	Currency        string
}

// ExternalPaymentID is the identifier recorded on a ledger entry for this charge
func (c Charge) ExternalPaymentID() string {
	if c.ChargeID != "" {
		return c.ChargeID
	}
	return c.PaymentIntentID
}

// OwnedByInvoice reports whether the charge was raised by a processor invoice,
// in which case the invoice events carry its effect.
func (c Charge) OwnedByInvoice() bool {
	if c.InvoiceID != "" {
		return true
	}
	return c.SubscriptionID == "" && c.UserID == ""
}

type ChargePending struct {
	Charge
}

type ChargeSucceeded struct {
	Charge
}

type ChargeFailed struct {
	Charge
	FailureCode    string
	FailureMessage string
}

type ChargeCanceled struct {
	Charge
	Reason string
}

// BillingReason is the processor's reason for raising an invoice
type BillingReason string

const (
	BillingReasonSubscriptionCreate    BillingReason = "subscription_create"
	BillingReasonSubscriptionCycle     BillingReason = "subscription_cycle"
	BillingReasonSubscriptionUpdate    BillingReason = "subscription_update"
	BillingReasonSubscriptionThreshold BillingReason = "subscription_threshold"
	BillingReasonManual                BillingReason = "manual"
)

// Invoice is the common part of the invoice variants
type Invoice struct {
	Linkage
	InvoiceID       string
	ChargeID        string
	PaymentIntentID string
	BillingReason   BillingReason
	AttemptCount    int64
	Currency        string
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	PriceID         string
}

type InvoicePaid struct {
	Invoice
	AmountPaid int64
	PaidAt     *time.Time
}

// ExternalPaymentID identifies the settled payment. Invoices settled without
// a charge, such as zero-amount prorations, fall back to the invoice id.
func (i InvoicePaid) ExternalPaymentID() string {
	switch {
	case i.ChargeID != "":
		return i.ChargeID
	case i.PaymentIntentID != "":
		return i.PaymentIntentID
	default:
		return i.InvoiceID
	}
}

type InvoiceFailed struct {
	Invoice
	AmountDue      int64
	FailureCode    string
	FailureMessage string
}

type SubscriptionChanged struct {
	Linkage
	// Status is the processor status string; mapping happens in the dispatcher
	Status             string
	Deleted            bool
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	PriceID            string
	CanceledAt         *time.Time
}

type ChargeRefunded struct {
	ChargeID        string
	PaymentIntentID string
	// InvoiceID is set when the charge settled an invoice
	InvoiceID string
	Amount    int64
	// AmountRefunded is cumulative across all refunds of the charge
	AmountRefunded int64
	Currency       string
}

// Unsupported is any event type this service does not act on
type Unsupported struct {
	Type string
}

func (e *ChargePending) apply(ctx context.Context, ev *Event, h Handler) error {
	return h.ChargePending(ctx, ev, e)
}

func (e *ChargeSucceeded) apply(ctx context.Context, ev *Event, h Handler) error {
	return h.ChargeSucceeded(ctx, ev, e)
}

func (e *ChargeFailed) apply(ctx context.Context, ev *Event, h Handler) error {
	return h.ChargeFailed(ctx, ev, e)
}

func (e *ChargeCanceled) apply(ctx context.Context, ev *Event, h Handler) error {
	return h.ChargeCanceled(ctx, ev, e)
}

func (e *InvoicePaid) apply(ctx context.Context, ev *Event, h Handler) error {
	return h.InvoicePaid(ctx, ev, e)
}

func (e *InvoiceFailed) apply(ctx context.Context, ev *Event, h Handler) error {
	return h.InvoiceFailed(ctx, ev, e)
}

func (e *SubscriptionChanged) apply(ctx context.Context, ev *Event, h Handler) error {
	return h.SubscriptionChanged(ctx, ev, e)
}

func (e *ChargeRefunded) apply(ctx context.Context, ev *Event, h Handler) error {
	return h.ChargeRefunded(ctx, ev, e)
}

func (e *Unsupported) apply(ctx context.Context, ev *Event, h Handler) error {
	return h.Unsupported(ctx, ev, e)
}
