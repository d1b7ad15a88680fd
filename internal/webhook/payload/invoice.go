package payload

import (
	"fmt"
	"strings"
	"time"
)

type invoicePeriod struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type invoiceLine struct {
	Period invoicePeriod `json:"period"`
	Price  *struct {
		ID string `json:"id"`
	} `json:"price"`
	Pricing *struct {
		PriceDetails *struct {
			Price ref `json:"price"`
		} `json:"price_details"`
	} `json:"pricing"`
}

func (l invoiceLine) priceID() string {
	if l.Price != nil && l.Price.ID != "" {
		return l.Price.ID
	}
	if l.Pricing != nil && l.Pricing.PriceDetails != nil {
		return l.Pricing.PriceDetails.Price.String()
	}
	return ""
}

type subscriptionDetails struct {
	Subscription ref               `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// invoiceObject accepts both the flat and the parent-scoped subscription
// references the processor has used across API versions.
type invoiceObject struct {
	ID                  string               `json:"id"`
	Customer            ref                  `json:"customer"`
	Subscription        ref                  `json:"subscription"`
	SubscriptionDetails *subscriptionDetails `json:"subscription_details"`
	Parent              *struct {
		SubscriptionDetails *subscriptionDetails `json:"subscription_details"`
	} `json:"parent"`
	Charge            ref               `json:"charge"`
	PaymentIntent     ref               `json:"payment_intent"`
	BillingReason     string            `json:"billing_reason"`
	AttemptCount      int64             `json:"attempt_count"`
	AmountPaid        int64             `json:"amount_paid"`
	AmountDue         int64             `json:"amount_due"`
	Currency          string            `json:"currency"`
	Metadata          map[string]string `json:"metadata"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
	Lines struct {
		Data []invoiceLine `json:"data"`
	} `json:"lines"`
	Payments *struct {
		Data []struct {
			Payment struct {
				Charge        ref `json:"charge"`
				PaymentIntent ref `json:"payment_intent"`
			} `json:"payment"`
		} `json:"data"`
	} `json:"payments"`
	LastFinalizationError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_finalization_error"`
}

func decodeInvoice(ev *Event) (*invoiceObject, error) {
	var inv invoiceObject
	if err := unmarshalObject(ev, &inv); err != nil {
		return nil, err
	}
	if err := requireField(ev, "id", inv.ID); err != nil {
		return nil, err
	}
	if err := requireField(ev, "currency", inv.Currency); err != nil {
		return nil, err
	}
	if inv.AmountPaid < 0 || inv.AmountDue < 0 {
		return nil, malformed("invoice amount is negative", map[string]any{
			"event_id": ev.ID,
		})
	}
	return &inv, nil
}

func (inv *invoiceObject) details() *subscriptionDetails {
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		return inv.Parent.SubscriptionDetails
	}
	return inv.SubscriptionDetails
}

func (inv *invoiceObject) invoice() Invoice {
	metadata := map[string]string{}
	for k, v := range inv.Metadata {
		metadata[k] = v
	}

	externalSubID := inv.Subscription.String()
	if d := inv.details(); d != nil {
		if externalSubID == "" {
			externalSubID = d.Subscription.String()
		}
		for k, v := range d.Metadata {
			if _, ok := metadata[k]; !ok {
				metadata[k] = v
			}
		}
	}

	out := Invoice{
		Linkage:         linkage(metadata, inv.Customer),
		InvoiceID:       inv.ID,
		ChargeID:        inv.Charge.String(),
		PaymentIntentID: inv.PaymentIntent.String(),
		BillingReason:   BillingReason(inv.BillingReason),
		AttemptCount:    inv.AttemptCount,
		Currency:        strings.ToLower(inv.Currency),
	}
	out.ExternalSubscriptionID = externalSubID

	if inv.Payments != nil {
		for _, p := range inv.Payments.Data {
			if out.ChargeID == "" {
				out.ChargeID = p.Payment.Charge.String()
			}
			if out.PaymentIntentID == "" {
				out.PaymentIntentID = p.Payment.PaymentIntent.String()
			}
		}
	}

	// the subscription line with the latest end describes the period paid for
	var latest *invoiceLine
	for i := range inv.Lines.Data {
		l := &inv.Lines.Data[i]
		if l.Period.End <= 0 {
			continue
		}
		if latest == nil || l.Period.End > latest.Period.End {
			latest = l
		}
	}
	if latest != nil {
		out.PeriodStart = unixTime(latest.Period.Start)
		out.PeriodEnd = unixTime(latest.Period.End)
		out.PriceID = latest.priceID()
	}
	return out
}

func (inv *invoiceObject) paid() *InvoicePaid {
	return &InvoicePaid{
		Invoice:    inv.invoice(),
		AmountPaid: inv.AmountPaid,
		PaidAt:     unixTime(inv.StatusTransitions.PaidAt),
	}
}

func (inv *invoiceObject) failed() *InvoiceFailed {
	out := &InvoiceFailed{
		Invoice:        inv.invoice(),
		AmountDue:      inv.AmountDue,
		FailureCode:    "invoice_payment_failed",
		FailureMessage: fmt.Sprintf("Invoice payment failed (attempt %d)", inv.AttemptCount),
	}
	if e := inv.LastFinalizationError; e != nil {
		if e.Code != "" {
			out.FailureCode = e.Code
		}
		if e.Message != "" {
			out.FailureMessage = e.Message
		}
	}
	return out
}

// PaidTime is when the processor settled the invoice, or fallback if unknown
func (i InvoicePaid) PaidTime(fallback time.Time) time.Time {
	if i.PaidAt != nil {
		return *i.PaidAt
	}
	return fallback
}
