package payload

import (
	ierr "github.com/recruitlink/billing/internal/errors"
)

// Processor event types with a business effect
const (
	EventPaymentIntentProcessing    = "payment_intent.processing"
	EventPaymentIntentSucceeded     = "payment_intent.succeeded"
	EventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
	EventPaymentIntentCanceled      = "payment_intent.canceled"
	EventInvoicePaid                = "invoice.paid"
	EventInvoicePaymentSucceeded    = "invoice.payment_succeeded"
	EventInvoicePaymentFailed       = "invoice.payment_failed"
	EventSubscriptionCreated        = "customer.subscription.created"
	EventSubscriptionUpdated        = "customer.subscription.updated"
	EventSubscriptionDeleted        = "customer.subscription.deleted"
	EventChargeRefunded             = "charge.refunded"
)

// Decode turns a verified event into its effect. Event types without a
// business effect decode to Unsupported.
func Decode(ev *Event) (Effect, error) {
	if ev == nil {
		return nil, malformed("event is empty", map[string]any{})
	}

	switch ev.Type {
	case EventPaymentIntentProcessing:
		c, err := decodeCharge(ev)
		if err != nil {
			return nil, err
		}
		return &ChargePending{Charge: c.charge()}, nil
	case EventPaymentIntentSucceeded:
		c, err := decodeCharge(ev)
		if err != nil {
			return nil, err
		}
		return &ChargeSucceeded{Charge: c.charge()}, nil
	case EventPaymentIntentPaymentFailed:
		c, err := decodeCharge(ev)
		if err != nil {
			return nil, err
		}
		return c.failed(), nil
	case EventPaymentIntentCanceled:
		c, err := decodeCharge(ev)
		if err != nil {
			return nil, err
		}
		return &ChargeCanceled{Charge: c.charge(), Reason: c.CancellationReason}, nil
	case EventInvoicePaid, EventInvoicePaymentSucceeded:
		inv, err := decodeInvoice(ev)
		if err != nil {
			return nil, err
		}
		return inv.paid(), nil
	case EventInvoicePaymentFailed:
		inv, err := decodeInvoice(ev)
		if err != nil {
			return nil, err
		}
		return inv.failed(), nil
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		sub, err := decodeSubscription(ev)
		if err != nil {
			return nil, err
		}
		return sub.changed(ev.Type == EventSubscriptionDeleted), nil
	case EventChargeRefunded:
		return decodeRefund(ev)
	default:
		return &Unsupported{Type: ev.Type}, nil
	}
}

func unmarshalObject(ev *Event, v any) error {
	if len(ev.Object) == 0 {
		return malformed("event has no data object", map[string]any{
			"event_id":   ev.ID,
			"event_type": ev.Type,
		})
	}
	if err := json.Unmarshal(ev.Object, v); err != nil {
		return malformed("event data object could not be decoded", map[string]any{
			"event_id":   ev.ID,
			"event_type": ev.Type,
		})
	}
	return nil
}

func requireField(ev *Event, field, value string) error {
	if value == "" {
		return malformed("event data object is missing a required field", map[string]any{
			"event_id":   ev.ID,
			"event_type": ev.Type,
			"field":      field,
		})
	}
	return nil
}

func malformed(msg string, details map[string]any) error {
	b := ierr.NewError(msg).WithHint("Malformed event payload")
	if len(details) > 0 {
		b = b.WithReportableDetails(details)
	}
	return b.Mark(ierr.ErrValidation)
}

func linkage(metadata map[string]string, customer ref) Linkage {
	return Linkage{
		SubscriptionID:     metadata["subscription_id"],
		UserID:             metadata["user_id"],
		ExternalCustomerID: customer.String(),
	}
}
