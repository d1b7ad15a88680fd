package payload

import "strings"

type chargeObject struct {
	ID             string `json:"id"`
	PaymentIntent  ref    `json:"payment_intent"`
	Invoice        ref    `json:"invoice"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
}

func decodeRefund(ev *Event) (Effect, error) {
	var ch chargeObject
	if err := unmarshalObject(ev, &ch); err != nil {
		return nil, err
	}
	if err := requireField(ev, "id", ch.ID); err != nil {
		return nil, err
	}
	if ch.AmountRefunded < 0 || ch.Amount < 0 || ch.AmountRefunded > ch.Amount {
		return nil, malformed("refunded amount is out of range", map[string]any{
			"event_id": ev.ID,
		})
	}
	return &ChargeRefunded{
		ChargeID:        ch.ID,
		PaymentIntentID: ch.PaymentIntent.String(),
		InvoiceID:       ch.Invoice.String(),
		Amount:          ch.Amount,
		AmountRefunded:  ch.AmountRefunded,
		Currency:        strings.ToLower(ch.Currency),
	}, nil
}
