package payload

import "strings"

type paymentError struct {
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
	Charge      ref    `json:"charge"`
}

type paymentIntentObject struct {
	ID                 string            `json:"id"`
	Amount             int64             `json:"amount"`
	AmountReceived     int64             `json:"amount_received"`
	Currency           string            `json:"currency"`
	Customer           ref               `json:"customer"`
	LatestCharge       ref               `json:"latest_charge"`
	Invoice            ref               `json:"invoice"`
	Metadata           map[string]string `json:"metadata"`
	CancellationReason string            `json:"cancellation_reason"`
	LastPaymentError   *paymentError     `json:"last_payment_error"`
}

func decodeCharge(ev *Event) (*paymentIntentObject, error) {
	var pi paymentIntentObject
	if err := unmarshalObject(ev, &pi); err != nil {
		return nil, err
	}
	if err := requireField(ev, "id", pi.ID); err != nil {
		return nil, err
	}
	if err := requireField(ev, "currency", pi.Currency); err != nil {
		return nil, err
	}
	if pi.Amount < 0 || pi.AmountReceived < 0 {
		return nil, malformed("payment amount is negative", map[string]any{
			"event_id": ev.ID,
		})
	}
	return &pi, nil
}

func (pi *paymentIntentObject) charge() Charge {
	amount := pi.Amount
	if pi.AmountReceived > 0 {
		amount = pi.AmountReceived
	}
	return Charge{
		Linkage:         linkage(pi.Metadata, pi.Customer),
		PaymentIntentID: pi.ID,
		ChargeID:        pi.LatestCharge.String(),
		InvoiceID:       pi.Invoice.String(),
		Amount:          amount,
		Currency:        strings.ToLower(pi.Currency),
	}
}

func (pi *paymentIntentObject) failed() *ChargeFailed {
	c := pi.charge()
	c.Amount = pi.Amount

	out := &ChargeFailed{
		Charge:         c,
		FailureCode:    "payment_failed",
		FailureMessage: "Payment failed",
	}
	if e := pi.LastPaymentError; e != nil {
		if e.Charge != "" {
			out.ChargeID = e.Charge.String()
		}
		switch {
		case e.DeclineCode != "":
			out.FailureCode = e.DeclineCode
		case e.Code != "":
			out.FailureCode = e.Code
		}
		if e.Message != "" {
			out.FailureMessage = e.Message
		}
	}
	return out
}
