package payload

import (
	"context"
	"testing"
	"time"

	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type DecodeSuite struct {
	suite.Suite
}

func TestDecode(t *testing.T) {
	suite.Run(t, new(DecodeSuite))
}

func (s *DecodeSuite) event(eventType, object string) *Event {
	raw := `{"id":"evt_1","type":"` + eventType + `","created":1700000000,"livemode":false,"data":{"object":` + object + `}}`
	ev, err := ParseEvent([]byte(raw))
	s.Require().NoError(err)
	return ev
}

func (s *DecodeSuite) TestParseEvent() {
	ev := s.event(EventInvoicePaid, `{"id":"in_1"}`)
	s.Equal("evt_1", ev.ID)
	s.Equal(EventInvoicePaid, ev.Type)
	s.Equal(time.Unix(1700000000, 0).UTC(), ev.CreatedAt)
	s.JSONEq(`{"id":"in_1"}`, string(ev.Object))
}

func (s *DecodeSuite) TestParseEventRejectsMalformedEnvelope() {
	_, err := ParseEvent([]byte(`{"id":`))
	s.True(ierr.IsValidation(err))

	_, err = ParseEvent([]byte(`{"type":"invoice.paid","created":1}`))
	s.True(ierr.IsValidation(err))

	_, err = ParseEvent([]byte(`{"id":"evt_1","type":"invoice.paid"}`))
	s.True(ierr.IsValidation(err))
}

func (s *DecodeSuite) TestChargeSucceeded() {
	ev := s.event(EventPaymentIntentSucceeded, `{
		"id":"pi_1","amount":7999,"amount_received":7999,"currency":"USD",
		"customer":"cus_1","latest_charge":"ch_1",
		"metadata":{"subscription_id":"sub_local","user_id":"user_1"}}`)

	effect, err := Decode(ev)
	s.Require().NoError(err)
	c, ok := effect.(*ChargeSucceeded)
	s.Require().True(ok)
	s.Equal("pi_1", c.PaymentIntentID)
	s.Equal("ch_1", c.ExternalPaymentID())
	s.Equal(int64(7999), c.Amount)
	s.Equal("usd", c.Currency)
	s.Equal("sub_local", c.SubscriptionID)
	s.Equal("cus_1", c.ExternalCustomerID)
	s.False(c.OwnedByInvoice())
}

func (s *DecodeSuite) TestChargeExpandedReferences() {
	ev := s.event(EventPaymentIntentSucceeded, `{
		"id":"pi_1","amount":100,"currency":"usd",
		"customer":{"id":"cus_9","object":"customer"},"latest_charge":{"id":"ch_9"},
		"metadata":{"user_id":"user_1"}}`)

	effect, err := Decode(ev)
	s.Require().NoError(err)
	c := effect.(*ChargeSucceeded)
	s.Equal("cus_9", c.ExternalCustomerID)
	s.Equal("ch_9", c.ChargeID)
}

func (s *DecodeSuite) TestChargeWithoutLinkageBelongsToInvoice() {
	ev := s.event(EventPaymentIntentSucceeded, `{"id":"pi_1","amount":100,"currency":"usd","customer":"cus_1"}`)
	effect, err := Decode(ev)
	s.Require().NoError(err)
	s.True(effect.(*ChargeSucceeded).OwnedByInvoice())
}

func (s *DecodeSuite) TestChargeFailed() {
	ev := s.event(EventPaymentIntentPaymentFailed, `{
		"id":"pi_1","amount":2999,"currency":"usd",
		"metadata":{"subscription_id":"sub_local"},
		"last_payment_error":{"code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds.","charge":"ch_failed"}}`)

	effect, err := Decode(ev)
	s.Require().NoError(err)
	f, ok := effect.(*ChargeFailed)
	s.Require().True(ok)
	s.Equal("insufficient_funds", f.FailureCode)
	s.Equal("Your card has insufficient funds.", f.FailureMessage)
	s.Equal("ch_failed", f.ChargeID)
	s.Equal(int64(2999), f.Amount)
}

func (s *DecodeSuite) TestChargeMissingID() {
	ev := s.event(EventPaymentIntentSucceeded, `{"amount":100,"currency":"usd"}`)
	_, err := Decode(ev)
	s.True(ierr.IsValidation(err))
}

func (s *DecodeSuite) TestInvoicePaidFlatShape() {
	ev := s.event(EventInvoicePaid, `{
		"id":"in_1","customer":"cus_1","subscription":"sub_ext","charge":"ch_1",
		"billing_reason":"subscription_cycle","attempt_count":1,
		"amount_paid":2999,"amount_due":2999,"currency":"usd",
		"status_transitions":{"paid_at":1700000100},
		"lines":{"data":[{"period":{"start":1700000000,"end":1702592000},"price":{"id":"price_1"}}]}}`)

	effect, err := Decode(ev)
	s.Require().NoError(err)
	inv, ok := effect.(*InvoicePaid)
	s.Require().True(ok)
	s.Equal("sub_ext", inv.ExternalSubscriptionID)
	s.Equal("ch_1", inv.ExternalPaymentID())
	s.Equal(BillingReasonSubscriptionCycle, inv.BillingReason)
	s.Equal(int64(2999), inv.AmountPaid)
	s.Require().NotNil(inv.PeriodEnd)
	s.Equal(time.Unix(1702592000, 0).UTC(), *inv.PeriodEnd)
	s.Equal("price_1", inv.PriceID)
	s.Equal(time.Unix(1700000100, 0).UTC(), inv.PaidTime(time.Time{}))
}

func (s *DecodeSuite) TestInvoicePaidParentShape() {
	ev := s.event(EventInvoicePaymentSucceeded, `{
		"id":"in_2","customer":"cus_1","billing_reason":"subscription_update",
		"amount_paid":0,"currency":"usd",
		"parent":{"subscription_details":{"subscription":"sub_ext","metadata":{"subscription_id":"sub_local"}}},
		"payments":{"data":[{"payment":{"payment_intent":"pi_2"}}]},
		"lines":{"data":[{"period":{"start":1,"end":10},"pricing":{"price_details":{"price":"price_a"}}},
		                 {"period":{"start":5,"end":20},"pricing":{"price_details":{"price":"price_b"}}}]}}`)

	effect, err := Decode(ev)
	s.Require().NoError(err)
	inv := effect.(*InvoicePaid)
	s.Equal("sub_ext", inv.ExternalSubscriptionID)
	s.Equal("sub_local", inv.SubscriptionID)
	s.Equal("pi_2", inv.ExternalPaymentID())
	s.Equal("price_b", inv.PriceID)
	s.Equal(time.Unix(20, 0).UTC(), *inv.PeriodEnd)
}

func (s *DecodeSuite) TestInvoiceWithoutPaymentFallsBackToInvoiceID() {
	ev := s.event(EventInvoicePaid, `{"id":"in_3","currency":"usd","amount_paid":0}`)
	effect, err := Decode(ev)
	s.Require().NoError(err)
	s.Equal("in_3", effect.(*InvoicePaid).ExternalPaymentID())
}

func (s *DecodeSuite) TestInvoiceFailed() {
	ev := s.event(EventInvoicePaymentFailed, `{
		"id":"in_1","subscription":"sub_ext","billing_reason":"subscription_cycle",
		"attempt_count":2,"amount_due":2999,"currency":"usd","charge":"ch_2"}`)

	effect, err := Decode(ev)
	s.Require().NoError(err)
	f, ok := effect.(*InvoiceFailed)
	s.Require().True(ok)
	s.Equal(int64(2999), f.AmountDue)
	s.Equal("invoice_payment_failed", f.FailureCode)
	s.Contains(f.FailureMessage, "attempt 2")
	s.Equal("ch_2", f.ChargeID)
}

func (s *DecodeSuite) TestSubscriptionChanged() {
	ev := s.event(EventSubscriptionDeleted, `{
		"id":"sub_ext","customer":"cus_1","status":"canceled","canceled_at":1700000050,
		"items":{"data":[{"price":{"id":"price_1"},"current_period_start":1700000000,"current_period_end":1702592000}]}}`)

	effect, err := Decode(ev)
	s.Require().NoError(err)
	c, ok := effect.(*SubscriptionChanged)
	s.Require().True(ok)
	s.True(c.Deleted)
	s.Equal("canceled", c.Status)
	s.Equal("sub_ext", c.ExternalSubscriptionID)
	s.Equal("price_1", c.PriceID)
	s.Equal(time.Unix(1702592000, 0).UTC(), *c.CurrentPeriodEnd)
}

func (s *DecodeSuite) TestChargeRefunded() {
	ev := s.event(EventChargeRefunded, `{"id":"ch_1","payment_intent":"pi_1","amount":7999,"amount_refunded":3999,"currency":"usd"}`)
	effect, err := Decode(ev)
	s.Require().NoError(err)
	r := effect.(*ChargeRefunded)
	s.Equal(int64(3999), r.AmountRefunded)
	s.Equal("pi_1", r.PaymentIntentID)
	s.Empty(r.InvoiceID)

	ev = s.event(EventChargeRefunded, `{"id":"ch_2","invoice":{"id":"in_2"},"amount":500,"amount_refunded":500,"currency":"usd"}`)
	effect, err = Decode(ev)
	s.Require().NoError(err)
	s.Equal("in_2", effect.(*ChargeRefunded).InvoiceID)

	ev = s.event(EventChargeRefunded, `{"id":"ch_1","amount":100,"amount_refunded":200,"currency":"usd"}`)
	_, err = Decode(ev)
	s.True(ierr.IsValidation(err))
}

func (s *DecodeSuite) TestUnsupported() {
	ev := s.event("customer.tax_id.created", `{"id":"txi_1"}`)
	effect, err := Decode(ev)
	s.Require().NoError(err)
	s.Equal(&Unsupported{Type: "customer.tax_id.created"}, effect)
}

func (s *DecodeSuite) TestMissingObject() {
	ev, err := NewEvent("evt_1", EventInvoicePaid, 1700000000, false, nil)
	s.Require().NoError(err)
	_, err = Decode(ev)
	s.True(ierr.IsValidation(err))
}

type recordingHandler struct {
	called string
}

func (h *recordingHandler) ChargePending(context.Context, *Event, *ChargePending) error {
	h.called = "pending"
	return nil
}
func (h *recordingHandler) ChargeSucceeded(context.Context, *Event, *ChargeSucceeded) error {
	h.called = "succeeded"
	return nil
}
func (h *recordingHandler) ChargeFailed(context.Context, *Event, *ChargeFailed) error {
	h.called = "failed"
	return nil
}
func (h *recordingHandler) ChargeCanceled(context.Context, *Event, *ChargeCanceled) error {
	h.called = "canceled"
	return nil
}
func (h *recordingHandler) InvoicePaid(context.Context, *Event, *InvoicePaid) error {
	h.called = "invoice_paid"
	return nil
}
func (h *recordingHandler) InvoiceFailed(context.Context, *Event, *InvoiceFailed) error {
	h.called = "invoice_failed"
	return nil
}
func (h *recordingHandler) SubscriptionChanged(context.Context, *Event, *SubscriptionChanged) error {
	h.called = "subscription"
	return nil
}
func (h *recordingHandler) ChargeRefunded(context.Context, *Event, *ChargeRefunded) error {
	h.called = "refunded"
	return nil
}
func (h *recordingHandler) Unsupported(context.Context, *Event, *Unsupported) error {
	h.called = "unsupported"
	return nil
}

func TestApplyRoutesToVariant(t *testing.T) {
	cases := map[Effect]string{
		&ChargePending{}:       "pending",
		&ChargeSucceeded{}:     "succeeded",
		&ChargeFailed{}:        "failed",
		&ChargeCanceled{}:      "canceled",
		&InvoicePaid{}:         "invoice_paid",
		&InvoiceFailed{}:       "invoice_failed",
		&SubscriptionChanged{}: "subscription",
		&ChargeRefunded{}:      "refunded",
		&Unsupported{}:         "unsupported",
	}
	for effect, want := range cases {
		h := &recordingHandler{}
		require.NoError(t, Apply(context.Background(), &Event{}, effect, h))
		assert.Equal(t, want, h.called)
	}

	err := Apply(context.Background(), &Event{}, nil, &recordingHandler{})
	assert.True(t, ierr.IsValidation(err))
}
