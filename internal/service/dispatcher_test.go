package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/recruitlink/billing/internal/domain/customer"
	"github.com/recruitlink/billing/internal/domain/plan"
	"github.com/recruitlink/billing/internal/domain/subscription"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/testutil"
	"github.com/recruitlink/billing/internal/types"
	"github.com/recruitlink/billing/internal/webhook/payload"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type EventDispatcherSuite struct {
	testutil.BaseServiceTestSuite
	dispatcher EventDispatcher
	plan       *plan.Plan
	sub        *subscription.Subscription
	base       time.Time
}

func TestEventDispatcher(t *testing.T) {
	suite.Run(t, new(EventDispatcherSuite))
}

func (s *EventDispatcherSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.dispatcher = NewEventDispatcher(ServiceParams{
		Logger:                s.GetLogger(),
		Config:                s.GetConfig(),
		DB:                    s.GetDB(),
		Gateway:               s.GetGateway(),
		PlanRepo:              s.GetStores().PlanRepo,
		SubRepo:               s.GetStores().SubscriptionRepo,
		LedgerRepo:            s.GetStores().LedgerRepo,
		CustomerRepo:          s.GetStores().CustomerRepo,
		ProcessedEventRepo:    s.GetStores().ProcessedEventRepo,
		NotificationPublisher: s.GetPublisher(),
	})

	s.base = s.GetNow().Add(-time.Hour).Truncate(time.Second)

	s.plan = plan.New("Employer Monthly", "", 2999, "usd", types.BillingIntervalMonth, nil, 1)
	s.plan.ExternalProductID = lo.ToPtr("prod_monthly")
	s.plan.ExternalPriceID = lo.ToPtr("price_monthly")
	s.PlanStore().Put(s.plan)

	s.sub = s.SubscriptionStore().Seed(&subscription.Subscription{
		UserID: "user_1",
		PlanID: s.plan.ID,
	})
	s.Require().NoError(s.CustomerStore().Create(s.GetContext(), &customer.Customer{
		UserID:             "user_1",
		ExternalCustomerID: "cus_1",
		Email:              "employer@example.com",
		CreatedAt:          s.base,
	}))
}

func (s *EventDispatcherSuite) event(id, eventType string, at time.Time, object map[string]any) *payload.Event {
	raw, err := json.Marshal(object)
	s.Require().NoError(err)
	ev, err := payload.NewEvent(id, eventType, at.Unix(), false, raw)
	s.Require().NoError(err)
	return ev
}

func (s *EventDispatcherSuite) paymentIntent(id, charge string, amount int64) map[string]any {
	return map[string]any{
		"id":              id,
		"amount":          amount,
		"amount_received": amount,
		"currency":        "usd",
		"customer":        "cus_1",
		"latest_charge":   charge,
		"metadata": map[string]string{
			"subscription_id": s.sub.ID,
			"user_id":         "user_1",
		},
	}
}

func (s *EventDispatcherSuite) invoice(id, charge, reason string, attempt, amount int64) map[string]any {
	return map[string]any{
		"id":             id,
		"customer":       "cus_1",
		"subscription":   "sub_ext_1",
		"charge":         charge,
		"billing_reason": reason,
		"attempt_count":  attempt,
		"amount_paid":    amount,
		"amount_due":     amount,
		"currency":       "usd",
		"lines": map[string]any{
			"data": []map[string]any{{
				"period": map[string]int64{
					"start": s.base.Unix(),
					"end":   s.base.AddDate(0, 1, 0).Unix(),
				},
				"price": map[string]string{"id": "price_monthly"},
			}},
		},
	}
}

func (s *EventDispatcherSuite) currentSub() *subscription.Subscription {
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), s.sub.ID)
	s.Require().NoError(err)
	return sub
}

func (s *EventDispatcherSuite) TestChargeSucceededRecordsInitialPayment() {
	ev := s.event("evt_1", payload.EventPaymentIntentSucceeded, s.base, s.paymentIntent("pi_1", "ch_1", 2999))

	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), ev))

	entries := s.LedgerStore().All()
	s.Require().Len(entries, 1)
	s.Equal(types.LedgerStatusSucceeded, entries[0].Status)
	s.Equal(types.PaymentTypeInitial, entries[0].PaymentType)
	s.Equal(int64(2999), entries[0].Amount)
	s.Equal("usd", entries[0].Currency)
	s.Equal("ch_1", lo.FromPtr(entries[0].ExternalPaymentID))
	s.Equal(s.sub.ID, entries[0].SubscriptionID)
	s.NotNil(entries[0].ConfirmedAt)

	sub := s.currentSub()
	s.Equal(types.SubscriptionStatusActive, sub.Status)
	s.Equal("cus_1", lo.FromPtr(sub.ExternalCustomerID))

	exists, err := s.ProcessedEventStore().Exists(s.GetContext(), "evt_1")
	s.NoError(err)
	s.True(exists)

	notifications := s.GetPubSub().Notifications(s.GetConfig().Notifications.Topic)
	s.Require().Len(notifications, 2)
	s.Equal(types.NotificationPaymentSucceeded, notifications[1].Type)
	s.Equal(types.NotificationSubscriptionChanged, notifications[0].Type)
}

func (s *EventDispatcherSuite) TestRedeliveredEventIsDuplicate() {
	ev := s.event("evt_1", payload.EventPaymentIntentSucceeded, s.base, s.paymentIntent("pi_1", "ch_1", 2999))

	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), ev))
	err := s.dispatcher.Dispatch(s.GetContext(), ev)

	s.True(ierr.IsAlreadyProcessed(err))
	s.Len(s.LedgerStore().All(), 1)
}

func (s *EventDispatcherSuite) TestSamePaymentUnderNewEventIsRecordedOnce() {
	object := s.paymentIntent("pi_1", "ch_1", 2999)

	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), s.event("evt_1", payload.EventPaymentIntentSucceeded, s.base, object)))
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), s.event("evt_2", payload.EventPaymentIntentSucceeded, s.base.Add(time.Second), object)))

	s.Len(s.LedgerStore().All(), 1)
}

func (s *EventDispatcherSuite) TestPendingAttemptIsSettledInPlace() {
	object := s.paymentIntent("pi_1", "", 2999)
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), s.event("evt_1", payload.EventPaymentIntentProcessing, s.base, object)))

	entries := s.LedgerStore().All()
	s.Require().Len(entries, 1)
	s.Equal(types.LedgerStatusPending, entries[0].Status)
	s.Nil(entries[0].ExternalPaymentID)
	pendingID := entries[0].ID

	object["latest_charge"] = "ch_1"
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), s.event("evt_2", payload.EventPaymentIntentSucceeded, s.base.Add(time.Minute), object)))

	entries = s.LedgerStore().All()
	s.Require().Len(entries, 1)
	s.Equal(pendingID, entries[0].ID)
	s.Equal(types.LedgerStatusSucceeded, entries[0].Status)
	s.Equal("ch_1", lo.FromPtr(entries[0].ExternalPaymentID))
}

func (s *EventDispatcherSuite) TestFailedChargeThenSuccessIsRetry() {
	failed := s.paymentIntent("pi_1", "", 2999)
	failed["last_payment_error"] = map[string]any{
		"charge":       "ch_declined",
		"code":         "card_declined",
		"decline_code": "insufficient_funds",
		"message":      "Your card has insufficient funds.",
	}
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), s.event("evt_1", payload.EventPaymentIntentPaymentFailed, s.base, failed)))
	s.Equal(types.SubscriptionStatusIncomplete, s.currentSub().Status)

	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), s.event("evt_2", payload.EventPaymentIntentSucceeded, s.base.Add(time.Minute), s.paymentIntent("pi_1", "ch_ok", 2999))))

	entries := s.LedgerStore().All()
	s.Require().Len(entries, 2)
	s.Equal(types.LedgerStatusFailed, entries[0].Status)
	s.Equal("insufficient_funds", lo.FromPtr(entries[0].FailureCode))
	s.Equal("ch_declined", lo.FromPtr(entries[0].ExternalPaymentID))
	s.Equal(types.LedgerStatusSucceeded, entries[1].Status)
	s.Equal(types.PaymentTypeRetry, entries[1].PaymentType)
	s.Equal(types.SubscriptionStatusActive, s.currentSub().Status)
}

func (s *EventDispatcherSuite) TestChargeRaisedByInvoiceIsLeftToInvoiceEvents() {
	object := s.paymentIntent("pi_1", "ch_1", 2999)
	object["invoice"] = "in_1"

	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), s.event("evt_1", payload.EventPaymentIntentSucceeded, s.base, object)))

	s.Empty(s.LedgerStore().All())
	s.Equal(types.SubscriptionStatusIncomplete, s.currentSub().Status)
}

func (s *EventDispatcherSuite) TestRecurringInvoiceExtendsPeriod() {
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(),
		s.event("evt_1", payload.EventInvoicePaid, s.base, s.invoice("in_1", "ch_1", "subscription_cycle", 1, 2999))))

	entries := s.LedgerStore().All()
	s.Require().Len(entries, 1)
	s.Equal(types.PaymentTypeRecurring, entries[0].PaymentType)
	s.Equal(int64(2999), entries[0].Amount)
	s.Equal("in_1", entries[0].ExternalReferenceID)

	sub := s.currentSub()
	s.Equal(types.SubscriptionStatusActive, sub.Status)
	s.Equal("sub_ext_1", lo.FromPtr(sub.ExternalSubscriptionID))
	s.Require().NotNil(sub.CurrentPeriodEnd)
	s.True(sub.CurrentPeriodEnd.Equal(s.base.AddDate(0, 1, 0)))
	s.Equal(s.plan.ID, sub.PlanID)
}

func (s *EventDispatcherSuite) TestInvoiceFailureThenRecovery() {
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(),
		s.event("evt_1", payload.EventInvoicePaid, s.base, s.invoice("in_1", "ch_1", "subscription_create", 1, 2999))))
	s.Equal(types.SubscriptionStatusActive, s.currentSub().Status)

	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(),
		s.event("evt_2", payload.EventInvoicePaymentFailed, s.base.Add(time.Hour), s.invoice("in_2", "ch_2", "subscription_cycle", 1, 2999))))
	s.Equal(types.SubscriptionStatusPastDue, s.currentSub().Status)

	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(),
		s.event("evt_3", payload.EventInvoicePaid, s.base.Add(2*time.Hour), s.invoice("in_2", "ch_3", "subscription_cycle", 2, 2999))))
	s.Equal(types.SubscriptionStatusActive, s.currentSub().Status)

	entries := s.LedgerStore().All()
	s.Require().Len(entries, 3)
	s.Equal(types.PaymentTypeInitial, entries[0].PaymentType)
	s.Equal(types.LedgerStatusFailed, entries[1].Status)
	s.Equal("invoice_payment_failed", lo.FromPtr(entries[1].FailureCode))
	s.Equal(types.PaymentTypeRetry, entries[2].PaymentType)
	s.Equal(types.LedgerStatusSucceeded, entries[2].Status)
}

func (s *EventDispatcherSuite) TestFirstInvoiceFailureLeavesSubscriptionIncomplete() {
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(),
		s.event("evt_1", payload.EventInvoicePaymentFailed, s.base, s.invoice("in_1", "", "subscription_create", 1, 2999))))

	s.Equal(types.SubscriptionStatusIncomplete, s.currentSub().Status)
	entries := s.LedgerStore().All()
	s.Require().Len(entries, 1)
	s.Equal("evt_1", lo.FromPtr(entries[0].ExternalPaymentID))
}

func (s *EventDispatcherSuite) TestPartialThenFullRefund() {
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(),
		s.event("evt_1", payload.EventPaymentIntentSucceeded, s.base, s.paymentIntent("pi_1", "ch_1", 7999))))

	refund := func(id string, at time.Time, cumulative int64) *payload.Event {
		return s.event(id, payload.EventChargeRefunded, at, map[string]any{
			"id":              "ch_1",
			"payment_intent":  "pi_1",
			"amount":          7999,
			"amount_refunded": cumulative,
			"currency":        "usd",
		})
	}

	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), refund("evt_2", s.base.Add(time.Hour), 3999)))
	entry := s.LedgerStore().All()[0]
	s.Equal(int64(3999), entry.RefundedAmount)
	s.Equal(types.LedgerStatusSucceeded, entry.Status)
	s.Equal(int64(4000), entry.RemainingRefundable())

	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), refund("evt_3", s.base.Add(2*time.Hour), 7999)))
	entry = s.LedgerStore().All()[0]
	s.Equal(int64(7999), entry.RefundedAmount)
	s.Equal(types.LedgerStatusRefunded, entry.Status)

	// a later report of the same cumulative amount changes nothing
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), refund("evt_4", s.base.Add(3*time.Hour), 7999)))
	entry = s.LedgerStore().All()[0]
	s.Equal(int64(7999), entry.RefundedAmount)
	s.Len(s.LedgerStore().All(), 1)

	refunds := lo.Filter(s.GetPubSub().Notifications(s.GetConfig().Notifications.Topic), func(n *types.BillingNotification, _ int) bool {
		return n.Type == types.NotificationPaymentRefunded
	})
	s.Require().Len(refunds, 2)
	s.Equal(int64(3999), refunds[0].Amount)
	s.Equal(int64(4000), refunds[1].Amount)
}

func (s *EventDispatcherSuite) TestRefundOfUnknownChargeIsNotFound() {
	err := s.dispatcher.Dispatch(s.GetContext(), s.event("evt_1", payload.EventChargeRefunded, s.base, map[string]any{
		"id":              "ch_unknown",
		"amount":          1000,
		"amount_refunded": 1000,
		"currency":        "usd",
	}))

	s.True(ierr.IsNotFound(err))
	exists, _ := s.ProcessedEventStore().Exists(s.GetContext(), "evt_1")
	s.False(exists)
}

func (s *EventDispatcherSuite) TestRefundOfInvoicePaidWithoutCharge() {
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(),
		s.event("evt_1", payload.EventInvoicePaid, s.base, s.invoice("in_9", "", "subscription_cycle", 1, 2999))))
	entries := s.LedgerStore().All()
	s.Require().Len(entries, 1)
	s.Equal("in_9", lo.FromPtr(entries[0].ExternalPaymentID))

	err := s.dispatcher.Dispatch(s.GetContext(), s.event("evt_2", payload.EventChargeRefunded, s.base.Add(time.Hour), map[string]any{
		"id":              "ch_9",
		"payment_intent":  "pi_9",
		"invoice":         "in_9",
		"amount":          2999,
		"amount_refunded": 2999,
		"currency":        "usd",
	}))

	s.Require().NoError(err)
	entry := s.LedgerStore().All()[0]
	s.Equal(int64(2999), entry.RefundedAmount)
	s.Equal(types.LedgerStatusRefunded, entry.Status)
}

func (s *EventDispatcherSuite) TestMissingSubscriptionRollsBackEverything() {
	object := s.paymentIntent("pi_1", "ch_1", 2999)
	object["metadata"] = map[string]string{"subscription_id": "sub_missing"}

	err := s.dispatcher.Dispatch(s.GetContext(), s.event("evt_1", payload.EventPaymentIntentSucceeded, s.base, object))

	s.True(ierr.IsNotFound(err))
	s.Empty(s.LedgerStore().All())
	exists, err := s.ProcessedEventStore().Exists(s.GetContext(), "evt_1")
	s.NoError(err)
	s.False(exists)
	s.Empty(s.GetPubSub().Notifications(s.GetConfig().Notifications.Topic))
}

func (s *EventDispatcherSuite) TestUnsupportedEventIsAcknowledged() {
	err := s.dispatcher.Dispatch(s.GetContext(), s.event("evt_1", "customer.created", s.base, map[string]any{"id": "cus_9"}))

	s.NoError(err)
	exists, _ := s.ProcessedEventStore().Exists(s.GetContext(), "evt_1")
	s.False(exists)
}

func (s *EventDispatcherSuite) TestMalformedObjectIsValidationError() {
	ev, err := payload.NewEvent("evt_1", payload.EventPaymentIntentSucceeded, s.base.Unix(), false, []byte(`{"amount":"lots"}`))
	s.Require().NoError(err)

	s.True(ierr.IsValidation(s.dispatcher.Dispatch(s.GetContext(), ev)))
}

func (s *EventDispatcherSuite) TestSubscriptionResolvedThroughCustomer() {
	object := map[string]any{
		"id":                   "sub_ext_1",
		"customer":             "cus_1",
		"status":               "active",
		"current_period_start": s.base.Unix(),
		"current_period_end":   s.base.AddDate(0, 1, 0).Unix(),
		"items": map[string]any{
			"data": []map[string]any{{"price": map[string]string{"id": "price_monthly"}}},
		},
	}

	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), s.event("evt_1", payload.EventSubscriptionCreated, s.base, object)))

	sub := s.currentSub()
	s.Equal(types.SubscriptionStatusActive, sub.Status)
	s.Equal("sub_ext_1", lo.FromPtr(sub.ExternalSubscriptionID))
	s.Empty(s.LedgerStore().All())
}

func (s *EventDispatcherSuite) TestOlderSubscriptionUpdateIsDiscarded() {
	object := func(status string) map[string]any {
		return map[string]any{
			"id":       "sub_ext_1",
			"customer": "cus_1",
			"status":   status,
			"metadata": map[string]string{"subscription_id": s.sub.ID},
		}
	}

	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), s.event("evt_2", payload.EventSubscriptionDeleted, s.base.Add(time.Hour), object("canceled"))))
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), s.event("evt_1", payload.EventSubscriptionUpdated, s.base, object("active"))))

	sub := s.currentSub()
	s.Equal(types.SubscriptionStatusCanceled, sub.Status)
	s.True(sub.StatusChangedAt.Equal(s.base.Add(time.Hour)))
}

func (s *EventDispatcherSuite) TestUnknownProcessorStatusIsIgnored() {
	s.Require().NoError(s.dispatcher.Dispatch(s.GetContext(), s.event("evt_1", payload.EventSubscriptionUpdated, s.base, map[string]any{
		"id":       "sub_ext_1",
		"status":   "paused",
		"metadata": map[string]string{"subscription_id": s.sub.ID},
	})))

	s.Equal(types.SubscriptionStatusIncomplete, s.currentSub().Status)
}

func (s *EventDispatcherSuite) TestPublishFailureDoesNotFailDispatch() {
	s.GetPubSub().PublishErr = ierr.NewError("broker down").Mark(ierr.ErrSystem)

	err := s.dispatcher.Dispatch(s.GetContext(), s.event("evt_1", payload.EventPaymentIntentSucceeded, s.base, s.paymentIntent("pi_1", "ch_1", 2999)))

	s.NoError(err)
	s.Len(s.LedgerStore().All(), 1)
}

func (s *EventDispatcherSuite) TestInvoicePaymentTypeClassification() {
	cases := []struct {
		reason   payload.BillingReason
		attempt  int64
		amount   int64
		failed   bool
		expected types.PaymentType
	}{
		{payload.BillingReasonSubscriptionCreate, 1, 2999, false, types.PaymentTypeInitial},
		{payload.BillingReasonSubscriptionCycle, 1, 2999, false, types.PaymentTypeRecurring},
		{payload.BillingReasonSubscriptionThreshold, 1, 2999, false, types.PaymentTypeRecurring},
		{payload.BillingReasonSubscriptionUpdate, 1, 1500, false, types.PaymentTypeUpgrade},
		{payload.BillingReasonSubscriptionUpdate, 1, 0, false, types.PaymentTypeDowngrade},
		{payload.BillingReasonManual, 1, 2999, false, types.PaymentTypeInitial},
		{payload.BillingReasonSubscriptionCycle, 2, 2999, false, types.PaymentTypeRetry},
		{payload.BillingReasonSubscriptionCycle, 1, 2999, true, types.PaymentTypeRetry},
	}
	for _, tc := range cases {
		s.Equal(tc.expected, invoicePaymentType(tc.reason, tc.attempt, tc.amount, tc.failed), "%s attempt %d", tc.reason, tc.attempt)
	}
}
