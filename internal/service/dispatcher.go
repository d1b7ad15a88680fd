package service

import (
	"context"
	"fmt"
	"time"

	"github.com/recruitlink/billing/internal/domain/ledger"
	"github.com/recruitlink/billing/internal/domain/processedevent"
	"github.com/recruitlink/billing/internal/domain/subscription"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/types"
	"github.com/recruitlink/billing/internal/webhook/payload"
	"github.com/samber/lo"
)

// EventDispatcher applies verified processor events to local state
type EventDispatcher interface {
	// Dispatch commits every effect of ev in one transaction. A redelivered event
	// fails with ErrAlreadyProcessed; a missing local record fails with ErrNotFound
	// and nothing is committed.
	Dispatch(ctx context.Context, ev *payload.Event) error
}

type eventDispatcher struct {
	ServiceParams
}

func NewEventDispatcher(params ServiceParams) EventDispatcher {
	return &eventDispatcher{
		ServiceParams: params,
	}
}

func (s *eventDispatcher) Dispatch(ctx context.Context, ev *payload.Event) error {
	if ev == nil {
		return ierr.NewError("nil event").
			WithHint("Event is required").
			Mark(ierr.ErrValidation)
	}
	ctx = types.WithEventID(ctx, ev.ID)

	effect, err := payload.Decode(ev)
	if err != nil {
		s.Logger.Warnw("failed to decode processor event",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"error", err,
		)
		return err
	}

	if _, ok := effect.(*payload.Unsupported); ok {
		s.Logger.Infow("ignoring unsupported processor event",
			"event_id", ev.ID,
			"event_type", ev.Type,
		)
		return nil
	}

	a := &effectApplier{ServiceParams: s.ServiceParams}
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.ProcessedEventRepo.MarkProcessed(ctx, &processedevent.Event{
			EventID:        ev.ID,
			EventType:      ev.Type,
			EventCreatedAt: ev.CreatedAt,
			ProcessedAt:    time.Now().UTC(),
		}); err != nil {
			return err
		}
		return payload.Apply(ctx, ev, effect, a)
	})
	if err != nil {
		if !ierr.IsAlreadyProcessed(err) {
			s.Logger.Warnw("processor event rolled back",
				"event_id", ev.ID,
				"event_type", ev.Type,
				"error", err,
			)
		}
		return err
	}

	s.Logger.Infow("applied processor event",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"effect", fmt.Sprintf("%T", effect),
		"notifications", len(a.notifications),
	)

	for _, n := range a.notifications {
		if err := s.NotificationPublisher.Publish(ctx, n); err != nil {
			s.Logger.Warnw("failed to publish billing notification",
				"event_id", ev.ID,
				"notification_type", n.Type,
				"error", err,
			)
		}
	}
	return nil
}

// effectApplier implements payload.Handler inside the dispatch transaction.
// Notifications are collected and published by the dispatcher after commit.
type effectApplier struct {
	ServiceParams
	notifications []*types.BillingNotification
}

var _ payload.Handler = (*effectApplier)(nil)

func (a *effectApplier) ChargePending(ctx context.Context, ev *payload.Event, e *payload.ChargePending) error {
	if e.OwnedByInvoice() {
		a.skipInvoiceCharge(ev, e.Charge)
		return nil
	}

	entries, err := a.LedgerRepo.ListByReference(ctx, e.PaymentIntentID)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		a.Logger.Debugw("payment attempt already recorded",
			"event_id", ev.ID,
			"ledger_entry_id", entries[len(entries)-1].ID,
		)
		return nil
	}

	sub, err := a.resolveSubscription(ctx, e.Linkage)
	if err != nil {
		return err
	}

	entry, err := ledger.NewPending(ledger.Attempt{
		SubscriptionID:      sub.ID,
		UserID:              sub.UserID,
		ExternalReferenceID: e.PaymentIntentID,
		Amount:              e.Amount,
		Currency:            e.Currency,
		PaymentType:         types.PaymentTypeInitial,
	})
	if err != nil {
		return err
	}
	_, err = a.recordEntry(ctx, entry)
	return err
}

func (a *effectApplier) ChargeSucceeded(ctx context.Context, ev *payload.Event, e *payload.ChargeSucceeded) error {
	if e.OwnedByInvoice() {
		a.skipInvoiceCharge(ev, e.Charge)
		return nil
	}

	externalID := e.ExternalPaymentID()
	if recorded, err := a.alreadyRecorded(ctx, ev, externalID); err != nil || recorded {
		return err
	}

	sub, err := a.resolveSubscription(ctx, e.Linkage)
	if err != nil {
		return err
	}

	entry, err := a.settleAttempt(ctx, ledger.Attempt{
		SubscriptionID:      sub.ID,
		UserID:              sub.UserID,
		ExternalReferenceID: e.PaymentIntentID,
		Amount:              e.Amount,
		Currency:            e.Currency,
		PaymentType:         types.PaymentTypeInitial,
	}, ledger.Outcome{
		Status:            types.LedgerStatusSucceeded,
		ExternalPaymentID: externalID,
		ConfirmedAt:       ev.CreatedAt,
	})
	if err != nil || entry == nil {
		return err
	}

	if _, err := a.transition(ctx, ev, sub, subscription.Transition{
		Status:             types.SubscriptionStatusActive,
		ExternalCustomerID: e.ExternalCustomerID,
	}); err != nil {
		return err
	}

	a.notifyPayment(ev, types.NotificationPaymentSucceeded, entry)
	return nil
}

func (a *effectApplier) ChargeFailed(ctx context.Context, ev *payload.Event, e *payload.ChargeFailed) error {
	if e.OwnedByInvoice() {
		a.skipInvoiceCharge(ev, e.Charge)
		return nil
	}

	externalID := failedAttemptID(e.ChargeID, ev)
	if recorded, err := a.alreadyRecorded(ctx, ev, externalID); err != nil || recorded {
		return err
	}

	sub, err := a.resolveSubscription(ctx, e.Linkage)
	if err != nil {
		return err
	}

	entry, err := a.settleAttempt(ctx, ledger.Attempt{
		SubscriptionID:      sub.ID,
		UserID:              sub.UserID,
		ExternalReferenceID: e.PaymentIntentID,
		Amount:              e.Amount,
		Currency:            e.Currency,
		PaymentType:         types.PaymentTypeInitial,
	}, ledger.Outcome{
		Status:            types.LedgerStatusFailed,
		ExternalPaymentID: externalID,
		ConfirmedAt:       ev.CreatedAt,
		FailureCode:       e.FailureCode,
		FailureMessage:    e.FailureMessage,
	})
	if err != nil || entry == nil {
		return err
	}

	// a failed one-off charge leaves the subscription as it is
	a.notifyPayment(ev, types.NotificationPaymentFailed, entry)
	return nil
}

func (a *effectApplier) ChargeCanceled(ctx context.Context, ev *payload.Event, e *payload.ChargeCanceled) error {
	if e.OwnedByInvoice() {
		a.skipInvoiceCharge(ev, e.Charge)
		return nil
	}

	externalID := failedAttemptID(e.ChargeID, ev)
	if recorded, err := a.alreadyRecorded(ctx, ev, externalID); err != nil || recorded {
		return err
	}

	sub, err := a.resolveSubscription(ctx, e.Linkage)
	if err != nil {
		return err
	}

	_, err = a.settleAttempt(ctx, ledger.Attempt{
		SubscriptionID:      sub.ID,
		UserID:              sub.UserID,
		ExternalReferenceID: e.PaymentIntentID,
		Amount:              e.Amount,
		Currency:            e.Currency,
		PaymentType:         types.PaymentTypeInitial,
	}, ledger.Outcome{
		Status:            types.LedgerStatusCanceled,
		ExternalPaymentID: externalID,
		ConfirmedAt:       ev.CreatedAt,
		FailureCode:       e.Reason,
	})
	return err
}

func (a *effectApplier) InvoicePaid(ctx context.Context, ev *payload.Event, e *payload.InvoicePaid) error {
	externalID := e.ExternalPaymentID()
	if recorded, err := a.alreadyRecorded(ctx, ev, externalID); err != nil || recorded {
		return err
	}

	sub, err := a.resolveSubscription(ctx, e.Linkage)
	if err != nil {
		return err
	}

	priorFailure, err := a.hasFailedAttempt(ctx, e.InvoiceID)
	if err != nil {
		return err
	}

	entry, err := ledger.NewSettled(ledger.Attempt{
		SubscriptionID:      sub.ID,
		UserID:              sub.UserID,
		ExternalReferenceID: e.InvoiceID,
		Amount:              e.AmountPaid,
		Currency:            e.Currency,
		PaymentType:         invoicePaymentType(e.BillingReason, e.AttemptCount, e.AmountPaid, priorFailure),
	}, ledger.Outcome{
		Status:            types.LedgerStatusSucceeded,
		ExternalPaymentID: externalID,
		ConfirmedAt:       e.PaidTime(ev.CreatedAt),
	})
	if err != nil {
		return err
	}
	created, err := a.recordEntry(ctx, entry)
	if err != nil || !created {
		return err
	}

	planID, err := a.planForPrice(ctx, ev, e.PriceID)
	if err != nil {
		return err
	}

	if _, err := a.transition(ctx, ev, sub, subscription.Transition{
		Status:                 types.SubscriptionStatusActive,
		PeriodStart:            e.PeriodStart,
		PeriodEnd:              e.PeriodEnd,
		ExternalSubscriptionID: e.ExternalSubscriptionID,
		ExternalCustomerID:     e.ExternalCustomerID,
		PlanID:                 planID,
	}); err != nil {
		return err
	}

	a.notifyPayment(ev, types.NotificationPaymentSucceeded, entry)
	return nil
}

func (a *effectApplier) InvoiceFailed(ctx context.Context, ev *payload.Event, e *payload.InvoiceFailed) error {
	externalID := failedAttemptID(e.ChargeID, ev)
	if recorded, err := a.alreadyRecorded(ctx, ev, externalID); err != nil || recorded {
		return err
	}

	sub, err := a.resolveSubscription(ctx, e.Linkage)
	if err != nil {
		return err
	}

	priorFailure, err := a.hasFailedAttempt(ctx, e.InvoiceID)
	if err != nil {
		return err
	}

	entry, err := ledger.NewSettled(ledger.Attempt{
		SubscriptionID:      sub.ID,
		UserID:              sub.UserID,
		ExternalReferenceID: e.InvoiceID,
		Amount:              e.AmountDue,
		Currency:            e.Currency,
		PaymentType:         invoicePaymentType(e.BillingReason, e.AttemptCount, e.AmountDue, priorFailure),
	}, ledger.Outcome{
		Status:            types.LedgerStatusFailed,
		ExternalPaymentID: externalID,
		ConfirmedAt:       ev.CreatedAt,
		FailureCode:       e.FailureCode,
		FailureMessage:    e.FailureMessage,
	})
	if err != nil {
		return err
	}
	created, err := a.recordEntry(ctx, entry)
	if err != nil || !created {
		return err
	}

	status := types.SubscriptionStatusPastDue
	if e.BillingReason == payload.BillingReasonSubscriptionCreate {
		// the first invoice never succeeded, so the subscription was never active
		status = types.SubscriptionStatusIncomplete
	}
	if _, err := a.transition(ctx, ev, sub, subscription.Transition{
		Status:                 status,
		ExternalSubscriptionID: e.ExternalSubscriptionID,
		ExternalCustomerID:     e.ExternalCustomerID,
	}); err != nil {
		return err
	}

	a.notifyPayment(ev, types.NotificationPaymentFailed, entry)
	return nil
}

func (a *effectApplier) SubscriptionChanged(ctx context.Context, ev *payload.Event, e *payload.SubscriptionChanged) error {
	status, ok := types.SubscriptionStatusFromProcessor(e.Status)
	if e.Deleted {
		status, ok = types.SubscriptionStatusCanceled, true
	}
	if !ok {
		a.Logger.Infow("ignoring processor subscription status without local meaning",
			"event_id", ev.ID,
			"processor_status", e.Status,
		)
		return nil
	}

	sub, err := a.resolveSubscription(ctx, e.Linkage)
	if err != nil {
		return err
	}

	planID, err := a.planForPrice(ctx, ev, e.PriceID)
	if err != nil {
		return err
	}

	_, err = a.transition(ctx, ev, sub, subscription.Transition{
		Status:                 status,
		PeriodStart:            e.CurrentPeriodStart,
		PeriodEnd:              e.CurrentPeriodEnd,
		ExternalSubscriptionID: e.ExternalSubscriptionID,
		ExternalCustomerID:     e.ExternalCustomerID,
		PlanID:                 planID,
	})
	return err
}

func (a *effectApplier) ChargeRefunded(ctx context.Context, ev *payload.Event, e *payload.ChargeRefunded) error {
	entry, err := a.findRefundTarget(ctx, e)
	if err != nil {
		return err
	}

	delta := e.AmountRefunded - entry.RefundedAmount
	if delta <= 0 {
		a.Logger.Infow("refund already applied",
			"event_id", ev.ID,
			"ledger_entry_id", entry.ID,
			"refunded_amount", entry.RefundedAmount,
			"processor_refunded_amount", e.AmountRefunded,
		)
		return nil
	}

	next, err := entry.ApplyRefund(delta)
	if err != nil {
		return err
	}
	if err := a.LedgerRepo.SaveRefund(ctx, next); err != nil {
		return err
	}

	a.Logger.Infow("recorded refund",
		"event_id", ev.ID,
		"ledger_entry_id", next.ID,
		"refund_amount", delta,
		"refunded_amount", next.RefundedAmount,
		"status", next.Status,
	)

	a.notifications = append(a.notifications, &types.BillingNotification{
		Type:           types.NotificationPaymentRefunded,
		EventID:        ev.ID,
		UserID:         next.UserID,
		SubscriptionID: next.SubscriptionID,
		LedgerEntryID:  next.ID,
		Amount:         delta,
		Currency:       next.Currency,
		OccurredAt:     ev.CreatedAt,
	})
	return nil
}

func (a *effectApplier) Unsupported(ctx context.Context, ev *payload.Event, e *payload.Unsupported) error {
	a.Logger.Debugw("no effect for processor event", "event_id", ev.ID, "event_type", e.Type)
	return nil
}

// resolveSubscription locks the local subscription an object links to. Metadata
// written at checkout wins, then the processor subscription id, then the user
// or processor customer.
func (a *effectApplier) resolveSubscription(ctx context.Context, l payload.Linkage) (*subscription.Subscription, error) {
	if l.SubscriptionID != "" {
		return a.SubRepo.GetForUpdate(ctx, l.SubscriptionID)
	}

	if l.ExternalSubscriptionID != "" {
		sub, err := a.SubRepo.GetByExternalIDForUpdate(ctx, l.ExternalSubscriptionID)
		if err == nil {
			return sub, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	userID := l.UserID
	if userID == "" && l.ExternalCustomerID != "" {
		c, err := a.CustomerRepo.GetByExternalID(ctx, l.ExternalCustomerID)
		if err != nil {
			return nil, err
		}
		userID = c.UserID
	}
	if userID == "" {
		return nil, ierr.NewError("event does not link to a local subscription").
			WithHint("Subscription not found").
			Mark(ierr.ErrNotFound)
	}

	return a.SubRepo.GetLatestByUserIDForUpdate(ctx, userID)
}

// alreadyRecorded reports whether a ledger entry exists for the processor payment
func (a *effectApplier) alreadyRecorded(ctx context.Context, ev *payload.Event, externalPaymentID string) (bool, error) {
	existing, err := a.LedgerRepo.GetByExternalPaymentID(ctx, externalPaymentID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	a.Logger.Infow("payment already recorded",
		"event_id", ev.ID,
		"ledger_entry_id", existing.ID,
		"status", existing.Status,
	)
	return true, nil
}

// settleAttempt finalizes the pending entry for the attempt's reference, or
// records a new settled entry. A new entry after a failed one is a retry.
func (a *effectApplier) settleAttempt(ctx context.Context, attempt ledger.Attempt, outcome ledger.Outcome) (*ledger.Entry, error) {
	entries, err := a.LedgerRepo.ListByReference(ctx, attempt.ExternalReferenceID)
	if err != nil {
		return nil, err
	}

	if pending, ok := lo.Find(entries, func(e *ledger.Entry) bool {
		return e.Status == types.LedgerStatusPending
	}); ok {
		next, err := pending.Finalize(outcome)
		if err != nil {
			return nil, err
		}
		if err := a.LedgerRepo.SaveOutcome(ctx, next); err != nil {
			return nil, err
		}
		a.Logger.Infow("settled pending payment",
			"ledger_entry_id", next.ID,
			"status", next.Status,
			"amount", next.Amount,
		)
		return next, nil
	}

	if lo.ContainsBy(entries, func(e *ledger.Entry) bool {
		return e.Status == types.LedgerStatusFailed
	}) {
		attempt.PaymentType = types.PaymentTypeRetry
	}

	entry, err := ledger.NewSettled(attempt, outcome)
	if err != nil {
		return nil, err
	}
	created, err := a.recordEntry(ctx, entry)
	if err != nil || !created {
		return nil, err
	}
	return entry, nil
}

// recordEntry inserts entry under a savepoint so a duplicate external payment id
// leaves the surrounding transaction usable. It reports whether a row was written.
func (a *effectApplier) recordEntry(ctx context.Context, entry *ledger.Entry) (bool, error) {
	err := a.DB.WithTx(ctx, func(ctx context.Context) error {
		return a.LedgerRepo.Create(ctx, entry)
	})
	if err != nil {
		if ierr.IsAlreadyExists(err) {
			a.Logger.Infow("payment already recorded",
				"event_id", types.GetEventID(ctx),
				"subscription_id", entry.SubscriptionID,
			)
			return false, nil
		}
		return false, err
	}

	a.Logger.Infow("recorded payment",
		"event_id", types.GetEventID(ctx),
		"ledger_entry_id", entry.ID,
		"subscription_id", entry.SubscriptionID,
		"status", entry.Status,
		"payment_type", entry.PaymentType,
		"amount", entry.Amount,
		"currency", entry.Currency,
	)
	return true, nil
}

func (a *effectApplier) hasFailedAttempt(ctx context.Context, referenceID string) (bool, error) {
	entries, err := a.LedgerRepo.ListByReference(ctx, referenceID)
	if err != nil {
		return false, err
	}
	return lo.ContainsBy(entries, func(e *ledger.Entry) bool {
		return e.Status == types.LedgerStatusFailed
	}), nil
}

func (a *effectApplier) findRefundTarget(ctx context.Context, e *payload.ChargeRefunded) (*ledger.Entry, error) {
	for _, id := range []string{e.ChargeID, e.PaymentIntentID} {
		if id == "" {
			continue
		}
		entry, err := a.LedgerRepo.GetByExternalPaymentID(ctx, id)
		if err == nil {
			return entry, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	// an invoice settled without a charge on its payload is recorded under the invoice id
	for _, ref := range []string{e.InvoiceID, e.PaymentIntentID} {
		if ref == "" {
			continue
		}
		attempts, err := a.LedgerRepo.ListByReference(ctx, ref)
		if err != nil {
			return nil, err
		}
		settled := lo.Filter(attempts, func(entry *ledger.Entry, _ int) bool {
			return entry.Status == types.LedgerStatusSucceeded || entry.Status == types.LedgerStatusRefunded
		})
		if len(settled) > 0 {
			return settled[len(settled)-1], nil
		}
	}

	return nil, ierr.NewError("no ledger entry for refunded charge").
		WithHint("Payment not found").
		WithReportableDetails(map[string]any{
			"charge_id":  e.ChargeID,
			"invoice_id": e.InvoiceID,
		}).
		Mark(ierr.ErrNotFound)
}

// planForPrice maps a processor price to a local plan. Unknown prices keep the current plan.
func (a *effectApplier) planForPrice(ctx context.Context, ev *payload.Event, priceID string) (string, error) {
	if priceID == "" {
		return "", nil
	}
	p, err := a.PlanRepo.GetByExternalPriceID(ctx, priceID)
	if err != nil {
		if ierr.IsNotFound(err) {
			a.Logger.Warnw("processor price has no local plan",
				"event_id", ev.ID,
				"price_id", priceID,
			)
			return "", nil
		}
		return "", err
	}
	return p.ID, nil
}

func (a *effectApplier) transition(ctx context.Context, ev *payload.Event, sub *subscription.Subscription, t subscription.Transition) (*subscription.Subscription, error) {
	t.EventTime = ev.CreatedAt
	next, changed, err := sub.Apply(t)
	if err != nil {
		return nil, err
	}
	if !changed {
		a.Logger.Infow("discarding stale subscription update",
			"event_id", ev.ID,
			"subscription_id", sub.ID,
			"status", sub.Status,
			"proposed_status", t.Status,
		)
		return sub, nil
	}

	if err := a.SubRepo.UpdateState(ctx, next); err != nil {
		return nil, err
	}

	if next.Status != sub.Status {
		a.Logger.Infow("subscription status changed",
			"event_id", ev.ID,
			"subscription_id", next.ID,
			"from", sub.Status,
			"to", next.Status,
		)
		notificationType := types.NotificationSubscriptionChanged
		if next.Status == types.SubscriptionStatusCanceled {
			notificationType = types.NotificationSubscriptionCanceled
		}
		a.notifications = append(a.notifications, &types.BillingNotification{
			Type:           notificationType,
			EventID:        ev.ID,
			UserID:         next.UserID,
			SubscriptionID: next.ID,
			Status:         next.Status,
			OccurredAt:     ev.CreatedAt,
		})
	}
	return next, nil
}

func (a *effectApplier) notifyPayment(ev *payload.Event, t types.NotificationType, entry *ledger.Entry) {
	a.notifications = append(a.notifications, &types.BillingNotification{
		Type:           t,
		EventID:        ev.ID,
		UserID:         entry.UserID,
		SubscriptionID: entry.SubscriptionID,
		LedgerEntryID:  entry.ID,
		Amount:         entry.Amount,
		Currency:       entry.Currency,
		OccurredAt:     ev.CreatedAt,
	})
}

func (a *effectApplier) skipInvoiceCharge(ev *payload.Event, c payload.Charge) {
	a.Logger.Debugw("charge belongs to an invoice, waiting for the invoice event",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"invoice_id", c.InvoiceID,
	)
}

// failedAttemptID identifies an unsuccessful attempt. Attempts that never
// produced a processor charge are identified by the event that reported them.
func failedAttemptID(chargeID string, ev *payload.Event) string {
	if chargeID != "" {
		return chargeID
	}
	return ev.ID
}

func invoicePaymentType(reason payload.BillingReason, attemptCount, amount int64, priorFailure bool) types.PaymentType {
	if attemptCount > 1 || priorFailure {
		return types.PaymentTypeRetry
	}
	switch reason {
	case payload.BillingReasonSubscriptionCycle, payload.BillingReasonSubscriptionThreshold:
		return types.PaymentTypeRecurring
	case payload.BillingReasonSubscriptionUpdate:
		if amount > 0 {
			return types.PaymentTypeUpgrade
		}
		return types.PaymentTypeDowngrade
	default:
		return types.PaymentTypeInitial
	}
}
