package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/recruitlink/billing/internal/domain/ledger"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/postgres"
	"github.com/recruitlink/billing/internal/types"
)

type ledgerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewLedgerRepository(db *postgres.DB, logger *logger.Logger) ledger.Repository {
	return &ledgerRepository{db: db, logger: logger}
}

const ledgerColumns = `id, subscription_id, user_id, external_payment_id, external_reference_id, amount, currency,
	status, payment_type, failure_code, failure_message, refunded_amount, created_at, confirmed_at, updated_at`

func (r *ledgerRepository) Create(ctx context.Context, e *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (
			id,
			subscription_id,
			user_id,
			external_payment_id,
			external_reference_id,
			amount,
			currency,
			status,
			payment_type,
			failure_code,
			failure_message,
			refunded_amount,
			created_at,
			confirmed_at,
			updated_at
		)
		VALUES (
			:id,
			:subscription_id,
			:user_id,
			:external_payment_id,
			:external_reference_id,
			:amount,
			:currency,
			:status,
			:payment_type,
			:failure_code,
			:failure_message,
			:refunded_amount,
			:created_at,
			:confirmed_at,
			:updated_at
		)
	`

	r.logger.Debugw("creating ledger entry",
		"ledger_entry_id", e.ID,
		"subscription_id", e.SubscriptionID,
		"status", e.Status,
		"payment_type", e.PaymentType,
		"amount", e.Amount,
	)

	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		if !isUniqueViolation(err) {
			r.logger.Errorw("failed to create ledger entry", "ledger_entry_id", e.ID, "error", err)
		}
		return translate(err, "Ledger entry", map[string]any{"subscription_id": e.SubscriptionID})
	}
	return nil
}

func (r *ledgerRepository) Get(ctx context.Context, id string) (*ledger.Entry, error) {
	var e ledger.Entry
	err := r.db.GetQuerier(ctx).GetContext(ctx, &e, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, translate(err, "Ledger entry", map[string]any{"ledger_entry_id": id})
	}
	return &e, nil
}

func (r *ledgerRepository) GetByExternalPaymentID(ctx context.Context, externalPaymentID string) (*ledger.Entry, error) {
	var e ledger.Entry
	err := r.db.GetQuerier(ctx).GetContext(ctx, &e, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE external_payment_id = $1
		FOR UPDATE
	`, externalPaymentID)
	if err != nil {
		return nil, translate(err, "Ledger entry", nil)
	}
	return &e, nil
}

func (r *ledgerRepository) ListByReference(ctx context.Context, externalReferenceID string) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &entries, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE external_reference_id = $1
		ORDER BY created_at, id
		FOR UPDATE
	`, externalReferenceID)
	if err != nil {
		return nil, translate(err, "Ledger entry", nil)
	}
	return entries, nil
}

func (r *ledgerRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &entries, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE subscription_id = $1
		ORDER BY created_at, id
	`, subscriptionID)
	if err != nil {
		return nil, translate(err, "Ledger entry", map[string]any{"subscription_id": subscriptionID})
	}
	return entries, nil
}

func (r *ledgerRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &entries, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id
	`, from, to)
	if err != nil {
		return nil, translate(err, "Ledger entry", nil)
	}
	return entries, nil
}

func (r *ledgerRepository) SaveOutcome(ctx context.Context, e *ledger.Entry) error {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `
		UPDATE ledger_entries
		SET status = $2,
			external_payment_id = $3,
			failure_code = $4,
			failure_message = $5,
			confirmed_at = $6,
			updated_at = $7
		WHERE id = $1 AND status = $8
	`, e.ID, e.Status, e.ExternalPaymentID, e.FailureCode, e.FailureMessage, e.ConfirmedAt, e.UpdatedAt,
		types.LedgerStatusPending)
	if err != nil {
		r.logger.Errorw("failed to save ledger outcome", "ledger_entry_id", e.ID, "error", err)
		return translate(err, "Ledger entry", map[string]any{"ledger_entry_id": e.ID})
	}
	return r.requireOneRow(result, e.ID, "ledger entry is no longer pending")
}

func (r *ledgerRepository) SaveRefund(ctx context.Context, e *ledger.Entry) error {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `
		UPDATE ledger_entries
		SET refunded_amount = $2,
			status = $3,
			updated_at = $4
		WHERE id = $1 AND refunded_amount <= $2 AND status = $5
	`, e.ID, e.RefundedAmount, e.Status, e.UpdatedAt, types.LedgerStatusSucceeded)
	if err != nil {
		r.logger.Errorw("failed to save ledger refund", "ledger_entry_id", e.ID, "error", err)
		return translate(err, "Ledger entry", map[string]any{"ledger_entry_id": e.ID})
	}
	return r.requireOneRow(result, e.ID, "ledger entry refund state changed concurrently")
}

func (r *ledgerRepository) requireOneRow(result sql.Result, id, msg string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return translate(err, "Ledger entry", nil)
	}
	if n != 1 {
		return ierr.NewError(msg).
			WithHint("Payment record was modified concurrently").
			WithReportableDetails(map[string]any{"ledger_entry_id": id}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}
