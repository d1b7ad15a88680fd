package postgres

import (
	"context"
	"database/sql"

	"github.com/recruitlink/billing/internal/domain/subscription"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/postgres"
)

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

const subscriptionColumns = `id, user_id, plan_id, external_subscription_id, external_customer_id, status,
	current_period_start, current_period_end, status_changed_at, created_at, updated_at`

func (r *subscriptionRepository) getOne(ctx context.Context, query string, details map[string]any, args ...interface{}) (*subscription.Subscription, error) {
	var s subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &s, query, args...); err != nil {
		return nil, translate(err, "Subscription", details)
	}
	return &s, nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	return r.getOne(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = $1
	`, map[string]any{"subscription_id": id}, id)
}

func (r *subscriptionRepository) GetForUpdate(ctx context.Context, id string) (*subscription.Subscription, error) {
	return r.getOne(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = $1
		FOR UPDATE
	`, map[string]any{"subscription_id": id}, id)
}

func (r *subscriptionRepository) GetByExternalIDForUpdate(ctx context.Context, externalSubscriptionID string) (*subscription.Subscription, error) {
	return r.getOne(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE external_subscription_id = $1
		FOR UPDATE
	`, nil, externalSubscriptionID)
}

func (r *subscriptionRepository) GetLatestByUserIDForUpdate(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return r.getOne(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, map[string]any{"user_id": userID}, userID)
}

func (r *subscriptionRepository) GetCurrentByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return r.getOne(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY (status = 'canceled'), created_at DESC
		LIMIT 1
	`, map[string]any{"user_id": userID}, userID)
}

func (r *subscriptionRepository) UpdateState(ctx context.Context, s *subscription.Subscription) error {
	query := `
		UPDATE subscriptions
		SET status = :status,
			plan_id = :plan_id,
			external_subscription_id = :external_subscription_id,
			external_customer_id = :external_customer_id,
			current_period_start = :current_period_start,
			current_period_end = :current_period_end,
			status_changed_at = :status_changed_at,
			updated_at = :updated_at
		WHERE id = :id
	`

	r.logger.Debugw("updating subscription state",
		"subscription_id", s.ID,
		"status", s.Status,
		"status_changed_at", s.StatusChangedAt,
	)

	result, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		r.logger.Errorw("failed to update subscription", "subscription_id", s.ID, "error", err)
		return translate(err, "Subscription", map[string]any{"subscription_id": s.ID})
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return translate(sql.ErrNoRows, "Subscription", map[string]any{"subscription_id": s.ID})
	}
	return nil
}
