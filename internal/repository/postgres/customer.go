package postgres

import (
	"context"

	"github.com/recruitlink/billing/internal/domain/customer"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/internal/postgres"
)

type customerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewCustomerRepository(db *postgres.DB, logger *logger.Logger) customer.Repository {
	return &customerRepository{db: db, logger: logger}
}

func (r *customerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `
		INSERT INTO billing_customers (user_id, external_customer_id, email, name, created_at)
		VALUES (:user_id, :external_customer_id, :email, :name, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return translate(err, "Customer", map[string]any{"user_id": c.UserID})
	}
	return nil
}

func (r *customerRepository) GetByUserID(ctx context.Context, userID string) (*customer.Customer, error) {
	var c customer.Customer
	err := r.db.GetQuerier(ctx).GetContext(ctx, &c, `
		SELECT user_id, external_customer_id, email, name, created_at
		FROM billing_customers
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, translate(err, "Customer", map[string]any{"user_id": userID})
	}
	return &c, nil
}

func (r *customerRepository) GetByExternalID(ctx context.Context, externalCustomerID string) (*customer.Customer, error) {
	var c customer.Customer
	err := r.db.GetQuerier(ctx).GetContext(ctx, &c, `
		SELECT user_id, external_customer_id, email, name, created_at
		FROM billing_customers
		WHERE external_customer_id = $1
	`, externalCustomerID)
	if err != nil {
		return nil, translate(err, "Customer", nil)
	}
	return &c, nil
}
