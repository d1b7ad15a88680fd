package customer

import "time"

// Customer maps a local user to their processor customer
type Customer struct {
	UserID             string    `db:"user_id" json:"user_id"`
	ExternalCustomerID string    `db:"external_customer_id" json:"-"`
	Email              string    `db:"email" json:"email"`
	Name               string    `db:"name" json:"name"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
