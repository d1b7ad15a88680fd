package dto

import (
	"time"

	"github.com/recruitlink/billing/internal/domain/customer"
	"github.com/recruitlink/billing/internal/validator"
)

type EnsureCustomerRequest struct {
	UserID string `json:"user_id" validate:"required,max=255"`
	Email  string `json:"email" validate:"omitempty,email"`
	Name   string `json:"name" validate:"omitempty,max=255"`
}

func (r *EnsureCustomerRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// CustomerResponse never carries the processor customer id
type CustomerResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewCustomerResponse(c *customer.Customer) *CustomerResponse {
	return &CustomerResponse{
		UserID:    c.UserID,
		Email:     c.Email,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
	}
}
