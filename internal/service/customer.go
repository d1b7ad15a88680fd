package service

import (
	"context"
	"time"

	"github.com/recruitlink/billing/internal/api/dto"
	"github.com/recruitlink/billing/internal/domain/customer"
	ierr "github.com/recruitlink/billing/internal/errors"
)

// CustomerService provisions processor customers for local users
type CustomerService interface {
	// EnsureCustomer returns the user's billing customer, creating it on the
	// processor and locally on first use. Safe to call repeatedly.
	EnsureCustomer(ctx context.Context, req dto.EnsureCustomerRequest) (*dto.CustomerResponse, error)
}

type customerService struct {
	ServiceParams
}

func NewCustomerService(params ServiceParams) CustomerService {
	return &customerService{
		ServiceParams: params,
	}
}

func (s *customerService) EnsureCustomer(ctx context.Context, req dto.EnsureCustomerRequest) (*dto.CustomerResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.CustomerRepo.GetByUserID(ctx, req.UserID)
	if err == nil {
		return dto.NewCustomerResponse(existing), nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	// the gateway keys customer creation on the user, so a retry returns the same customer
	externalID, err := s.Gateway.CreateCustomer(ctx, req.UserID, req.Email, req.Name)
	if err != nil {
		s.Logger.Errorw("failed to create processor customer",
			"user_id", req.UserID,
			"error", err,
		)
		return nil, err
	}

	c := &customer.Customer{
		UserID:             req.UserID,
		ExternalCustomerID: externalID,
		Email:              req.Email,
		Name:               req.Name,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.CustomerRepo.Create(ctx, c); err != nil {
		if !ierr.IsAlreadyExists(err) {
			return nil, err
		}
		// lost a race with a concurrent request for the same user
		winner, getErr := s.CustomerRepo.GetByUserID(ctx, req.UserID)
		if getErr != nil {
			return nil, getErr
		}
		return dto.NewCustomerResponse(winner), nil
	}

	s.Logger.Infow("provisioned billing customer", "user_id", c.UserID)
	return dto.NewCustomerResponse(c), nil
}
