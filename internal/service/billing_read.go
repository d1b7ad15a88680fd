package service

import (
	"context"

	"github.com/recruitlink/billing/internal/api/dto"
	"github.com/recruitlink/billing/internal/domain/plan"
	ierr "github.com/recruitlink/billing/internal/errors"
)

// BillingReadService answers the approval workflow's two billing questions
type BillingReadService interface {
	GetCurrentSubscription(ctx context.Context, userID string) (*dto.SubscriptionResponse, error)
	ListLedgerHistory(ctx context.Context, subscriptionID string) (*dto.ListLedgerEntriesResponse, error)
}

type billingReadService struct {
	ServiceParams
}

func NewBillingReadService(params ServiceParams) BillingReadService {
	return &billingReadService{
		ServiceParams: params,
	}
}

func (s *billingReadService) GetCurrentSubscription(ctx context.Context, userID string) (*dto.SubscriptionResponse, error) {
	if userID == "" {
		return nil, ierr.NewError("user_id is required").
			WithHint("User ID is required").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.GetCurrentByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var p *plan.Plan
	if sub.PlanID != "" {
		p, err = s.PlanRepo.Get(ctx, sub.PlanID)
		if err != nil && !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	return dto.NewSubscriptionResponse(sub, p), nil
}

func (s *billingReadService) ListLedgerHistory(ctx context.Context, subscriptionID string) (*dto.ListLedgerEntriesResponse, error) {
	if subscriptionID == "" {
		return nil, ierr.NewError("subscription_id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}

	if _, err := s.SubRepo.Get(ctx, subscriptionID); err != nil {
		return nil, err
	}

	entries, err := s.LedgerRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return dto.NewListLedgerEntriesResponse(entries), nil
}
