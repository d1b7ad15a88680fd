package dto

import (
	"time"

	"github.com/recruitlink/billing/internal/domain/plan"
	"github.com/recruitlink/billing/internal/domain/subscription"
	"github.com/recruitlink/billing/internal/types"
)

// PlanSummary is the part of a plan shown next to a subscription
type PlanSummary struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Price           Money                 `json:"price"`
	BillingInterval types.BillingInterval `json:"billing_interval"`
	Features        []string              `json:"features"`
}

// SubscriptionResponse is the approval workflow's view of a subscription.
// Processor identifiers are intentionally absent.
type SubscriptionResponse struct {
	ID                 string                   `json:"id"`
	UserID             string                   `json:"user_id"`
	Status             types.SubscriptionStatus `json:"status"`
	Plan               *PlanSummary             `json:"plan,omitempty"`
	CurrentPeriodStart *time.Time               `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time               `json:"current_period_end,omitempty"`
	StatusChangedAt    *time.Time               `json:"status_changed_at,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
}

func NewSubscriptionResponse(sub *subscription.Subscription, p *plan.Plan) *SubscriptionResponse {
	resp := &SubscriptionResponse{
		ID:                 sub.ID,
		UserID:             sub.UserID,
		Status:             sub.Status,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		StatusChangedAt:    sub.StatusChangedAt,
		CreatedAt:          sub.CreatedAt,
	}
	if p != nil {
		resp.Plan = &PlanSummary{
			ID:              p.ID,
			Name:            p.Name,
			Price:           NewMoney(p.Amount, p.Currency),
			BillingInterval: p.BillingInterval,
			Features:        p.Features,
		}
	}
	return resp
}
