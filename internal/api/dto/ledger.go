package dto

import (
	"time"

	"github.com/recruitlink/billing/internal/domain/ledger"
	"github.com/recruitlink/billing/internal/types"
	"github.com/samber/lo"
)

// LedgerEntryResponse omits processor payment and reference ids
type LedgerEntryResponse struct {
	ID             string             `json:"id"`
	SubscriptionID string             `json:"subscription_id"`
	Amount         Money              `json:"amount"`
	RefundedAmount Money              `json:"refunded_amount"`
	Status         types.LedgerStatus `json:"status"`
	PaymentType    types.PaymentType  `json:"payment_type"`
	FailureCode    string             `json:"failure_code,omitempty"`
	FailureMessage string             `json:"failure_message,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	ConfirmedAt    *time.Time         `json:"confirmed_at,omitempty"`
}

type ListLedgerEntriesResponse struct {
	Items []*LedgerEntryResponse `json:"items"`
	Total int                    `json:"total"`
}

func NewLedgerEntryResponse(e *ledger.Entry) *LedgerEntryResponse {
	return &LedgerEntryResponse{
		ID:             e.ID,
		SubscriptionID: e.SubscriptionID,
		Amount:         NewMoney(e.Amount, e.Currency),
		RefundedAmount: NewMoney(e.RefundedAmount, e.Currency),
		Status:         e.Status,
		PaymentType:    e.PaymentType,
		FailureCode:    lo.FromPtr(e.FailureCode),
		FailureMessage: lo.FromPtr(e.FailureMessage),
		CreatedAt:      e.CreatedAt,
		ConfirmedAt:    e.ConfirmedAt,
	}
}

func NewListLedgerEntriesResponse(entries []*ledger.Entry) *ListLedgerEntriesResponse {
	return &ListLedgerEntriesResponse{
		Items: lo.Map(entries, func(e *ledger.Entry, _ int) *LedgerEntryResponse {
			return NewLedgerEntryResponse(e)
		}),
		Total: len(entries),
	}
}
