package dto

import (
	"strings"

	"github.com/recruitlink/billing/internal/types"
)

// Money is an amount in integer minor units. Display is for humans only and is never parsed.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

func NewMoney(amount int64, currency string) Money {
	formatted := types.FormatMinorUnits(amount, currency)
	display := formatted + " " + strings.ToUpper(currency)
	if symbol := types.GetCurrencySymbol(currency); symbol != currency {
		display = symbol + formatted
	}
	return Money{
		Amount:   amount,
		Currency: currency,
		Display:  display,
	}
}
