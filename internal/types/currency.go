package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CURRENCY_CODES_SYMBOLS maps lower-case ISO currency codes to their symbols
var CURRENCY_CODES_SYMBOLS = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"cad": "CA$",
	"aud": "AU$",
	"jpy": "¥",
}

// zeroDecimalCurrencies are billed in whole units by the processor
var zeroDecimalCurrencies = map[string]struct{}{
	"jpy": {},
	"krw": {},
	"vnd": {},
}

// GetCurrencySymbol returns the symbol for a given currency code
// if the code is not found, it returns the code itself
func GetCurrencySymbol(code string) string {
	if symbol, ok := CURRENCY_CODES_SYMBOLS[strings.ToLower(code)]; ok {
		return symbol
	}
	return code
}

// FormatMinorUnits renders an integer minor-unit amount for display only, e.g. 2999 usd -> "29.99".
// It is never parsed back into an amount.
func FormatMinorUnits(amount int64, currency string) string {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(currency)]; ok {
		return decimal.NewFromInt(amount).String()
	}
	return decimal.New(amount, -2).StringFixed(2)
}
