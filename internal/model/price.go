package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a textual amount cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// PriceQuote is a supplier price as received, before validation. Amounts
// are kept as text because suppliers mix decimal separators.
type PriceQuote struct {
	Code          string
	Price         string
	Discount      string
	DiscountPrice string
}

// PriceUpdate is a normalized price record ready to be written downstream.
// Discount and DiscountPrice are optional.
type PriceUpdate struct {
	Discount      *decimal.Decimal
	DiscountPrice *decimal.Decimal
	Code          string
	Price         decimal.Decimal
}

// SyncStats counts per-row outcomes of a price write.
type SyncStats struct {
	Success int
	Failed  int
}

// Add accumulates other into s.
func (s *SyncStats) Add(other SyncStats) {
	s.Success += other.Success
	s.Failed += other.Failed
}

// Total returns the number of rows attempted.
func (s SyncStats) Total() int {
	return s.Success + s.Failed
}

var amountSpaces = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", ",", ".")

// ParseAmount parses a decimal amount that may use a comma as the decimal
// separator and spaces as thousands separators.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := amountSpaces.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}
