// Package model defines the core domain models used throughout the application.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidDescriptor is returned when a catalog provider hands back a product
// that cannot take part in reconciliation.
var ErrInvalidDescriptor = errors.New("invalid product descriptor")

// ProductDescriptor is one product of either catalog as seen by the matcher.
type ProductDescriptor struct {
	Price       *decimal.Decimal
	Identifier  string
	DisplayName string
}

// Validate checks the fields every provider must fill in.
func (p ProductDescriptor) Validate() error {
	if strings.TrimSpace(p.Identifier) == "" {
		return fmt.Errorf("%w: missing identifier", ErrInvalidDescriptor)
	}
	if p.Price != nil && p.Price.IsNegative() {
		return fmt.Errorf("%w: negative price for %s", ErrInvalidDescriptor, p.Identifier)
	}
	return nil
}

// HasName reports whether the descriptor carries a usable display name.
func (p ProductDescriptor) HasName() bool {
	return strings.TrimSpace(p.DisplayName) != ""
}
