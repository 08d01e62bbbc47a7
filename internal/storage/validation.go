// Package storage provides the data persistence layer: the target product
// catalog, the code mapping table and the mapping run history.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/pricesync/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")
	ErrInvalidThreshold  = errors.New("threshold must be within [0, 1]")
	ErrInvalidMapping    = errors.New("invalid mapping entry")
	ErrInvalidRun        = errors.New("invalid mapping run")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateIdentifier guards table and column names that are spliced into SQL.
func validateIdentifier(name, paramName string) error {
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%w: %s=%q", ErrInvalidIdentifier, paramName, name)
	}
	return nil
}

func validateCatalog(c CatalogOptions) error {
	if err := validateIdentifier(c.ProductsTable, "products table"); err != nil {
		return err
	}
	if err := validateIdentifier(c.CodeField, "code field"); err != nil {
		return err
	}
	if c.NameField != "" {
		if err := validateIdentifier(c.NameField, "name field"); err != nil {
			return err
		}
	}
	if c.PriceField != "" {
		if err := validateIdentifier(c.PriceField, "price field"); err != nil {
			return err
		}
	}
	return nil
}

func validateThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	return nil
}

// validateMappingEntry validates a single mapping entry.
func validateMappingEntry(e model.MappingEntry) error {
	if strings.TrimSpace(e.SourceCode) == "" {
		return fmt.Errorf("%w: missing source code", ErrInvalidMapping)
	}
	if strings.TrimSpace(e.TargetCode) == "" {
		return fmt.Errorf("%w: missing target code for %s", ErrInvalidMapping, e.SourceCode)
	}
	if !e.Method.IsValid() {
		return fmt.Errorf("%w: unknown method %q for %s", ErrInvalidMapping, e.Method, e.SourceCode)
	}
	if e.Score < 0 || e.Score > 1 {
		return fmt.Errorf("%w: score %v out of range for %s", ErrInvalidMapping, e.Score, e.SourceCode)
	}
	return nil
}

// validateRun validates a mapping run record.
func validateRun(run *model.MappingRun) error {
	if run == nil {
		return fmt.Errorf("%w: nil run", ErrInvalidRun)
	}
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRun)
	}
	if run.StartedAt.IsZero() {
		return fmt.Errorf("%w: missing start time", ErrInvalidRun)
	}
	return nil
}
