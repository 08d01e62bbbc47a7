// Package pricesync pushes supplier prices into the shop catalog, translating
// supplier codes through the persisted code mapping.
package pricesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/pricesync/internal/common"
	"github.com/Veraticus/pricesync/internal/model"
)

// Sync errors.
var (
	ErrNoQuotes       = errors.New("no price data from supplier")
	ErrNoValidUpdates = errors.New("all price updates failed validation")
	ErrNoSinks        = errors.New("no price sinks configured")
)

// QuoteSource provides raw supplier prices.
type QuoteSource interface {
	PriceQuotes(ctx context.Context) ([]model.PriceQuote, error)
}

// CodeMapper translates supplier codes into catalog codes.
type CodeMapper interface {
	LookupTargetCodes(ctx context.Context, sourceCodes []string) (map[string]string, error)
}

// PriceWriter stores price updates.
type PriceWriter interface {
	UpdatePrices(ctx context.Context, updates []model.PriceUpdate) (model.SyncStats, error)
}

// Sink is a named destination for price updates.
type Sink struct {
	Writer PriceWriter
	Name   string
}

// Result reports the outcome of one sync.
type Result struct {
	Sinks      map[string]model.SyncStats
	Quotes     int
	Valid      int
	Translated int
}

// Succeeded reports whether at least one row was written to some sink.
func (r *Result) Succeeded() bool {
	for _, s := range r.Sinks {
		if s.Success > 0 {
			return true
		}
	}
	return false
}

// Syncer runs price syncs.
type Syncer struct {
	source QuoteSource
	mapper CodeMapper
	sinks  []Sink
}

// NewSyncer creates a Syncer. A nil mapper writes supplier codes unchanged.
func NewSyncer(source QuoteSource, mapper CodeMapper, sinks ...Sink) (*Syncer, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: quote source", common.ErrMissingConfig)
	}
	if len(sinks) == 0 {
		return nil, ErrNoSinks
	}
	for _, s := range sinks {
		if s.Writer == nil || s.Name == "" {
			return nil, fmt.Errorf("%w: sink %q", common.ErrInvalidConfig, s.Name)
		}
	}
	return &Syncer{source: source, mapper: mapper, sinks: sinks}, nil
}

// Run fetches supplier prices, validates and translates them, and writes
// them to every sink. A failing sink does not stop the others; its error is
// returned joined with any other sink errors.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	quotes, err := s.source.PriceQuotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price quotes: %w", err)
	}
	result := &Result{Quotes: len(quotes), Sinks: make(map[string]model.SyncStats, len(s.sinks))}
	if len(quotes) == 0 {
		return result, ErrNoQuotes
	}

	updates := ValidateUpdates(quotes)
	result.Valid = len(updates)
	if len(updates) == 0 {
		return result, ErrNoValidUpdates
	}

	updates, result.Translated, err = s.translate(ctx, updates)
	if err != nil {
		return result, err
	}

	var errs []error
	for _, sink := range s.sinks {
		stats, err := sink.Writer.UpdatePrices(ctx, updates)
		result.Sinks[sink.Name] = stats
		if err != nil {
			common.LogError(err, "Price sink failed", common.Fields{"sink": sink.Name})
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name, err))
			continue
		}
		common.LogInfo("Price sync completed", common.Fields{
			"sink":    sink.Name,
			"success": stats.Success,
			"failed":  stats.Failed,
		})
	}

	return result, errors.Join(errs...)
}

// translate rewrites supplier codes into catalog codes. Codes without a
// mapping are kept as they are.
func (s *Syncer) translate(ctx context.Context, updates []model.PriceUpdate) ([]model.PriceUpdate, int, error) {
	if s.mapper == nil {
		return updates, 0, nil
	}

	codes := make([]string, len(updates))
	for i, u := range updates {
		codes[i] = u.Code
	}

	mapped, err := s.mapper.LookupTargetCodes(ctx, codes)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to look up code mapping: %w", err)
	}

	out := make([]model.PriceUpdate, len(updates))
	translated := 0
	for i, u := range updates {
		if target, ok := mapped[u.Code]; ok {
			u.Code = target
			translated++
		}
		out[i] = u
	}

	slog.Info("Translated supplier codes", "mapped", translated, "unmapped", len(updates)-translated)
	return out, translated, nil
}
