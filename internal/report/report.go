// Package report summarizes a reconciliation run so an operator can judge
// whether the mapping is good enough to drive price sync.
package report

import (
	"sort"

	"github.com/Veraticus/pricesync/internal/model"
)

// LowCoverageThreshold is the coverage percentage below which the mapping
// is considered unreliable.
const LowCoverageThreshold = 50.0

// Summary is the coverage report of one accepted mapping set.
type Summary struct {
	ByMethod    map[model.Method]int
	entries     []model.MappingEntry
	TotalSource int
	Persisted   int
	Coverage    float64
}

// Summarize computes per-method counts and coverage for the accepted
// entries against the size of the source catalog. Coverage is a percentage
// and is 0 when totalSource is not positive.
func Summarize(entries []model.MappingEntry, totalSource int) Summary {
	s := Summary{
		ByMethod:    make(map[model.Method]int, len(model.Methods)),
		TotalSource: totalSource,
		Persisted:   len(entries),
		entries:     entries,
	}

	for _, e := range entries {
		s.ByMethod[e.Method]++
	}

	if totalSource > 0 {
		s.Coverage = float64(len(entries)) / float64(totalSource) * 100
	}

	return s
}

// Count returns the number of entries produced by method m.
func (s Summary) Count(m model.Method) int {
	return s.ByMethod[m]
}

// Empty reports whether no mapping was accepted.
func (s Summary) Empty() bool {
	return s.Persisted == 0
}

// LowCoverage reports whether the coverage is below LowCoverageThreshold.
func (s Summary) LowCoverage() bool {
	return s.Coverage < LowCoverageThreshold
}

// Top returns up to n entries with the highest scores. Equal scores keep
// their original order.
func (s Summary) Top(n int) []model.MappingEntry {
	if n <= 0 || len(s.entries) == 0 {
		return nil
	}

	sorted := make([]model.MappingEntry, len(s.entries))
	copy(sorted, s.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
