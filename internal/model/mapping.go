package model

import (
	"time"
)

// Method names the heuristic tier that produced a match score.
type Method string

// Match methods, in the order the code scorer tries them.
const (
	MethodNone           Method = ""
	MethodExact          Method = "exact"
	MethodSuffix         Method = "suffix"
	MethodPrefix         Method = "prefix"
	MethodSimilarity     Method = "similarity"
	MethodNameSimilarity Method = "name_similarity"
)

// Methods lists every persisted method tag in report order.
var Methods = []Method{
	MethodExact,
	MethodSuffix,
	MethodPrefix,
	MethodSimilarity,
	MethodNameSimilarity,
}

// IsValid reports whether m is a known, non-empty method tag.
func (m Method) IsValid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// MatchCandidate is the best target found for a single source entry.
type MatchCandidate struct {
	SourceIdentifier string
	TargetIdentifier string
	SourceName       string
	TargetName       string
	Method           Method
	Score            float64
}

// MappingEntry is one row of the persisted cross-reference table.
// SourceCode is unique within the table; TargetCode is not.
type MappingEntry struct {
	CreatedAt  time.Time
	SourceCode string
	TargetCode string
	Method     Method
	SourceName string
	TargetName string
	Score      float64
}

// NewMappingEntry converts a match candidate into a persistable entry.
func NewMappingEntry(c MatchCandidate, createdAt time.Time) MappingEntry {
	return MappingEntry{
		SourceCode: c.SourceIdentifier,
		TargetCode: c.TargetIdentifier,
		Score:      c.Score,
		Method:     c.Method,
		SourceName: c.SourceName,
		TargetName: c.TargetName,
		CreatedAt:  createdAt,
	}
}

// Strategy selects which descriptor field drives reconciliation.
type Strategy string

// Reconciliation strategies.
const (
	StrategyCode Strategy = "code"
	StrategyName Strategy = "name"
)

// MappingRun records the outcome of one reconciliation pass.
type MappingRun struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	ID          string
	Strategy    Strategy
	SourceTotal int
	TargetTotal int
	Candidates  int
	Persisted   int
	Coverage    float64
}
