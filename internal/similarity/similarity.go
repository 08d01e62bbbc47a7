// Package similarity scores how likely two product codes or product names
// refer to the same product. All scores are bounded to [0, 1].
package similarity

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Veraticus/pricesync/internal/model"
)

// Fixed tier scores and windows for code matching.
const (
	ExactScore  = 1.0
	SuffixScore = 0.8
	PrefixScore = 0.7

	SuffixWidth = 4
	PrefixWidth = 3

	// DefaultMinSimilarity is the lowest ratio the generic tier may report.
	DefaultMinSimilarity = 0.6
)

// Name score blend.
const (
	nameRatioWeight = 0.7
	nameWordWeight  = 0.3
)

var punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// stopWords are filler words ("item", "product", "material", "part") that
// carry no identity in supplier price lists.
var stopWords = map[string]bool{
	"товар":    true,
	"изделие":  true,
	"продукт":  true,
	"материал": true,
	"деталь":   true,
}

// Ratio returns 2*LCS/(len(a)+len(b)) measured in runes, where LCS is the
// longest common subsequence. Two empty strings are identical.
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1.0
	}
	return 2 * float64(edlib.LCS(a, b)) / float64(total)
}

// Scorer applies the tiered code heuristic and the blended name heuristic.
type Scorer struct {
	minSimilarity float64
}

// NewScorer creates a scorer. A non-positive minSimilarity selects DefaultMinSimilarity.
func NewScorer(minSimilarity float64) *Scorer {
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	return &Scorer{minSimilarity: minSimilarity}
}

// MinSimilarity returns the floor applied to the generic ratio tier.
func (s *Scorer) MinSimilarity() float64 {
	return s.minSimilarity
}

// ScoreCode scores two product codes and reports which tier produced the score.
// An exact match short-circuits; otherwise the best of suffix, prefix and
// generic ratio wins, with the ratio only winning when strictly higher.
// It returns (0, MethodNone) when no tier applies.
func (s *Scorer) ScoreCode(a, b string) (float64, model.Method) {
	if a == b {
		return ExactScore, model.MethodExact
	}

	best, method := 0.0, model.MethodNone

	ra, rb := []rune(a), []rune(b)
	if len(ra) >= SuffixWidth && len(rb) >= SuffixWidth &&
		string(ra[len(ra)-SuffixWidth:]) == string(rb[len(rb)-SuffixWidth:]) {
		best, method = SuffixScore, model.MethodSuffix
	}

	if len(ra) >= PrefixWidth && len(rb) >= PrefixWidth &&
		string(ra[:PrefixWidth]) == string(rb[:PrefixWidth]) && PrefixScore > best {
		best, method = PrefixScore, model.MethodPrefix
	}

	if ratio := Ratio(a, b); ratio > best && ratio >= s.minSimilarity {
		best, method = ratio, model.MethodSimilarity
	}

	return best, method
}

// NormalizeName lowercases a name, turns punctuation into whitespace,
// collapses runs of whitespace and drops stop words.
func NormalizeName(name string) string {
	return strings.Join(nameTokens(name), " ")
}

func nameTokens(name string) []string {
	if name == "" {
		return nil
	}
	lowered := cases.Lower(language.Und).String(name)
	cleaned := punctuationRegex.ReplaceAllString(lowered, " ")

	words := strings.Fields(cleaned)
	tokens := words[:0]
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// ScoreName blends the character ratio of two normalized names with the share
// of words they have in common. Either name normalizing to nothing scores 0.
func ScoreName(a, b string) float64 {
	tokensA, tokensB := nameTokens(a), nameTokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	base := Ratio(strings.Join(tokensA, " "), strings.Join(tokensB, " "))

	setA := toSet(tokensA)
	setB := toSet(tokensB)
	common := 0
	for w := range setA {
		if setB[w] {
			common++
		}
	}
	wordBonus := float64(common) / float64(max(len(setA), len(setB)))

	return min(nameRatioWeight*base+nameWordWeight*wordBonus, 1.0)
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
