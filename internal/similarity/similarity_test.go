package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pricesync/internal/model"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "abc", b: "abc", want: 1.0},
		{name: "both empty", a: "", b: "", want: 1.0},
		{name: "one empty", a: "abc", b: "", want: 0.0},
		{name: "disjoint", a: "ABC123", b: "XYZ999", want: 0.0},
		{name: "transposition", a: "abcd", b: "abdc", want: 0.75},
		{name: "counts runes not bytes", a: "ёжик", b: "ёжик1", want: 8.0 / 9.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestScorer_ScoreCode(t *testing.T) {
	scorer := NewScorer(0.6)

	tests := []struct {
		name       string
		a, b       string
		wantScore  float64
		wantMethod model.Method
	}{
		{name: "exact", a: "551666", b: "551666", wantScore: 1.0, wantMethod: model.MethodExact},
		{name: "exact short code", a: "7", b: "7", wantScore: 1.0, wantMethod: model.MethodExact},
		{name: "suffix", a: "5620013", b: "9990013", wantScore: 0.8, wantMethod: model.MethodSuffix},
		{name: "prefix", a: "5620013", b: "562999", wantScore: 0.7, wantMethod: model.MethodPrefix},
		{name: "suffix outranks equal ratio", a: "A1234", b: "B1234", wantScore: 0.8, wantMethod: model.MethodSuffix},
		{name: "ratio beats suffix when strictly higher", a: "12345678", b: "02345678", wantScore: 0.875, wantMethod: model.MethodSimilarity},
		{name: "ratio beats prefix", a: "1234567", b: "1234568", wantScore: 12.0 / 14.0, wantMethod: model.MethodSimilarity},
		{name: "ratio only", a: "ab12cd", b: "xb12cy", wantScore: 8.0 / 12.0, wantMethod: model.MethodSimilarity},
		{name: "nothing applies", a: "ABC123", b: "XYZ999", wantScore: 0, wantMethod: model.MethodNone},
		{name: "suffix needs four characters", a: "013", b: "9013", wantScore: 6.0 / 7.0, wantMethod: model.MethodSimilarity},
		{name: "three shared trailing digits are not a suffix", a: "562013", b: "9990013", wantScore: 0, wantMethod: model.MethodNone},
		{name: "suffix on second target", a: "5620013", b: "8880013", wantScore: 0.8, wantMethod: model.MethodSuffix},
		{name: "suffix on cyrillic runes", a: "АБВГ1234", b: "ДЕЖЗ1234", wantScore: 0.8, wantMethod: model.MethodSuffix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, method := scorer.ScoreCode(tt.a, tt.b)
			assert.InDelta(t, tt.wantScore, score, 1e-9)
			assert.Equal(t, tt.wantMethod, method)
		})
	}
}

func TestScorer_ScoreCodeRespectsMinSimilarity(t *testing.T) {
	score, method := NewScorer(0.7).ScoreCode("ab12cd", "xb12cy")
	assert.Zero(t, score)
	assert.Equal(t, model.MethodNone, method)
}

func TestNewScorer_Default(t *testing.T) {
	assert.InDelta(t, DefaultMinSimilarity, NewScorer(0).MinSimilarity(), 1e-9)
	assert.InDelta(t, 0.9, NewScorer(0.9).MinSimilarity(), 1e-9)
}

var codeSamples = []string{
	"", "1", "12", "123", "1234", "5620013", "9990013", "8880013", "551666",
	"ABC123", "XYZ999", "A1234", "B1234", "12345678", "02345678", "ab12cd", "xb12cy",
	"АБВГ1234", "ДЕЖЗ1234", "562999",
}

func TestScorer_ScoreCodeProperties(t *testing.T) {
	scorer := NewScorer(DefaultMinSimilarity)

	for _, a := range codeSamples {
		score, method := scorer.ScoreCode(a, a)
		assert.InDelta(t, 1.0, score, 1e-9, "self score for %q", a)
		assert.Equal(t, model.MethodExact, method)

		for _, b := range codeSamples {
			ab, _ := scorer.ScoreCode(a, b)
			ba, _ := scorer.ScoreCode(b, a)
			assert.InDelta(t, ab, ba, 1e-9, "symmetry for %q/%q", a, b)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)

			ra, rb := []rune(a), []rune(b)
			if a != b && len(ra) >= SuffixWidth && len(rb) >= SuffixWidth &&
				string(ra[len(ra)-SuffixWidth:]) == string(rb[len(rb)-SuffixWidth:]) {
				assert.GreaterOrEqual(t, ab, SuffixScore, "suffix floor for %q/%q", a, b)
			}
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "punctuation and case", in: "Профнастил С21 0.5мм Полиэстер", want: "профнастил с21 0 5мм полиэстер"},
		{name: "stop words removed", in: "Товар: Лист, оцинкованный!", want: "лист оцинкованный"},
		{name: "whitespace collapsed", in: "  Саморез \t кровельный  ", want: "саморез кровельный"},
		{name: "underscore kept", in: "code_1c", want: "code_1c"},
		{name: "only stop words", in: "Изделие Деталь", want: ""},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestScoreName(t *testing.T) {
	t.Run("identical names score one", func(t *testing.T) {
		for _, name := range []string{"Профнастил С21", "Metal tile Monterrey", "x"} {
			assert.InDelta(t, 1.0, ScoreName(name, name), 1e-9, name)
		}
	})

	t.Run("empty side scores zero", func(t *testing.T) {
		assert.Zero(t, ScoreName("", "Профнастил"))
		assert.Zero(t, ScoreName("Профнастил", ""))
		assert.Zero(t, ScoreName("Товар", "Товар"))
	})

	t.Run("reordered name with different unit spelling", func(t *testing.T) {
		score := ScoreName("Профнастил С21 0.5мм Полиэстер", "профнастил с21 полиэстер 0,5 мм")
		assert.GreaterOrEqual(t, score, 0.7)
		assert.LessOrEqual(t, score, 1.0)
	})

	t.Run("unrelated names score low", func(t *testing.T) {
		assert.Less(t, ScoreName("Саморез кровельный", "Водосточная труба"), 0.5)
	})

	t.Run("word overlap is order insensitive", func(t *testing.T) {
		require.InDelta(t, ScoreName("лист плоский", "плоский лист"), ScoreName("плоский лист", "лист плоский"), 1e-9)
	})
}
