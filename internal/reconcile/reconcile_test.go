package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pricesync/internal/common"
	"github.com/Veraticus/pricesync/internal/matcher"
	"github.com/Veraticus/pricesync/internal/model"
)

type fakeSource struct {
	err       error
	items     []model.ProductDescriptor
	lastLimit int
}

func (f *fakeSource) ListSourceDescriptors(_ context.Context, limit int) ([]model.ProductDescriptor, error) {
	f.lastLimit = limit
	return f.items, f.err
}

type fakeTarget struct {
	err   error
	items []model.ProductDescriptor
}

func (f *fakeTarget) ListTargetDescriptors(context.Context) ([]model.ProductDescriptor, error) {
	return f.items, f.err
}

type fakeStore struct {
	replaceErr error
	runErr     error
	entries    []model.MappingEntry
	runs       []model.MappingRun
	replaced   bool
	threshold  float64
}

func (f *fakeStore) ReplaceMappings(_ context.Context, entries []model.MappingEntry, threshold float64) (int, error) {
	f.replaced = true
	if f.replaceErr != nil {
		return 0, f.replaceErr
	}
	f.threshold = threshold
	f.entries = nil
	for _, e := range entries {
		if e.Score >= threshold {
			f.entries = append(f.entries, e)
		}
	}
	return len(f.entries), nil
}

func (f *fakeStore) SaveRun(_ context.Context, run *model.MappingRun) error {
	if f.runErr != nil {
		return f.runErr
	}
	f.runs = append(f.runs, *run)
	return nil
}

func codes(cs ...string) []model.ProductDescriptor {
	out := make([]model.ProductDescriptor, len(cs))
	for i, c := range cs {
		out[i] = model.ProductDescriptor{Identifier: c}
	}
	return out
}

func newReconciler(t *testing.T, source SourceCatalog, target TargetCatalog, store MappingStore, cfg Config) *Reconciler {
	t.Helper()
	m, err := matcher.New(matcher.Config{})
	require.NoError(t, err)
	if cfg.Now == nil {
		fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		cfg.Now = func() time.Time { return fixed }
	}
	r, err := New(source, target, store, m, cfg)
	require.NoError(t, err)
	return r
}

func TestNew_Validation(t *testing.T) {
	m, err := matcher.New(matcher.Config{})
	require.NoError(t, err)

	_, err = New(nil, &fakeTarget{}, &fakeStore{}, m, Config{})
	require.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = New(&fakeSource{}, &fakeTarget{}, &fakeStore{}, m, Config{Strategy: "sku"})
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = New(&fakeSource{}, &fakeTarget{}, &fakeStore{}, m, Config{AcceptanceThreshold: 1.2})
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = New(&fakeSource{}, &fakeTarget{}, &fakeStore{}, m, Config{SourceLimit: -1})
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestRun_SuffixAndExact(t *testing.T) {
	source := &fakeSource{items: codes("5620013", "551666")}
	target := &fakeTarget{items: codes("9990013", "8880013", "551666")}
	store := &fakeStore{}

	r := newReconciler(t, source, target, store, Config{SourceLimit: 1000})
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1000, source.lastLimit)
	assert.InDelta(t, DefaultAcceptanceThreshold, store.threshold, 1e-9)

	require.Len(t, store.entries, 2)
	assert.Equal(t, "9990013", store.entries[0].TargetCode)
	assert.Equal(t, model.MethodSuffix, store.entries[0].Method)
	assert.Equal(t, "551666", store.entries[1].TargetCode)
	assert.Equal(t, model.MethodExact, store.entries[1].Method)
	assert.True(t, store.entries[0].CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	assert.Len(t, result.Candidates, 2)
	assert.InDelta(t, 100.0, result.Summary.Coverage, 1e-9)
	assert.Equal(t, 1, result.Summary.Count(model.MethodExact))
	assert.Equal(t, 1, result.Summary.Count(model.MethodSuffix))

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	_, err = uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Run.ID, run.ID)
	assert.Equal(t, model.StrategyCode, run.Strategy)
	assert.Equal(t, 2, run.SourceTotal)
	assert.Equal(t, 3, run.TargetTotal)
	assert.Equal(t, 2, run.Candidates)
	assert.Equal(t, 2, run.Persisted)
}

func TestRun_CandidatesBelowAcceptanceAreNotPersisted(t *testing.T) {
	source := &fakeSource{items: codes("529051", "551666")}
	target := &fakeTarget{items: codes("529777", "551666")}
	store := &fakeStore{}

	result, err := newReconciler(t, source, target, store, Config{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, model.MethodPrefix, result.Candidates[0].Method)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "551666", store.entries[0].SourceCode)
	assert.Equal(t, 1, result.Summary.Persisted)
	assert.InDelta(t, 50.0, result.Summary.Coverage, 1e-9)
}

func TestRun_NoMatches(t *testing.T) {
	store := &fakeStore{}
	result, err := newReconciler(t,
		&fakeSource{items: codes("ABC123")},
		&fakeTarget{items: codes("XYZ999")},
		store, Config{}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Candidates)
	assert.True(t, store.replaced)
	assert.Empty(t, store.entries)
	assert.Zero(t, result.Summary.Coverage)
	assert.True(t, result.Summary.LowCoverage())
}

func TestRun_EmptyTargetCatalog(t *testing.T) {
	store := &fakeStore{}
	result, err := newReconciler(t,
		&fakeSource{items: codes("5620013", "551666")},
		&fakeTarget{},
		store, Config{}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Candidates)
	assert.Zero(t, result.Summary.Coverage)
	assert.Equal(t, 0, result.Run.TargetTotal)
}

func TestRun_NameStrategy(t *testing.T) {
	source := &fakeSource{items: []model.ProductDescriptor{
		{Identifier: "GL-1", DisplayName: "Профнастил С21 0.5мм Полиэстер"},
	}}
	target := &fakeTarget{items: []model.ProductDescriptor{
		{Identifier: "OC-7", DisplayName: "Саморез кровельный"},
		{Identifier: "OC-9", DisplayName: "профнастил с21 полиэстер 0,5 мм"},
	}}
	store := &fakeStore{}

	result, err := newReconciler(t, source, target, store, Config{Strategy: model.StrategyName, AcceptanceThreshold: 0.7}).
		Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "OC-9", result.Candidates[0].TargetIdentifier)
	assert.Equal(t, model.MethodNameSimilarity, result.Candidates[0].Method)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "Профнастил С21 0.5мм Полиэстер", store.entries[0].SourceName)
	assert.Equal(t, "профнастил с21 полиэстер 0,5 мм", store.entries[0].TargetName)
}

func TestRun_Failures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		source      *fakeSource
		target      *fakeTarget
		store       *fakeStore
		wantErr     error
		wantReplace bool
	}{
		{
			name:    "source error",
			source:  &fakeSource{err: boom},
			target:  &fakeTarget{items: codes("1")},
			store:   &fakeStore{},
			wantErr: ErrSourceUnavailable,
		},
		{
			name:    "empty source",
			source:  &fakeSource{},
			target:  &fakeTarget{items: codes("1")},
			store:   &fakeStore{},
			wantErr: ErrSourceUnavailable,
		},
		{
			name:    "target error",
			source:  &fakeSource{items: codes("1")},
			target:  &fakeTarget{err: boom},
			store:   &fakeStore{},
			wantErr: ErrTargetUnavailable,
		},
		{
			name:        "persistence error",
			source:      &fakeSource{items: codes("1")},
			target:      &fakeTarget{items: codes("1")},
			store:       &fakeStore{replaceErr: boom},
			wantErr:     ErrPersistence,
			wantReplace: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newReconciler(t, tt.source, tt.target, tt.store, Config{}).Run(context.Background())
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantReplace, tt.store.replaced)
			assert.Empty(t, tt.store.runs)
		})
	}
}

func TestRun_RunHistoryFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{runErr: errors.New("disk full")}
	result, err := newReconciler(t,
		&fakeSource{items: codes("551666")},
		&fakeTarget{items: codes("551666")},
		store, Config{}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.entries, 1)
	assert.Equal(t, 1, result.Run.Persisted)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	_, err := newReconciler(t,
		&fakeSource{items: codes("1", "2")},
		&fakeTarget{items: codes("1")},
		store, Config{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, store.replaced)
}
