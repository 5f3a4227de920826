package ledger

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdeck/faqbot/internal/knowledge"
	"github.com/askdeck/faqbot/internal/testutil"
)

const testDim = 8

// memStore is an in-memory Store with real cosine scoring, keyed by
// record id like the postgres upsert.
type memStore struct {
	records   map[string]knowledge.Record
	queryErr  error
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]knowledge.Record)}
}

func (s *memStore) Upsert(_ context.Context, rec knowledge.Record) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *memStore) Query(_ context.Context, embedding []float32, opts ...knowledge.QueryOption) (knowledge.MatchSet, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var matches knowledge.MatchSet
	for _, rec := range s.records {
		matches = append(matches, knowledge.Match{
			Record:     rec,
			Similarity: cosine(embedding, rec.Embedding),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches, nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func axisVector(axis int) []float32 {
	vec := make([]float32, testDim)
	vec[axis] = 1
	return vec
}

// testClock returns a clock that advances one minute per call.
func testClock() func() time.Time {
	t := time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func newTestLedger(t *testing.T, emb *testutil.MockEmbedder, store *memStore) *Ledger {
	t.Helper()
	embedder, err := newEmbedAdapter(emb)
	require.NoError(t, err)
	l, err := New(Config{
		Embedder:  embedder,
		Store:     store,
		Threshold: 0.8,
		TopK:      3,
		Logger:    testutil.DiscardLogger(),
		Now:       testClock(),
	})
	require.NoError(t, err)
	return l
}

// embedAdapter exposes the mock through the package's Embedder interface.
type embedAdapter struct {
	mock *testutil.MockEmbedder
}

func newEmbedAdapter(mock *testutil.MockEmbedder) (*embedAdapter, error) {
	return &embedAdapter{mock: mock}, nil
}

func (a *embedAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	return a.mock.EmbedText(ctx, text)
}

func TestQueryID_Normalization(t *testing.T) {
	t.Parallel()

	base := QueryID("when is the deadline")

	same := []string{
		"When is the deadline",
		"  when is the deadline  ",
		"when   is \tthe\ndeadline",
		"WHEN IS THE DEADLINE",
	}
	for _, q := range same {
		assert.Equal(t, base, QueryID(q), "query %q", q)
	}

	assert.NotEqual(t, base, QueryID("when is the deadline?"))
	assert.NotEqual(t, base, QueryID("when is my deadline"))
	assert.Len(t, base, 64)
}

func TestRecord_StoresUnderDerivedID(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	emb := testutil.NewMockEmbedder(testDim)
	l := newTestLedger(t, emb, store)

	require.NoError(t, l.Record(context.Background(), "When is the deadline?", "May 5th"))

	rec, ok := store.records[QueryID("When is the deadline?")]
	require.True(t, ok)
	assert.Equal(t, "May 5th", rec.Metadata[MetaCorrectedAnswer])
	assert.Equal(t, "When is the deadline?", rec.Metadata[MetaOriginalQuery])
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestRecord_SupersedesPriorCorrection(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	emb := testutil.NewMockEmbedder(testDim)
	l := newTestLedger(t, emb, store)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "When is the deadline?", "May 5th"))
	require.NoError(t, l.Record(ctx, "when is the deadline?", "May 12th"))

	// One slot per query identity, holding the newest answer
	assert.Len(t, store.records, 1)

	answer, found, err := l.Lookup(ctx, "When is the deadline?")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "May 12th", answer)
}

func TestRecord_Validation(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t, testutil.NewMockEmbedder(testDim), newMemStore())
	ctx := context.Background()

	assert.Error(t, l.Record(ctx, "", "answer"))
	assert.Error(t, l.Record(ctx, "   ", "answer"))
	assert.Error(t, l.Record(ctx, "question", ""))
	assert.Error(t, l.Record(ctx, "question", "  "))
}

func TestRecord_EmbedFailureIsFatal(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	emb := testutil.NewMockEmbedder(testDim)
	emb.FailNext(errors.New("provider down"))
	l := newTestLedger(t, emb, store)

	err := l.Record(context.Background(), "question", "answer")
	require.Error(t, err)
	assert.Empty(t, store.records)
}

func TestLookup_ThresholdFilter(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	emb := testutil.NewMockEmbedder(testDim)
	// Make the stored correction orthogonal to the probe query.
	emb.SetVector("what color is the logo", axisVector(0))
	emb.SetVector("when is the deadline", axisVector(1))
	l := newTestLedger(t, emb, store)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "what color is the logo", "Blue"))

	_, found, err := l.Lookup(ctx, "when is the deadline")
	require.NoError(t, err)
	assert.False(t, found)

	// The same question is well above threshold
	answer, found, err := l.Lookup(ctx, "what color is the logo")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Blue", answer)
}

func TestLookup_FreshnessBeatsSimilarity(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	emb := testutil.NewMockEmbedder(testDim)
	// probe is closest to "old" (identical vector) but "new" is fresher
	// and still above threshold.
	probe := []float32{1, 0.3, 0, 0, 0, 0, 0, 0}
	emb.SetVector("exact old question", probe)
	emb.SetVector("paraphrased question", axisVector(0))
	emb.SetVector("probe", probe)
	l := newTestLedger(t, emb, store)
	ctx := context.Background()

	// testClock: "old" recorded first, "new" a minute later.
	require.NoError(t, l.Record(ctx, "exact old question", "May 5th"))
	require.NoError(t, l.Record(ctx, "paraphrased question", "May 12th"))

	answer, found, err := l.Lookup(ctx, "probe")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "May 12th", answer)
}

func TestLookup_TimestampTieBreaksOnSimilarity(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	emb := testutil.NewMockEmbedder(testDim)
	probe := []float32{1, 0.2, 0, 0, 0, 0, 0, 0}
	emb.SetVector("closer", probe)
	emb.SetVector("farther", axisVector(0))
	emb.SetVector("probe", probe)

	embedder, err := newEmbedAdapter(emb)
	require.NoError(t, err)
	fixed := time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC)
	l, err := New(Config{
		Embedder:  embedder,
		Store:     store,
		Threshold: 0.8,
		TopK:      3,
		Logger:    testutil.DiscardLogger(),
		Now:       func() time.Time { return fixed },
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "farther", "far answer"))
	require.NoError(t, l.Record(ctx, "closer", "close answer"))

	answer, found, err := l.Lookup(ctx, "probe")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "close answer", answer)
}

func TestLookup_EmbedFailureDegrades(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	emb := testutil.NewMockEmbedder(testDim)
	l := newTestLedger(t, emb, store)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "question", "answer"))

	emb.FailNext(errors.New("provider down"))
	answer, found, err := l.Lookup(ctx, "question")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, answer)
}

func TestLookup_StoreErrorPropagates(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.queryErr = errors.New("db down")
	emb := testutil.NewMockEmbedder(testDim)
	l := newTestLedger(t, emb, store)

	_, _, err := l.Lookup(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying corrections")
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	emb, err := newEmbedAdapter(testutil.NewMockEmbedder(testDim))
	require.NoError(t, err)

	_, err = New(Config{Embedder: nil, Store: newMemStore()})
	assert.Error(t, err)

	_, err = New(Config{Embedder: emb, Store: nil})
	assert.Error(t, err)

	_, err = New(Config{Embedder: emb, Store: newMemStore(), Threshold: 1.5})
	assert.Error(t, err)
}
