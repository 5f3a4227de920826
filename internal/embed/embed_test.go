package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdeck/faqbot/internal/testutil"
)

const testDim = 8

// fastRetry keeps retry tests quick without changing the retry logic.
func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Microsecond,
		MaxInterval:     time.Millisecond,
	}
}

func newTestEmbedder(t *testing.T, mock *testutil.MockEmbedder, policy RetryPolicy) *Embedder {
	t.Helper()
	e, err := New(Config{
		Client:    mock,
		Dimension: testDim,
		Retry:     policy,
		Logger:    testutil.DiscardLogger(),
	})
	require.NoError(t, err)
	return e
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Client: nil, Dimension: testDim})
	assert.Error(t, err)

	_, err = New(Config{Client: testutil.NewMockEmbedder(testDim), Dimension: 0})
	assert.Error(t, err)
}

func TestEmbed_Success(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockEmbedder(testDim)
	e := newTestEmbedder(t, mock, fastRetry(3))

	vec, err := e.Embed(context.Background(), "when is the deadline?")
	require.NoError(t, err)
	assert.Len(t, vec, testDim)
	assert.Equal(t, 1, mock.Calls())

	// Same input yields the same vector
	vec2, err := e.Embed(context.Background(), "when is the deadline?")
	require.NoError(t, err)
	assert.Equal(t, vec, vec2)
}

func TestEmbed_EmptyInput(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockEmbedder(testDim)
	e := newTestEmbedder(t, mock, fastRetry(3))

	for _, input := range []string{"", "   ", "\t\n"} {
		_, err := e.Embed(context.Background(), input)
		assert.ErrorIs(t, err, ErrEmptyInput, "input %q", input)
	}

	// No provider call was made
	assert.Equal(t, 0, mock.Calls())
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockEmbedder(testDim)
	mock.SetVector("short", []float32{1, 0, 0})
	e := newTestEmbedder(t, mock, fastRetry(3))

	_, err := e.Embed(context.Background(), "short")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEmbed_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockEmbedder(testDim)
	mock.FailNext(
		errors.New("429 rate limit exceeded"),
		errors.New("503 service unavailable"),
	)
	e := newTestEmbedder(t, mock, fastRetry(3))

	vec, err := e.Embed(context.Background(), "question")
	require.NoError(t, err)
	assert.Len(t, vec, testDim)
	assert.Equal(t, 3, mock.Calls())
}

func TestEmbed_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockEmbedder(testDim)
	mock.FailNext(
		errors.New("connection reset by peer"),
		errors.New("connection reset by peer"),
		errors.New("connection reset by peer"),
	)
	e := newTestEmbedder(t, mock, fastRetry(3))

	_, err := e.Embed(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Equal(t, 3, mock.Calls())
}

func TestEmbed_AuthErrorNotRetried(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockEmbedder(testDim)
	mock.FailNext(errors.New("401 unauthorized: api key not valid"))
	e := newTestEmbedder(t, mock, fastRetry(3))

	_, err := e.Embed(context.Background(), "question")
	require.Error(t, err)
	assert.Equal(t, 1, mock.Calls())
}

func TestEmbed_ContextCancellation(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockEmbedder(testDim)
	mock.FailNext(errors.New("timeout"), errors.New("timeout"))
	e := newTestEmbedder(t, mock, RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 10 * time.Second, // force the retry to block on the delay
		MaxInterval:     10 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, "question")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"quota", errors.New("quota exceeded for project"), true},
		{"server 500", errors.New("internal error: 500"), true},
		{"unavailable", errors.New("service unavailable"), true},
		{"network reset", errors.New("read: connection reset"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"auth 401", errors.New("401 Unauthorized"), false},
		{"auth 403", errors.New("403 permission denied"), false},
		{"bad api key", errors.New("API key not valid"), false},
		{"plain error", errors.New("invalid argument"), false},
		// Auth wins when both categories match
		{"auth with 500", errors.New("500: permission denied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, retryableError(tt.err))
		})
	}
}

func TestRetryPolicy_WithDefaults(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{}.withDefaults()
	def := DefaultRetryPolicy()
	assert.Equal(t, def.MaxAttempts, p.MaxAttempts)
	assert.Equal(t, def.InitialInterval, p.InitialInterval)
	assert.Equal(t, def.MaxInterval, p.MaxInterval)

	custom := RetryPolicy{MaxAttempts: 5, InitialInterval: time.Second, MaxInterval: time.Minute}.withDefaults()
	assert.Equal(t, 5, custom.MaxAttempts)
	assert.Equal(t, time.Second, custom.InitialInterval)
}
