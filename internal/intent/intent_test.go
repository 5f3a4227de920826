package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdeck/faqbot/internal/testutil"
)

func TestRules_Greetings(t *testing.T) {
	t.Parallel()

	r := NewRules()
	ctx := context.Background()

	greetingInputs := []string{
		"hi", "Hello", "HEY", "hi there", "Good Morning",
		"hello!", "hey.", "  hello  ", "good   evening",
	}
	for _, input := range greetingInputs {
		res, err := r.Classify(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, Greeting, res.Intent, "input %q", input)
	}

	// Greetings embedded in longer messages are not greetings
	notGreetings := []string{
		"hi, when is the deadline?",
		"hello everyone at the office",
		"highway regulations",
	}
	for _, input := range notGreetings {
		res, err := r.Classify(ctx, input)
		require.NoError(t, err)
		assert.NotEqual(t, Greeting, res.Intent, "input %q", input)
	}
}

func TestRules_Corrections(t *testing.T) {
	t.Parallel()

	r := NewRules()
	ctx := context.Background()

	tests := []struct {
		name      string
		input     string
		corrected string
	}{
		{"explicit wrong", "No, that's wrong. The deadline is May 12th", "The deadline is May 12th"},
		{"correct answer is", "the correct answer is May 12th", "May 12th"},
		{"it's actually", "It's actually May 12th.", "May 12th"},
		{"no apostrophe", "its actually May 12th", "May 12th"},
		{"correction prefix", "Correction: the deadline is May 12th", "the deadline is May 12th"},
		{"actually comma", "Actually, the deadline moved to May 12th", "the deadline moved to May 12th"},
		{"keeps casing", "The correct answer is Paris, France.", "Paris, France"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := r.Classify(ctx, tt.input)
			require.NoError(t, err)
			assert.Equal(t, Correction, res.Intent)
			assert.Equal(t, tt.corrected, res.CorrectedAnswer)
		})
	}
}

func TestRules_Questions(t *testing.T) {
	t.Parallel()

	r := NewRules()
	ctx := context.Background()

	questions := []string{
		"When is the deadline?",
		"what color is the logo",
		"Can I submit twice?",
		"tell me about the refund policy",
	}
	for _, input := range questions {
		res, err := r.Classify(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, Question, res.Intent, "input %q", input)
		assert.Empty(t, res.CorrectedAnswer)
	}
}

func TestIntent_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "question", Question.String())
	assert.Equal(t, "greeting", Greeting.String())
	assert.Equal(t, "correction", Correction.String())
}

func newTestModel(t *testing.T, mock *testutil.MockLLM) *Model {
	t.Helper()

	g := genkit.Init(context.Background())
	require.NotNil(t, g)
	mock.RegisterModel(g)

	m, err := NewModel(g, "mock/test-model", testutil.DiscardLogger())
	require.NoError(t, err)
	return m
}

func TestModel_ClassifiesFromLabel(t *testing.T) {
	mock := testutil.NewMockLLM("question")
	mock.AddResponse("howdy", "greeting")
	mock.AddResponse("deadline moved", "correction | May 12th")
	m := newTestModel(t, mock)
	ctx := context.Background()

	res, err := m.Classify(ctx, "howdy")
	require.NoError(t, err)
	assert.Equal(t, Greeting, res.Intent)

	res, err = m.Classify(ctx, "the deadline moved to next week")
	require.NoError(t, err)
	assert.Equal(t, Correction, res.Intent)
	assert.Equal(t, "May 12th", res.CorrectedAnswer)

	res, err = m.Classify(ctx, "anything else")
	require.NoError(t, err)
	assert.Equal(t, Question, res.Intent)
}

func TestModel_FallsBackOnError(t *testing.T) {
	mock := testutil.NewMockLLM("question")
	mock.SetError(errors.New("model down"))
	m := newTestModel(t, mock)

	res, err := m.Classify(context.Background(), "It's actually May 12th")
	require.NoError(t, err)
	assert.Equal(t, Correction, res.Intent)
	assert.Equal(t, "May 12th", res.CorrectedAnswer)
}

func TestModel_FallsBackOnUnknownLabel(t *testing.T) {
	mock := testutil.NewMockLLM("banana")
	m := newTestModel(t, mock)

	res, err := m.Classify(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Greeting, res.Intent)
}

func TestModel_FallsBackOnEmptyCorrection(t *testing.T) {
	mock := testutil.NewMockLLM("correction |")
	m := newTestModel(t, mock)

	res, err := m.Classify(context.Background(), "the correct answer is May 12th")
	require.NoError(t, err)
	assert.Equal(t, Correction, res.Intent)
	assert.Equal(t, "May 12th", res.CorrectedAnswer)
}
