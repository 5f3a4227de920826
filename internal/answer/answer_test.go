package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdeck/faqbot/internal/knowledge"
	"github.com/askdeck/faqbot/internal/testutil"
)

func newTestSynthesizer(t *testing.T, mock *testutil.MockLLM) *Synthesizer {
	t.Helper()

	g := genkit.Init(context.Background())
	require.NotNil(t, g)
	mock.RegisterModel(g)

	s, err := New(Config{
		Genkit:    g,
		ModelName: "mock/test-model",
		Logger:    testutil.DiscardLogger(),
	})
	require.NoError(t, err)
	return s
}

func faqMatch(question, answer string, similarity float32) knowledge.Match {
	return knowledge.Match{
		Record: knowledge.Record{
			ID:       question,
			Content:  question,
			Metadata: map[string]string{"question": question, "answer": answer},
		},
		Similarity: similarity,
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Genkit: nil, ModelName: "m"})
	assert.Error(t, err)

	g := genkit.Init(context.Background())
	require.NotNil(t, g)
	_, err = New(Config{Genkit: g, ModelName: ""})
	assert.Error(t, err)
}

func TestGenerate_UsesRetrievedContext(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddResponse("deadline", "The deadline is May 5th.")
	s := newTestSynthesizer(t, mock)

	matches := knowledge.MatchSet{
		faqMatch("When is the deadline?", "May 5th", 0.92),
		faqMatch("Where do I submit?", "On the portal", 0.61),
	}

	answer, err := s.Generate(context.Background(), matches, "when is the deadline?")
	require.NoError(t, err)
	assert.Equal(t, "The deadline is May 5th.", answer)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	// Context is concatenated in similarity order ahead of the question.
	assert.Contains(t, calls[0].UserMessage, "Question: When is the deadline? Answer: May 5th")
	assert.Contains(t, calls[0].UserMessage, "Question: Where do I submit? Answer: On the portal")
	assert.Contains(t, calls[0].UserMessage, "answer the question: when is the deadline?")
}

func TestGenerate_MissingMetadataRendersPlaceholder(t *testing.T) {
	mock := testutil.NewMockLLM("ok")
	s := newTestSynthesizer(t, mock)

	matches := knowledge.MatchSet{
		{Record: knowledge.Record{ID: "bare", Content: "bare"}, Similarity: 0.9},
	}

	_, err := s.Generate(context.Background(), matches, "anything")
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].UserMessage, "Question: N/A Answer: N/A")
}

func TestGenerate_EmptyMatchSet(t *testing.T) {
	mock := testutil.NewMockLLM("I cannot tell from the documents.")
	s := newTestSynthesizer(t, mock)

	answer, err := s.Generate(context.Background(), nil, "unknown")
	require.NoError(t, err)
	assert.Equal(t, "I cannot tell from the documents.", answer)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].UserMessage, "Based on the following information: N/A")
}

func TestGenerate_ModelErrorWrapped(t *testing.T) {
	mock := testutil.NewMockLLM("ok")
	mock.SetError(errors.New("model exploded"))
	s := newTestSynthesizer(t, mock)

	_, err := s.Generate(context.Background(), nil, "q")
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Error(), "generation failed")
}

func TestGenerate_EmptyResponseIsError(t *testing.T) {
	mock := testutil.NewMockLLM("   ")
	s := newTestSynthesizer(t, mock)

	_, err := s.Generate(context.Background(), nil, "q")
	require.Error(t, err)

	var genErr *GenerationError
	assert.ErrorAs(t, err, &genErr)
}
