package knowledge

import "time"

// Record is a stored unit in the vector store: identity, content, its
// embedding, and free-form string metadata.
type Record struct {
	ID        string            // Deterministic identifier (derived from normalized query text)
	Content   string            // Record text content
	Embedding []float32         // Vector for similarity search
	Metadata  map[string]string // Optional metadata (question, answer, etc.)
	CreatedAt time.Time         // Authoring timestamp
}

// Match is a single search result with its similarity score.
type Match struct {
	Record     Record
	Similarity float32 // Cosine similarity (0-1)
}

// MatchSet is an ordered sequence of matches, descending by similarity.
type MatchSet []Match

// QueryOption configures search behavior using the functional options pattern.
type QueryOption func(*queryConfig)

type queryConfig struct {
	topK      int32
	namespace string
	timeout   time.Duration
}

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) QueryOption {
	return func(c *queryConfig) {
		if k >= 1 {
			c.topK = int32(k)
		}
	}
}

// WithNamespace overrides the store's default namespace for one query.
func WithNamespace(ns string) QueryOption {
	return func(c *queryConfig) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithTimeout overrides the default query timeout.
func WithTimeout(d time.Duration) QueryOption {
	return func(c *queryConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildQueryConfig(namespace string, opts []QueryOption) *queryConfig {
	cfg := &queryConfig{
		topK:      5,
		namespace: namespace,
		timeout:   defaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
