package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/askdeck/faqbot/db"
	"github.com/askdeck/faqbot/internal/answer"
	"github.com/askdeck/faqbot/internal/config"
	"github.com/askdeck/faqbot/internal/embed"
	"github.com/askdeck/faqbot/internal/intent"
	"github.com/askdeck/faqbot/internal/knowledge"
	"github.com/askdeck/faqbot/internal/ledger"
	"github.com/askdeck/faqbot/internal/observability"
	"github.com/askdeck/faqbot/internal/pipeline"
	"github.com/askdeck/faqbot/internal/retrieve"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before Genkit initialization so the
	// span processor is attached to the TracerProvider Genkit uses.
	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	client := provideEmbedderClient(g, cfg)
	if client == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	embedder, err := embed.New(embed.Config{
		Client:         client,
		Dimension:      cfg.EmbedderDimension,
		Retry:          provideRetryPolicy(cfg),
		RateLimiter:    rate.NewLimiter(10, 30),
		RequestOptions: provideEmbedOptions(cfg),
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	a.Embedder = embedder

	queries := knowledge.NewQueries(pool)
	a.FAQStore = knowledge.New(queries, cfg.FAQNamespace, logger)
	a.CorrectionStore = knowledge.New(queries, cfg.CorrectionNamespace, logger)

	led, err := ledger.New(ledger.Config{
		Embedder:  embedder,
		Store:     a.CorrectionStore,
		Threshold: cfg.SimilarityThreshold,
		TopK:      cfg.CorrectionTopK,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating correction ledger: %w", err)
	}
	a.Ledger = led

	retriever, err := retrieve.New(embedder, a.FAQStore, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}
	a.Retriever = retriever

	synth, err := answer.New(answer.Config{
		Genkit:    g,
		ModelName: cfg.ModelName,
		GenConfig: provideGenConfig(cfg),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating synthesizer: %w", err)
	}
	a.Synthesizer = synth

	classifier, err := intent.NewModel(g, cfg.ModelName, logger)
	if err != nil {
		return nil, fmt.Errorf("creating intent classifier: %w", err)
	}
	a.Classifier = classifier

	pipe, err := pipeline.New(pipeline.Config{
		Classifier:    classifier,
		Ledger:        led,
		Retriever:     retriever,
		Synthesizer:   synth,
		RetrievalTopK: cfg.RetrievalTopK,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}
	a.Pipeline = pipe

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideOtelShutdown sets up OTLP tracing before Genkit initialization.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLP.Endpoint,
		Environment: cfg.OTLP.Environment,
		ServiceName: cfg.OTLP.ServiceName,
	})
	if err != nil || shutdown == nil {
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedderClient looks up the embedder registered by the AI
// provider plugin. Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedderClient(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideEmbedOptions builds the provider-specific embed request options.
// Gemini models support truncation to the configured dimensionality
// (Matryoshka Representation Learning); other providers use the model's
// native dimension, which must match the vector column width.
func provideEmbedOptions(cfg *config.Config) any {
	if cfg.Provider == config.ProviderGemini || cfg.Provider == "" {
		dim := int32(cfg.EmbedderDimension)
		return &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}
	return nil
}

// provideGenConfig builds the provider-specific generation config
// carrying the answer token cap.
func provideGenConfig(cfg *config.Config) any {
	if cfg.MaxAnswerTokens <= 0 {
		return nil
	}
	if cfg.Provider == config.ProviderGemini || cfg.Provider == "" {
		return &genai.GenerateContentConfig{MaxOutputTokens: int32(cfg.MaxAnswerTokens)}
	}
	return nil
}

// provideRetryPolicy converts the configured millisecond intervals into
// an embedding retry policy.
func provideRetryPolicy(cfg *config.Config) embed.RetryPolicy {
	return embed.RetryPolicy{
		MaxAttempts:     cfg.RetryMaxAttempts,
		InitialInterval: time.Duration(cfg.RetryInitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.RetryMaxIntervalMs) * time.Millisecond,
		MaxElapsed:      time.Duration(cfg.RetryMaxElapsedMs) * time.Millisecond,
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}
