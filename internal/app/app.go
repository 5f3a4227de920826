// Package app provides application initialization and dependency injection.
//
// App is the container that wires configuration, Genkit, the database
// pool, the vector stores, and the conversation pipeline together.
// Setup builds everything in dependency order; Close releases it.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askdeck/faqbot/internal/answer"
	"github.com/askdeck/faqbot/internal/config"
	"github.com/askdeck/faqbot/internal/embed"
	"github.com/askdeck/faqbot/internal/intent"
	"github.com/askdeck/faqbot/internal/knowledge"
	"github.com/askdeck/faqbot/internal/ledger"
	"github.com/askdeck/faqbot/internal/pipeline"
	"github.com/askdeck/faqbot/internal/retrieve"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder *embed.Embedder
	DBPool   *pgxpool.Pool

	// Stores, one per namespace over the shared records table
	FAQStore        *knowledge.Store
	CorrectionStore *knowledge.Store

	// Pipeline components
	Ledger      *ledger.Ledger
	Retriever   *retrieve.Retriever
	Synthesizer *answer.Synthesizer
	Classifier  intent.Classifier
	Pipeline    *pipeline.Pipeline

	// Lifecycle management
	otelCleanup func()
	dbCleanup   func()
	cancel      context.CancelFunc
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.logger().Info("shutting down application")

	if a.cancel != nil {
		a.cancel()
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.logger().Info("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
