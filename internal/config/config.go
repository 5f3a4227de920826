// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.faqbot/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, generation model, embedder model and dimension
//   - Storage: PostgreSQL connection (see storage.go)
//   - Pipeline: similarity threshold, top-k, answer token cap
//   - Observability: OTLP trace export (serve mode)
//
// Validation lives in validation.go and uses sentinel errors so callers
// can check failures with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to the configured output
	// dimensionality (Matryoshka Representation Learning).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension matches the vector(1536) column in
	// db/migrations. Changing one requires changing the other.
	DefaultEmbedderDimension = 1536

	// DefaultSimilarityThreshold is the minimum cosine similarity for a
	// stored record to count as "the same question". 0.80 keeps close
	// paraphrases ("when's the deadline" vs "When is the deadline?")
	// while rejecting topically adjacent but different questions.
	DefaultSimilarityThreshold = 0.80
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider  string `mapstructure:"provider" json:"provider"`
	ModelName string `mapstructure:"model_name" json:"model_name"` // provider-qualified, e.g. "googleai/gemini-2.5-flash"

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedding configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Retry policy for embedding calls
	RetryMaxAttempts       int `mapstructure:"retry_max_attempts" json:"retry_max_attempts"`
	RetryInitialIntervalMs int `mapstructure:"retry_initial_interval_ms" json:"retry_initial_interval_ms"`
	RetryMaxIntervalMs     int `mapstructure:"retry_max_interval_ms" json:"retry_max_interval_ms"`
	RetryMaxElapsedMs      int `mapstructure:"retry_max_elapsed_ms" json:"retry_max_elapsed_ms"`

	// Pipeline configuration
	SimilarityThreshold float32 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	CorrectionTopK      int     `mapstructure:"correction_top_k" json:"correction_top_k"`
	RetrievalTopK       int     `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	MaxAnswerTokens     int     `mapstructure:"max_answer_tokens" json:"max_answer_tokens"`

	// Store namespaces
	FAQNamespace        string `mapstructure:"faq_namespace" json:"faq_namespace"`
	CorrectionNamespace string `mapstructure:"correction_namespace" json:"correction_namespace"`

	// Storage configuration (see storage.go for helpers)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE: never serialized
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability configuration (serve mode)
	OTLP OTLPConfig `mapstructure:"otlp" json:"otlp"`
}

// OTLPConfig configures trace export to a local OTLP collector.
type OTLPConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".faqbot")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error; use defaults.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "googleai/gemini-2.5-flash")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	viper.SetDefault("retry_max_attempts", 3)
	viper.SetDefault("retry_initial_interval_ms", 500)
	viper.SetDefault("retry_max_interval_ms", 10000)
	viper.SetDefault("retry_max_elapsed_ms", 60000)

	viper.SetDefault("similarity_threshold", DefaultSimilarityThreshold)
	viper.SetDefault("correction_top_k", 3)
	viper.SetDefault("retrieval_top_k", 3)
	viper.SetDefault("max_answer_tokens", 200)

	viper.SetDefault("faq_namespace", "faq")
	viper.SetDefault("correction_namespace", "corrections")

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "faqbot")
	viper.SetDefault("postgres_password", "faqbot_dev_password")
	viper.SetDefault("postgres_db_name", "faqbot")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("otlp.endpoint", "localhost:4318")
	viper.SetDefault("otlp.environment", "dev")
	viper.SetDefault("otlp.service_name", "faqbot")
}

// bindEnvVariables binds environment variable overrides explicitly.
// Provider API keys (GEMINI_API_KEY, OPENAI_API_KEY) are read directly
// by the Genkit plugins and are intentionally not part of Config.
func bindEnvVariables() {
	_ = viper.BindEnv("provider", "FAQBOT_PROVIDER")
	_ = viper.BindEnv("model_name", "FAQBOT_MODEL")
	_ = viper.BindEnv("embedder_model", "FAQBOT_EMBEDDER_MODEL")
	_ = viper.BindEnv("similarity_threshold", "FAQBOT_SIMILARITY_THRESHOLD")
	_ = viper.BindEnv("postgres_password", "FAQBOT_POSTGRES_PASSWORD")
}
