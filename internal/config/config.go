// Package config centralises all environment configuration for the binaries.
// It should be imported only by `cmd/*` (and test code). Business-logic
// layers receive an already-built Config instance via dependency-injection.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime option the binaries need.
// Keep it flat and simple; prefer primitive types over embedding structs.
type Config struct {
	// Network
	Port string

	// Rule store
	RuleStore  string // "mongo" or "sqlite"
	MongoURI   string
	DBName     string
	SQLitePath string

	// Embeddings
	Embedder       string // "ollama", "local", "vertex", "gemini", "openai"
	EmbeddingModel string
	OllamaURL      string

	// LLM
	LLMProvider     string // "openai" (any OpenAI-compatible endpoint) or "vertex"
	LLMBaseURL      string
	LLMModel        string
	DatabricksToken string
	OpenAIKey       string
	GeminiKey       string

	// Google Cloud
	ProjectID       string
	Location        string
	CredentialsFile string

	// Mapping app
	SQLGenerator   string // "llm" or "template"
	MappingsPath   string
	UploadDir      string
	SourceDir      string
	MappingProfile string

	// Review pipeline
	ReportDir           string
	SimilarityThreshold float64
	TopK                int

	// Server tuning
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	LogLevel string
}

// Load parses the environment (and an optional .env file) into Config.
func Load() (Config, error) {
	// godotenv.Load() is a no-op if .env doesn't exist, safe in production.
	_ = godotenv.Load()

	cfg := Config{
		Port:                getEnv("PORT", "5000"),
		RuleStore:           getEnv("RULE_STORE", "sqlite"),
		MongoURI:            getEnv("MONGODB_URI", ""),
		DBName:              getEnv("MONGODB_DB", "code_reviewer"),
		SQLitePath:          getEnv("SQLITE_PATH", "rules.db"),
		Embedder:            getEnv("EMBEDDER", "ollama"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", ""),
		OllamaURL:           getEnv("OLLAMA_URL", "http://localhost:11434"),
		LLMProvider:         getEnv("LLM_PROVIDER", "openai"),
		LLMBaseURL:          getEnv("LLM_BASE_URL", ""),
		LLMModel:            getEnv("LLM_MODEL", "databricks-claude-sonnet-4"),
		DatabricksToken:     getEnv("DATABRICKS_TOKEN", ""),
		OpenAIKey:           getEnv("OPENAI_API_KEY", ""),
		GeminiKey:           getEnv("GEMINI_API_KEY", ""),
		ProjectID:           getEnv("GCP_PROJECT_ID", ""),
		Location:            getEnv("GCP_LOCATION", "us-central1"),
		CredentialsFile:     getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		SQLGenerator:        getEnv("SQL_GENERATOR", "llm"),
		MappingsPath:        getEnv("MAPPINGS_PATH", "mappings.json"),
		UploadDir:           getEnv("UPLOAD_DIR", "uploads"),
		SourceDir:           getEnv("SOURCE_DIR", "source"),
		MappingProfile:      getEnv("MAPPING_PROFILE", ""),
		ReportDir:           getEnv("REPORT_DIR", "outputs"),
		SimilarityThreshold: getFloat("SIMILARITY_THRESHOLD", 0.55),
		TopK:                getInt("TOP_K", 3),
		ReadTimeout:         getDuration("READ_TIMEOUT_SEC", 30),
		WriteTimeout:        getDuration("WRITE_TIMEOUT_SEC", 120),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.RuleStore {
	case "sqlite":
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("env var MONGODB_URI is required when RULE_STORE=mongo")
		}
	default:
		return fmt.Errorf("unknown RULE_STORE %q", c.RuleStore)
	}
	switch c.SQLGenerator {
	case "llm", "template":
	default:
		return fmt.Errorf("unknown SQL_GENERATOR %q", c.SQLGenerator)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	return nil
}

// getEnv returns env[key] if set, otherwise defaultVal.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getDuration reads an integer (seconds) from env, falling back to defaultSec.
func getDuration(key string, defaultSec int) time.Duration {
	return time.Duration(getInt(key, defaultSec)) * time.Second
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
