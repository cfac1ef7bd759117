// Package app builds the shared components of the binaries from Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/config"
	"github.com/ahmednasr/mapping-assistant/internal/models"
	"github.com/ahmednasr/mapping-assistant/internal/repository"
	"github.com/ahmednasr/mapping-assistant/internal/service"
)

// App holds the long-lived clients. Close releases them.
type App struct {
	Config   config.Config
	Profile  config.Profile
	Logger   *zap.Logger
	Rules    service.RuleStore
	Embedder service.Embedder
	LLM      service.LLM // nil when no LLM is configured

	closers []func() error
}

// New wires every backend selected in cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	profile, err := config.LoadProfile(cfg.MappingProfile)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Profile: profile, Logger: logger, Rules: NewRuleStore(cfg)}

	emb, closeEmb, err := NewEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Embedder = emb
	a.closers = append(a.closers, closeEmb)

	llm, closeLLM, err := NewLLM(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if llm == nil {
		logger.Warn("no LLM configured; reviews and mapping generation are disabled",
			zap.String("provider", cfg.LLMProvider))
	}
	a.LLM = llm
	a.closers = append(a.closers, closeLLM)
	return a, nil
}

// Close releases every client opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ReviewPipeline returns the code review pipeline, or ErrLLMUnavailable when
// no LLM is configured.
func (a *App) ReviewPipeline() (*service.ReviewPipeline, error) {
	if a.LLM == nil {
		return nil, fmt.Errorf("%w: set DATABRICKS_TOKEN, OPENAI_API_KEY or LLM_PROVIDER=vertex", models.ErrLLMUnavailable)
	}
	retriever := service.NewRetriever(a.Rules, a.Embedder, a.Config.SimilarityThreshold, a.Config.TopK, a.Logger)
	return service.NewReviewPipeline(retriever, service.NewReviewGenerator(a.LLM), a.Logger), nil
}

// SQLGenerator returns the generator selected by SQL_GENERATOR. Without an
// LLM the template generator is used.
func (a *App) SQLGenerator(mappings service.MappingStore, files service.ContextFiles) service.SQLScriptGenerator {
	if a.Config.SQLGenerator == service.SQLGeneratorTemplate || a.LLM == nil {
		return service.NewTemplateSQLGenerator(mappings, files)
	}
	dirs := []string{a.Config.SourceDir, a.Config.UploadDir}
	return service.NewLLMSQLGenerator(a.LLM, mappings, files, dirs, a.Logger)
}

// MappingStore opens the JSON mapping file.
func (a *App) MappingStore() *repository.MappingJSON {
	return repository.NewMappingJSON(a.Config.MappingsPath, a.Logger)
}

// ContextFiles locates the uploaded data dictionary and domain model.
func (a *App) ContextFiles() service.ContextFiles {
	return service.NewContextFiles(a.Config.UploadDir)
}

// ReportWriter writes review reports into REPORT_DIR.
func (a *App) ReportWriter() *service.ReportWriter {
	return service.NewReportWriter(filepath.Clean(a.Config.ReportDir))
}

// NewRuleStore opens a fresh connection per retrieval call.
func NewRuleStore(cfg config.Config) service.RuleStore {
	return service.RuleStoreFunc(func(ctx context.Context) (service.RuleReader, error) {
		admin, err := OpenRuleAdmin(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return admin, nil
	})
}

// RuleAdmin is the read/write side of the rule store used by rulesctl.
type RuleAdmin interface {
	service.RuleReader
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, rule models.Rule) error
	MissingVectors(ctx context.Context) ([]models.Rule, error)
	SetVector(ctx context.Context, id int64, vec []float32) error
}

// OpenRuleAdmin connects to the configured rule store. Connection failures
// wrap models.ErrStoreUnavailable.
func OpenRuleAdmin(ctx context.Context, cfg config.Config) (RuleAdmin, error) {
	var (
		store RuleAdmin
		err   error
	)
	switch cfg.RuleStore {
	case "mongo":
		store, err = repository.OpenRuleMongo(ctx, cfg.MongoURI, cfg.DBName)
	default:
		store, err = repository.OpenRuleSQLite(ctx, cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

func noopClose() error { return nil }

// NewEmbedder builds the embedding backend named by EMBEDDER.
func NewEmbedder(ctx context.Context, cfg config.Config, logger *zap.Logger) (service.Embedder, func() error, error) {
	switch cfg.Embedder {
	case "ollama":
		return service.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel), noopClose, nil
	case "local":
		return service.NewLocalEmbedder(cfg.EmbeddingModel, logger), noopClose, nil
	case "vertex":
		e, err := service.NewVertexEmbedder(ctx, vertexOptions(cfg, cfg.EmbeddingModel))
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	case "gemini":
		e, err := service.NewGeminiEmbedder(ctx, cfg.GeminiKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, nil, err
		}
		return e, noopClose, nil
	case "openai":
		e, err := service.NewOpenAIEmbedder(cfg.OpenAIKey, cfg.LLMBaseURL, cfg.EmbeddingModel)
		if err != nil {
			return nil, nil, err
		}
		return e, noopClose, nil
	}
	return nil, nil, fmt.Errorf("unknown EMBEDDER %q", cfg.Embedder)
}

// NewLLM builds the chat backend named by LLM_PROVIDER. An OpenAI-compatible
// provider without a token yields a nil LLM and no error.
func NewLLM(ctx context.Context, cfg config.Config) (service.LLM, func() error, error) {
	switch cfg.LLMProvider {
	case "openai":
		token := cfg.DatabricksToken
		if token == "" {
			token = cfg.OpenAIKey
		}
		if token == "" {
			return nil, noopClose, nil
		}
		l, err := service.NewOpenAILLM(token, cfg.LLMBaseURL, cfg.LLMModel)
		if err != nil {
			return nil, nil, err
		}
		return l, noopClose, nil
	case "vertex":
		l, err := service.NewVertexLLM(ctx, vertexOptions(cfg, cfg.LLMModel))
		if err != nil {
			return nil, nil, err
		}
		return l, l.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
}

func vertexOptions(cfg config.Config, model string) service.VertexOptions {
	return service.VertexOptions{
		ProjectID:       cfg.ProjectID,
		Location:        cfg.Location,
		Model:           model,
		CredentialsFile: cfg.CredentialsFile,
	}
}
