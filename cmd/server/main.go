package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/app"
	"github.com/ahmednasr/mapping-assistant/internal/config"
	"github.com/ahmednasr/mapping-assistant/internal/handler"
	"github.com/ahmednasr/mapping-assistant/internal/logging"
	"github.com/ahmednasr/mapping-assistant/internal/service"
	"github.com/ahmednasr/mapping-assistant/internal/session"
)

// sessionTTL drops source snapshots of idle browser sessions.
const sessionTTL = 12 * time.Hour

// main is the single entry‑point for the mapping app and review API.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("rule_store", cfg.RuleStore),
		zap.String("embedder", cfg.Embedder),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("sql_generator", cfg.SQLGenerator))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize backends
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Initialize services
	store := a.MappingStore()
	files := a.ContextFiles()
	deps := handler.Deps{
		Mappings:  service.NewMappingService(store, a.Profile, a.LLM, files, logger),
		Files:     files,
		Sessions:  session.NewStore(sessionTTL),
		SQL:       a.SQLGenerator(store, files),
		Profile:   a.Profile,
		Reports:   a.ReportWriter(),
		UploadDir: cfg.UploadDir,
		SourceDir: cfg.SourceDir,
	}
	if pipeline, err := a.ReviewPipeline(); err == nil {
		deps.Reviewer = pipeline
	}

	// Create Fiber app
	server := handler.NewFiberApp(logger, cfg.ReadTimeout, cfg.WriteTimeout)
	handler.RegisterRoutes(server, deps, logger)

	// Add health check
	handler.NewHealthHandler(a.Rules, a.LLM != nil).Register(server)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = server.ShutdownWithTimeout(10 * time.Second)
	}()

	// Start server
	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := server.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
