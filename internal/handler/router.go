package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/config"
	"github.com/ahmednasr/mapping-assistant/internal/middleware"
	"github.com/ahmednasr/mapping-assistant/internal/service"
	"github.com/ahmednasr/mapping-assistant/internal/session"
)

// maxUploadBytes caps request bodies, uploads included.
const maxUploadBytes = 16 << 20

// Deps are the services the routes are served from.
type Deps struct {
	Mappings  *service.MappingService
	Files     service.ContextFiles
	Sessions  *session.Store
	SQL       service.SQLScriptGenerator
	Profile   config.Profile
	Reviewer  CodeAnalyzer // nil disables /api/v1/review
	Reports   ReportSink
	UploadDir string
	SourceDir string
}

// NewFiberApp returns a fiber app with the shared error handler, body limit
// and access logging installed.
func NewFiberApp(logger *zap.Logger, readTimeout, writeTimeout time.Duration) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		BodyLimit:    maxUploadBytes,
		ErrorHandler: ErrorHandler,
	})
	app.Use(middleware.Logging(logger))
	return app
}

// RegisterRoutes mounts the mapping app on / and the review API on /api/v1.
func RegisterRoutes(app *fiber.App, d Deps, logger *zap.Logger) {
	NewMappingHandler(d.Mappings, d.Sessions, d.SourceDir).Register(app)
	NewUploadHandler(d.UploadDir, d.Files, d.Sessions, logger).Register(app)
	NewSQLHandler(d.SQL, d.Profile).Register(app)

	v1 := app.Group("/api/v1")
	NewReviewHandler(d.Reviewer, d.Reports, logger).Register(v1)
}
