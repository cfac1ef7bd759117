package handler

import (
	"context"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

// ---- Review contract ----

// CodeAnalyzer reviews one source file.
type CodeAnalyzer interface {
	Analyze(ctx context.Context, fileName, content string) (*models.Report, error)
}

// ReportSink persists a finished report and returns where it went.
type ReportSink interface {
	Write(r *models.Report) (string, error)
}

// ReviewHandler wires HTTP → ReviewPipeline.
type ReviewHandler struct {
	analyzer CodeAnalyzer // nil when no LLM is configured
	reports  ReportSink
	logger   *zap.Logger
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(analyzer CodeAnalyzer, reports ReportSink, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{analyzer: analyzer, reports: reports, logger: logger.Named("review")}
}

// Register mounts POST /review on the given router group.
func (h *ReviewHandler) Register(r fiber.Router) {
	r.Post("/review", h.review)
}

// review handles POST /review
func (h *ReviewHandler) review(c *fiber.Ctx) error {
	if h.analyzer == nil {
		return fail(fmt.Errorf("%w: code review needs an LLM", models.ErrLLMUnavailable))
	}
	fh, err := formFile(c, "code_file")
	if err != nil {
		return err
	}
	f, err := fh.Open()
	if err != nil {
		return fail(err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return fail(fmt.Errorf("read upload: %w", err))
	}

	report, err := h.analyzer.Analyze(c.UserContext(), fh.Filename, string(content))
	if err != nil {
		return fail(err)
	}
	path, err := h.reports.Write(report)
	if err != nil {
		return fail(err)
	}
	h.logger.Info("review complete",
		zap.String("file", report.FileName), zap.Int("issues", report.IssuesFound), zap.String("report", path))

	return c.JSON(fiber.Map{
		"file_name":    report.FileName,
		"issues_found": report.IssuesFound,
		"issues":       report.Issues,
		"report_path":  path,
	})
}
