package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/chunk"
	"github.com/ahmednasr/mapping-assistant/internal/models"
)

// Languages rules are stored under.
const (
	LanguageSQL     = "SQL"
	LanguagePySpark = "PySpark"
)

// LanguageFor maps a file name to the rule language, or "" when unsupported.
func LanguageFor(fileName string) string {
	switch filepath.Ext(fileName) {
	case ".sql":
		return LanguageSQL
	case ".py":
		return LanguagePySpark
	}
	return ""
}

// ---- Pipeline collaborators ------------------------------------------------

// RuleRetriever finds rules relevant to a chunk.
type RuleRetriever interface {
	FindRelevantRules(ctx context.Context, chunk, language string) models.RetrievalResult
}

// Reviewer produces a structured review of a chunk.
type Reviewer interface {
	Review(ctx context.Context, chunk string, rules models.RetrievalResult) (*models.ReviewResult, error)
}

// ReviewPipeline chunks a file, reviews each chunk and assembles the report.
type ReviewPipeline struct {
	retriever RuleRetriever
	reviewer  Reviewer
	logger    *zap.Logger
}

// NewReviewPipeline wires retrieval and review.
func NewReviewPipeline(retriever RuleRetriever, reviewer Reviewer, logger *zap.Logger) *ReviewPipeline {
	return &ReviewPipeline{retriever: retriever, reviewer: reviewer, logger: logger.Named("review")}
}

// Analyze reviews content as the file fileName. Only an unsupported file
// type is an error; per-chunk failures are logged and that chunk contributes
// no issues.
func (p *ReviewPipeline) Analyze(ctx context.Context, fileName, content string) (*models.Report, error) {
	language := LanguageFor(fileName)
	var chunks []chunk.Chunk
	switch language {
	case LanguageSQL:
		chunks = chunk.MapStatements(content, p.logger)
	case LanguagePySpark:
		chunks = chunk.SplitBlocks(content)
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFile, filepath.Ext(fileName))
	}

	p.logger.Info("analyzing file",
		zap.String("file", fileName), zap.String("language", language), zap.Int("chunks", len(chunks)))

	results := make([]ChunkReview, 0, len(chunks))
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}

		rules := p.retriever.FindRelevantRules(ctx, text, language)
		p.logger.Info("processing chunk",
			zap.Int("start_line", c.StartLine),
			zap.Int("end_line", c.StartLine+strings.Count(text, "\n")),
			zap.String("method", rules.Method))

		review, err := p.reviewer.Review(ctx, text, rules)
		if err != nil {
			p.logReviewError(c.StartLine, err)
		}
		results = append(results, ChunkReview{StartLine: c.StartLine, Review: review})
	}

	return AssembleReport(filepath.Base(fileName), results), nil
}

func (p *ReviewPipeline) logReviewError(line int, err error) {
	var bad *MalformedReplyError
	if errors.As(err, &bad) {
		p.logger.Warn("discarding malformed review",
			zap.Int("start_line", line), zap.String("reason", bad.Reason), zap.String("raw", bad.Raw))
		return
	}
	p.logger.Error("review failed", zap.Int("start_line", line), zap.Error(err))
}

// ChunkReview is the review outcome of one chunk; Review is nil when the
// chunk could not be reviewed.
type ChunkReview struct {
	StartLine int
	Review    *models.ReviewResult
}

// AssembleReport pins every issue to its chunk's start line and concatenates
// the issues in chunk order. Chunks without a review, or whose review reports
// no issues, contribute nothing.
func AssembleReport(fileName string, reviews []ChunkReview) *models.Report {
	issues := []models.Issue{}
	for _, r := range reviews {
		if r.Review == nil || r.Review.IssuesFound <= 0 {
			continue
		}
		for _, is := range r.Review.Issues {
			is.LineNumber = r.StartLine
			issues = append(issues, is)
		}
	}
	return &models.Report{FileName: fileName, IssuesFound: len(issues), Issues: issues}
}

// ---- Report writer ---------------------------------------------------------

// ReportWriter saves reports as timestamped JSON files.
type ReportWriter struct {
	dir string
	now func() time.Time
}

// NewReportWriter writes into dir, creating it on first use.
func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir, now: time.Now}
}

// Write stores r as code_review_report_YYYYMMDD_HHMMSS.json and returns the path.
func (w *ReportWriter) Write(r *models.Report) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(w.dir, "code_review_report_"+w.now().Format("20060102_150405")+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
