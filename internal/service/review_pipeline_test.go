package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

// scriptedReviewer returns one result per call, in order.
type scriptedReviewer struct {
	results []*models.ReviewResult
	errs    []error
	chunks  []string
}

func (s *scriptedReviewer) Review(_ context.Context, chunk string, _ models.RetrievalResult) (*models.ReviewResult, error) {
	i := len(s.chunks)
	s.chunks = append(s.chunks, chunk)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], err
	}
	return &models.ReviewResult{Issues: []models.Issue{}}, err
}

type staticRetriever struct{ calls int }

func (s *staticRetriever) FindRelevantRules(context.Context, string, string) models.RetrievalResult {
	s.calls++
	return models.RetrievalResult{Method: models.MethodVector}
}

func oneIssue(line int, suggestion string) *models.ReviewResult {
	return &models.ReviewResult{IssuesFound: 1, Issues: []models.Issue{{LineNumber: line, Severity: "High", Suggestion: suggestion}}}
}

func TestLanguageFor(t *testing.T) {
	assert.Equal(t, LanguageSQL, LanguageFor("q.sql"))
	assert.Equal(t, LanguagePySpark, LanguageFor("dir/job.py"))
	assert.Equal(t, "", LanguageFor("notes.txt"))
	assert.Equal(t, "", LanguageFor("Makefile"))
}

func TestReviewPipeline_SQLLinesComeFromStatements(t *testing.T) {
	reviewer := &scriptedReviewer{results: []*models.ReviewResult{
		oneIssue(1, "first"),
		oneIssue(9, "second"),
	}}
	p := NewReviewPipeline(&staticRetriever{}, reviewer, zap.NewNop())

	report, err := p.Analyze(context.Background(), "/tmp/q.sql", "-- comment\nSELECT 1;\n\nSELECT 2;")
	require.NoError(t, err)

	assert.Equal(t, []string{"SELECT 1;", "SELECT 2;"}, reviewer.chunks)
	assert.Equal(t, "q.sql", report.FileName)
	assert.Equal(t, 2, report.IssuesFound)
	require.Len(t, report.Issues, 2)
	assert.Equal(t, 2, report.Issues[0].LineNumber)
	assert.Equal(t, 4, report.Issues[1].LineNumber)
}

func TestReviewPipeline_PySparkBlocks(t *testing.T) {
	reviewer := &scriptedReviewer{results: []*models.ReviewResult{nil, oneIssue(3, "cache it")}}
	p := NewReviewPipeline(&staticRetriever{}, reviewer, zap.NewNop())

	src := "df = spark.read.csv('a')\n\n\ndf.count()\ndf.show()\n"
	report, err := p.Analyze(context.Background(), "job.py", src)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, 4, report.Issues[0].LineNumber)
}

func TestReviewPipeline_ChunkFailureDoesNotHaltRun(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	reviewer := &scriptedReviewer{
		results: []*models.ReviewResult{nil, nil, oneIssue(1, "kept")},
		errs: []error{
			&MalformedReplyError{Reason: "no JSON object in reply", Raw: "nope"},
			models.ErrLLMUnavailable,
		},
	}
	p := NewReviewPipeline(&staticRetriever{}, reviewer, zap.New(core))

	report, err := p.Analyze(context.Background(), "q.sql", "SELECT 1;\nSELECT 2;\nSELECT 3;")
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "kept", report.Issues[0].Suggestion)
	assert.Equal(t, 3, report.Issues[0].LineNumber)

	assert.Equal(t, 1, logs.FilterMessage("discarding malformed review").Len())
	assert.Equal(t, 1, logs.FilterMessage("review failed").Len())
}

func TestReviewPipeline_UnsupportedFile(t *testing.T) {
	retriever := &staticRetriever{}
	p := NewReviewPipeline(retriever, &scriptedReviewer{}, zap.NewNop())

	_, err := p.Analyze(context.Background(), "notes.txt", "SELECT 1;")
	assert.True(t, errors.Is(err, models.ErrUnsupportedFile))
	assert.Zero(t, retriever.calls)
}

func TestReviewPipeline_EmptyFile(t *testing.T) {
	p := NewReviewPipeline(&staticRetriever{}, &scriptedReviewer{}, zap.NewNop())
	report, err := p.Analyze(context.Background(), "job.py", "")
	require.NoError(t, err)
	assert.Zero(t, report.IssuesFound)
	assert.NotNil(t, report.Issues)
}

func TestAssembleReport(t *testing.T) {
	reviews := []ChunkReview{
		{StartLine: 10, Review: &models.ReviewResult{IssuesFound: 2, Issues: []models.Issue{
			{LineNumber: 1, Severity: "High", Suggestion: "a"},
			{LineNumber: 5, Severity: "Low", Suggestion: "b"},
		}}},
		{StartLine: 20, Review: nil},
		{StartLine: 30, Review: &models.ReviewResult{IssuesFound: 0, Issues: []models.Issue{{Severity: "x", Suggestion: "ignored"}}}},
		{StartLine: 40, Review: oneIssue(2, "c")},
	}
	got := AssembleReport("f.sql", reviews)

	assert.Equal(t, 3, got.IssuesFound)
	var lines []int
	var suggestions []string
	for _, is := range got.Issues {
		lines = append(lines, is.LineNumber)
		suggestions = append(suggestions, is.Suggestion)
	}
	assert.Equal(t, []int{10, 10, 40}, lines)
	assert.Equal(t, []string{"a", "b", "c"}, suggestions)
	// the input is left untouched
	assert.Equal(t, 1, reviews[0].Review.Issues[0].LineNumber)
}

func TestReportWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w := NewReportWriter(dir)
	w.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }

	path, err := w.Write(&models.Report{FileName: "q.sql", IssuesFound: 0, Issues: []models.Issue{}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "code_review_report_20240309_140507.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "q.sql", decoded["file_name"])
	assert.Contains(t, string(raw), "\n    \"issues_found\": 0")
}
