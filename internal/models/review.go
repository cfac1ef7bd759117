package models

// SeverityAISuggestion marks issues raised without a backing rule.
const SeverityAISuggestion = "AI Generated Suggestion"

// Issue is a single finding inside a review.
type Issue struct {
	LineNumber int    `json:"line_number"`
	Severity   string `json:"severity"`
	RuleID     *int64 `json:"rule_id,omitempty"`
	Suggestion string `json:"suggestion"`
}

// ReviewResult is the validated reply of the review LLM for one chunk.
type ReviewResult struct {
	IssuesFound int     `json:"issues_found"`
	Issues      []Issue `json:"issues"`
}

// Report is the per-file review written to disk.
type Report struct {
	FileName    string  `json:"file_name"`
	IssuesFound int     `json:"issues_found"`
	Issues      []Issue `json:"issues"`
}
