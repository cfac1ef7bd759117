package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

// Temperatures for the review prompts.
const (
	ruleReviewTemperature = 0.0
	openReviewTemperature = 0.75
)

const emptyReviewJSON = `{"issues_found": 0, "issues": []}`

// ReviewGenerator asks the LLM to review one chunk against retrieved rules.
type ReviewGenerator struct {
	llm LLM
}

// NewReviewGenerator wires the LLM.
func NewReviewGenerator(llm LLM) *ReviewGenerator {
	return &ReviewGenerator{llm: llm}
}

// Review returns the validated review of chunk. Transport failures wrap
// models.ErrLLMUnavailable (or ErrAccessDenied); unusable replies wrap
// models.ErrMalformedOutput and carry the raw reply text.
func (g *ReviewGenerator) Review(ctx context.Context, chunk string, rules models.RetrievalResult) (*models.ReviewResult, error) {
	prompt := BuildReviewPrompt(chunk, rules)
	reply, err := g.llm.GenerateResponse(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseReview(reply)
}

// BuildReviewPrompt selects the rule-confirmation, candidate-evaluation or
// open-ended prompt depending on how the rules were found.
func BuildReviewPrompt(chunk string, rules models.RetrievalResult) Prompt {
	bad := formatBadPractices(rules.BadPractices)
	good := formatGoodPractices(rules.GoodPractices)

	switch {
	case rules.Method == models.MethodRegex:
		return Prompt{Temperature: ruleReviewTemperature, User: fmt.Sprintf(`You are a precise code review assistant. A code snippet has been identified as potentially violating one or more bad practices via direct Regex Matches.

**Bad Practices Found by Regex:**
%s

**Code to Review:**
`+"```"+`
%s
`+"```"+`

**Task:**
Your task is to review the code and confirm each violation from the list of 'Bad Practices Found by Regex'.

Your response MUST be a single, valid JSON object. The JSON should contain a list of all confirmed issues. For each issue, provide **only** these four keys: `+"`line_number`"+` (relative to the chunk), `+"`severity`"+`, `+"`rule_id`"+`, and `+"`suggestion`"+`.

If you cannot confirm any of the violations, you MUST return this exact JSON object:
%s

JSON Response:`, bad, chunk, emptyReviewJSON)}

	case len(rules.BadPractices) > 0:
		return Prompt{Temperature: ruleReviewTemperature, User: fmt.Sprintf(`You are a precise and discerning code review assistant. Your task is to carefully analyze a code snippet and determine if it violates any of the *potential* bad practices listed below. These rules were identified as potentially relevant through a semantic search, but they may not all be applicable.

**Potential Bad Practices to Evaluate:**
%s

**Good Practices to Follow (for context, not for flagging issues):**
%s

**Code to Review:**
`+"```"+`
%s
`+"```"+`

**Task:**
1.  **Critically evaluate** the 'Code to Review' against each of the 'Potential Bad Practices'.
2.  If you find a genuine violation, create a JSON object with the issue details (line number, severity, rule ID, suggestion).
3.  **Crucially, if the code does NOT violate any of the listed bad practices, you MUST return an empty list of issues.**

Your response MUST be a single, valid JSON object. If no violations are found, return this exact JSON object:
%s

JSON Response:`, bad, good, chunk, emptyReviewJSON)}

	default:
		return Prompt{Temperature: openReviewTemperature, User: fmt.Sprintf(`You are a highly intelligent SQL code review assistant. Your primary method of finding issues (rule-based retrieval) found no relevant rules for the following code.

Therefore, you must now rely entirely on your own extensive knowledge of SQL best practices, performance tuning, and security to conduct a thorough review. These sql codes are written by skilled employees, hence don't include basic tips as suggestions rather go into advanced sql techniques or suggestions.

**Code to Review:**
`+"```"+`
%s
`+"```"+`

**Task:**
1.  **Analyze the code creatively and critically.** Look for anti-patterns, performance bottlenecks (like correlated subqueries), or security risks that may not be in a standard rulebook.
2.  If you identify any issues, create a JSON object describing them.
3.  For each issue, provide **only** these three keys: `+"`line_number`"+` (relative to the chunk), `+"`severity`"+` (use the special value "%s"), and `+"`suggestion`"+`.
4.  **Do not include a `+"`rule_id`"+`.**

Your response MUST be a single, valid JSON object. If you find no issues, you MUST return this exact JSON object:
%s

JSON Response:`, chunk, models.SeverityAISuggestion, emptyReviewJSON)}
	}
}

func formatBadPractices(rules []models.MatchedRule) string {
	if len(rules) == 0 {
		return "None"
	}
	lines := make([]string, len(rules))
	for i, r := range rules {
		lines[i] = fmt.Sprintf("- %s (Rule ID: %d, Severity: %s): %s", r.Title, r.ID, r.Severity, r.Description)
	}
	return strings.Join(lines, "\n")
}

func formatGoodPractices(rules []models.MatchedRule) string {
	if len(rules) == 0 {
		return "None"
	}
	lines := make([]string, len(rules))
	for i, r := range rules {
		lines[i] = fmt.Sprintf("- %s (Rule ID: %d): %s", r.Title, r.ID, r.Description)
	}
	return strings.Join(lines, "\n")
}

// ---- Reply schema ----------------------------------------------------------

type reviewReply struct {
	IssuesFound *int          `json:"issues_found"`
	Issues      *[]issueReply `json:"issues"`
}

type issueReply struct {
	LineNumber json.RawMessage `json:"line_number"`
	Severity   string          `json:"severity"`
	RuleID     json.RawMessage `json:"rule_id"`
	Suggestion string          `json:"suggestion"`
}

// ParseReview extracts the outermost JSON object from reply and validates it:
// issues_found must be a non-negative integer, issues an array, and every
// issue needs a severity and a suggestion.
func ParseReview(reply string) (*models.ReviewResult, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, malformed("no JSON object in reply", reply)
	}

	var raw reviewReply
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, malformed(err.Error(), reply)
	}
	if raw.IssuesFound == nil || *raw.IssuesFound < 0 {
		return nil, malformed("issues_found missing or negative", reply)
	}
	if raw.Issues == nil {
		return nil, malformed("issues missing", reply)
	}

	out := &models.ReviewResult{IssuesFound: *raw.IssuesFound, Issues: []models.Issue{}}
	for i, is := range *raw.Issues {
		if strings.TrimSpace(is.Severity) == "" || strings.TrimSpace(is.Suggestion) == "" {
			return nil, malformed(fmt.Sprintf("issue %d lacks severity or suggestion", i), reply)
		}
		out.Issues = append(out.Issues, models.Issue{
			LineNumber: lenientInt(is.LineNumber),
			Severity:   is.Severity,
			RuleID:     ruleID(is.RuleID),
			Suggestion: is.Suggestion,
		})
	}
	return out, nil
}

// MalformedReplyError carries the raw reply of an unusable LLM answer.
type MalformedReplyError struct {
	Reason string
	Raw    string
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("%s: %s", models.ErrMalformedOutput, e.Reason)
}

func (e *MalformedReplyError) Unwrap() error { return models.ErrMalformedOutput }

func malformed(reason, raw string) error {
	return &MalformedReplyError{Reason: reason, Raw: raw}
}

// lenientInt accepts 3, 3.0 and "3"; anything else is 0.
func lenientInt(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// ruleID accepts a number or a numeric string; null, absent or other values
// mean no rule.
func ruleID(raw json.RawMessage) *int64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
