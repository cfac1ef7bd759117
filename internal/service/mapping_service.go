package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/config"
	"github.com/ahmednasr/mapping-assistant/internal/models"
)

// Mapping generation settings.
const (
	mappingTemperature = 0.1
	mappingMaxTokens   = 2000
	mappingSampleRows  = 5
	sampleValueMax     = 50
)

const mappingSystemPrompt = "You are a data mapping expert specializing in healthcare data. Always respond with valid JSON containing mappings and reasoning."

// ---- Repository contract ----

// MappingStore holds the current mapping set.
type MappingStore interface {
	All() models.MappingSet
	Set(field string, value models.MappingValue) error
	Merge(update models.MappingSet) error
	Clear() error
}

// MappingContext renders the uploaded data dictionary and domain model for
// the mapping prompt.
type MappingContext interface {
	BuildMappingContext() string
}

// MappingService saves user mappings and asks the LLM to propose new ones.
type MappingService struct {
	store   MappingStore
	profile config.Profile
	llm     LLM
	context MappingContext
	logger  *zap.Logger
}

// NewMappingService wires the store and profile. llm may be nil, in which
// case generation reports models.ErrLLMUnavailable.
func NewMappingService(store MappingStore, profile config.Profile, llm LLM, mctx MappingContext, logger *zap.Logger) *MappingService {
	return &MappingService{store: store, profile: profile, llm: llm, context: mctx, logger: logger.Named("mapping")}
}

// Profile returns the domain profile in use.
func (s *MappingService) Profile() config.Profile { return s.profile }

// Mappings returns the current mapping set.
func (s *MappingService) Mappings() models.MappingSet { return s.store.All() }

// Clear empties the mapping set.
func (s *MappingService) Clear() error { return s.store.Clear() }

// SaveMapping validates and stores one mapping. employerGroups takes an
// object, or a string holding a JSON object; every other field takes a
// mapping expression string.
func (s *MappingService) SaveMapping(field string, raw json.RawMessage) error {
	trimmed := strings.TrimSpace(string(raw))
	if field == "" || trimmed == "" || trimmed == "null" {
		return fmt.Errorf("%w: stage field and mapping expression are required", models.ErrInvalidInput)
	}

	if field == models.EmployerGroupsField {
		group, err := decodeEmployerGroup(raw)
		if err != nil {
			return fmt.Errorf("%w: invalid employer group object: %v", models.ErrInvalidInput, err)
		}
		return s.store.Set(field, models.Group(group))
	}

	var expr string
	if err := json.Unmarshal(raw, &expr); err != nil {
		return fmt.Errorf("%w: mapping expression must be a string", models.ErrInvalidInput)
	}
	if !ValidateExpression(expr) {
		return fmt.Errorf("%w: invalid mapping expression", models.ErrInvalidInput)
	}
	return s.store.Set(field, models.Expr(expr))
}

// decodeEmployerGroup accepts {"groupName": ...} or "{\"groupName\": ...}".
func decodeEmployerGroup(raw json.RawMessage) (models.EmployerGroup, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return models.EmployerGroup{}, fmt.Errorf("employer groups must be an object")
	}
	return models.EmployerGroupFromMap(m), nil
}

// GenerateMappings asks the LLM to map the uploaded source onto the stage
// fields, merges the normalized result into the store and returns it.
func (s *MappingService) GenerateMappings(ctx context.Context, src *models.SourceSnapshot) (*models.MappingProposal, error) {
	if src == nil || len(src.Headers) == 0 {
		return nil, models.ErrNoSource
	}
	if s.llm == nil {
		return nil, fmt.Errorf("%w: no llm configured", models.ErrLLMUnavailable)
	}

	s.logger.Info("generating mappings", zap.String("file", src.FileName), zap.Int("headers", len(src.Headers)))

	prompt := Prompt{
		System:      mappingSystemPrompt,
		User:        s.buildMappingPrompt(src),
		Temperature: mappingTemperature,
		MaxTokens:   mappingMaxTokens,
	}
	reply, err := s.llm.GenerateResponse(ctx, prompt)
	if err != nil {
		s.logger.Error("mapping generation failed", zap.Error(err))
		return nil, err
	}

	raw, reasoning := ParseMappingReply(reply)
	mappings := NormalizeMappings(raw, s.profile.StageFields)
	s.logger.Info("mapping reply parsed", zap.Int("proposed", len(raw)), zap.Int("kept", len(mappings)))

	if err := s.store.Merge(mappings); err != nil {
		return nil, fmt.Errorf("save generated mappings: %w", err)
	}
	return &models.MappingProposal{Mappings: mappings, Reasoning: reasoning}, nil
}

func (s *MappingService) buildMappingPrompt(src *models.SourceSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
You are a data mapping expert specializing in healthcare eligibility data transformation.
I need you to analyze source data and create precise field mappings to target stage fields.

SOURCE DATA STRUCTURE:
Headers: %s

SAMPLE DATA (showing patterns and data types):
%s

TARGET STAGE FIELDS (%s Domain):
%s

%s
MAPPING REQUIREMENTS:
1. Analyze field names for semantic similarity (e.g., FirstName -> memberFirst)
2. Consider data types and formats
3. Apply appropriate transformations for data quality:
   - Use Trim() to remove whitespace
   - Use Upper() for standardized text fields
   - Use proper date formatting for date fields
   - Use Concatenate() when combining fields makes sense
4. Only create mappings where there's clear correspondence
5. Prioritize data quality and standardization

RESPONSE FORMAT:
Respond with a JSON object containing:
{
    "mappings": {
        "memberFirst": "Upper(Trim(FirstName))",
        "memberLast": "Upper(Trim(LastName))",
        "mbrDOB": "DOB",
        "memberID": "MemberID"
    },
    "reasoning": "Brief explanation of mapping logic and decisions made"
}

Important: Only include mappings where you can confidently match source fields to stage fields based on semantic meaning and data compatibility.
`,
		strings.Join(src.Headers, ", "),
		formatSampleRows(src.Headers, src.Rows),
		s.profile.Name,
		strings.Join(s.profile.StageFields, ", "),
		s.functionsDoc(),
	)

	ctxText := "[ERROR] Could not parse context files: none uploaded"
	if s.context != nil {
		ctxText = s.context.BuildMappingContext()
	}
	fmt.Fprintf(&b, `
%s

INSTRUCTIONS:
You are an expert in US health care domain. Return ONLY a single JSON dictionary where each key is a stage field from the list below, and each value is the name of the most appropriate source field (from the source data) to map to that stage field.
For the field 'employerGroups', return an object with the following keys: groupName, groupStatus, addressLine1, addressLine2, zip. Each value should be the name of the most appropriate source field for that subfield. Example:

"employerGroups": {
    "groupName": "...",
    "groupStatus": "...",
    "addressLine1": "...",
    "addressLine2": "...",
    "zip": "..."
}

Do NOT include any transformation logic, mapping expressions, nested keys (except for employerGroups), reasoning, SQL scripts, or extra information.
Do NOT include a 'mappings' key, just the dictionary itself.
If a mapping is not possible, use an empty string as the value.
Stage fields: %s
`, ctxText, strings.Join(s.profile.StageFields, ", "))
	return b.String()
}

func (s *MappingService) functionsDoc() string {
	var b strings.Builder
	b.WriteString("\nAVAILABLE TRANSFORMATION FUNCTIONS:\n")
	for _, r := range s.profile.TransformationRules {
		sig := r.Signature
		if sig == "" {
			sig = r.Name + "(field)"
		}
		fmt.Fprintf(&b, "- %s - %s\n", sig, r.Description)
	}
	return b.String()
}

// formatSampleRows renders up to five rows as header/value pairs. Values
// longer than 50 characters are cut to 47 plus "...".
func formatSampleRows(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return "No sample data available"
	}
	lines := make([]string, 0, mappingSampleRows)
	for i, row := range rows {
		if i == mappingSampleRows {
			break
		}
		pairs := make([]string, len(headers))
		for j, h := range headers {
			v := ""
			if j < len(row) {
				v = row[j]
			}
			if r := []rune(v); len(r) > sampleValueMax {
				v = string(r[:sampleValueMax-3]) + "..."
			}
			pairs[j] = fmt.Sprintf("'%s': '%s'", h, v)
		}
		lines = append(lines, fmt.Sprintf("Row %d: {%s}", i+1, strings.Join(pairs, ", ")))
	}
	return strings.Join(lines, "\n")
}

// ParseMappingReply extracts the proposed mappings and the reasoning from an
// LLM reply. JSON replies may wrap the mappings in a "mappings" key or be the
// bare dictionary. Anything else falls back to reading "field: value" lines.
func ParseMappingReply(reply string) (map[string]any, string) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start >= 0 && end > start {
		var obj map[string]any
		if err := json.Unmarshal([]byte(reply[start:end+1]), &obj); err == nil {
			reasoning := "No reasoning provided"
			if r, ok := obj["reasoning"].(string); ok {
				reasoning = r
			}
			if inner, ok := obj["mappings"].(map[string]any); ok {
				return inner, reasoning
			}
			delete(obj, "reasoning")
			return obj, reasoning
		}
	}
	return mappingsFromText(reply), reasoningFromText(reply)
}

func mappingsFromText(text string) map[string]any {
	out := map[string]any{}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 2 {
			continue
		}
		field := strings.Trim(strings.TrimSpace(parts[0]), `"'`)
		value := strings.Trim(strings.Trim(strings.TrimSpace(parts[1]), `"'`), ",")
		if field != "" && value != "" && strings.ContainsFunc(field, unicode.IsLetter) {
			out[field] = value
		}
	}
	return out
}

func reasoningFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToLower(line), "reasoning") {
			if _, after, ok := strings.Cut(line, ":"); ok {
				return strings.TrimSpace(after)
			}
		}
	}
	return "Mappings generated based on field analysis"
}

// NormalizeMappings keeps the entries that name a stage field (compared
// case-insensitively) and rewrites them to the canonical field name.
// employerGroups may be an object or a JSON string; employer sub-fields
// given at the top level are folded into it and take precedence. Empty
// values are dropped so they never overwrite an existing mapping.
func NormalizeMappings(raw map[string]any, stageFields []string) models.MappingSet {
	canonical := make(map[string]string, len(stageFields))
	for _, f := range stageFields {
		canonical[strings.ToLower(strings.TrimSpace(f))] = f
	}
	groupField, hasGroup := canonical[strings.ToLower(models.EmployerGroupsField)]

	out := models.MappingSet{}
	var folded models.EmployerGroup
	foldedAny := false

	for k, v := range raw {
		norm := strings.ToLower(strings.TrimSpace(k))
		switch {
		case hasGroup && norm == strings.ToLower(models.EmployerGroupsField):
			if g, ok := employerGroupValue(v); ok {
				out[groupField] = models.Group(g)
			}
		case hasGroup && isEmployerGroupKey(k):
			s, _ := v.(string)
			if folded.Set(k, cleanValue(s)) {
				foldedAny = true
			}
		default:
			field, ok := canonical[norm]
			s, isString := v.(string)
			if !ok || !isString {
				continue
			}
			if s = cleanValue(s); s != "" {
				out[field] = models.Expr(s)
			}
		}
	}
	if foldedAny {
		out[groupField] = models.Group(folded)
	}
	return out
}

func employerGroupValue(v any) (models.EmployerGroup, bool) {
	switch t := v.(type) {
	case map[string]any:
		return models.EmployerGroupFromMap(t), true
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(t), &m); err == nil && m != nil {
			return models.EmployerGroupFromMap(m), true
		}
	}
	return models.EmployerGroup{}, false
}

func isEmployerGroupKey(k string) bool {
	for _, key := range models.EmployerGroupKeys {
		if k == key {
			return true
		}
	}
	return false
}

func cleanValue(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
