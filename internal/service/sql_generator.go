package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/models"
	"github.com/ahmednasr/mapping-assistant/internal/tabular"
)

// Generator names accepted by SQL_GENERATOR.
const (
	SQLGeneratorLLM      = "llm"
	SQLGeneratorTemplate = "template"
)

const (
	sqlSampleRows     = 20
	defaultUnloadPath = "/tmp/unload/"
)

// SQLRequest names the tables a generated script reads and writes.
type SQLRequest struct {
	SourceTable string
	OutputTable string
}

// SQLScriptGenerator turns the current mappings into SQL script chunks.
type SQLScriptGenerator interface {
	Generate(ctx context.Context, req SQLRequest) ([]string, error)
}

// ---- LLM generator ---------------------------------------------------------

// LLMSQLGenerator asks the LLM to write the whole script.
type LLMSQLGenerator struct {
	llm        LLM
	mappings   MappingStore
	files      ContextFiles
	sampleDirs []string
	logger     *zap.Logger
}

// NewLLMSQLGenerator looks for source samples named after the source table
// in sampleDirs, in order.
func NewLLMSQLGenerator(llm LLM, mappings MappingStore, files ContextFiles, sampleDirs []string, logger *zap.Logger) *LLMSQLGenerator {
	return &LLMSQLGenerator{llm: llm, mappings: mappings, files: files, sampleDirs: sampleDirs, logger: logger.Named("sql")}
}

// Generate returns the LLM reply as a single chunk.
func (g *LLMSQLGenerator) Generate(ctx context.Context, req SQLRequest) ([]string, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: no llm configured", models.ErrLLMUnavailable)
	}
	dataDict, domain := g.files.RawTexts()
	sample := g.sourceSample(req.SourceTable)
	prompt := BuildSQLPrompt(req.SourceTable, g.mappings.All(), dataDict, domain, sample)
	g.logger.Debug("sql prompt built", zap.String("source_table", req.SourceTable), zap.Bool("sample", sample != ""))

	reply, err := g.llm.GenerateResponse(ctx, Prompt{User: prompt})
	if err != nil {
		return nil, err
	}
	return []string{reply}, nil
}

// sourceSample returns the first rows of <table>.csv, .xlsx or .xls from the
// first sample directory that has one, or "".
func (g *LLMSQLGenerator) sourceSample(table string) string {
	name := filepath.Base(table)
	for _, dir := range g.sampleDirs {
		for _, ext := range []string{".csv", ".xlsx", ".xls"} {
			file := name
			if !strings.HasSuffix(strings.ToLower(name), ext) {
				file = name + ext
			}
			f, err := os.Open(filepath.Join(dir, file))
			if err != nil {
				continue
			}
			t, err := tabular.Read(f, file)
			f.Close()
			if err != nil {
				g.logger.Warn("unreadable source sample", zap.String("file", file), zap.Error(err))
				continue
			}
			return t.Head(sqlSampleRows).CSV()
		}
	}
	return ""
}

// BuildSQLPrompt assembles the script-writing prompt.
func BuildSQLPrompt(sourceTable string, mappings models.MappingSet, dataDict, domain, sample string) string {
	sampleText := ""
	if sample != "" {
		sampleText = fmt.Sprintf("\nSample Source Data (first %d rows):\n%s\n", sqlSampleRows, sample)
	}
	return fmt.Sprintf(`
You are a US health care data analyst who is an expert in writing SQL scripts for US health care data standardization. Given the following context, generate all SQL scripts (including any necessary imports, table creation, transformation, mapping, and unload/export statements) to transform and standardize data from the source table to the domain model.

Source Table: %s
%s
Source Data Dictionary (full file):
%s

Domain Model (full file):
%s

Field Mappings:
%s

Requirements:
- Generate all necessary SQL scripts to:
    1. Create the domain model table with correct data types.
    2. Transform and standardize data from the source table, including any required trims, type casts, and value mappings.
    3. Map source fields to domain model fields as per the mappings.
    4. Standardize outputs as per the data dictionary.
    5. Include any necessary SQL imports or setup statements for the target platform (e.g., Snowflake, Redshift, BigQuery, etc.).
    6. Provide an unload/export statement to export the final table.
- Output the SQL scripts in logical, well-commented blocks. Create full separate codes for each transformation.
- Do not include any explanations or extra text, only the SQL code and comments.
`, sourceTable, sampleText, dataDict, domain, formatMappingLines(mappings))
}

func formatMappingLines(mappings models.MappingSet) string {
	keys := make([]string, 0, len(mappings))
	for k := range mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v := mappings[k]
		text := v.Expression
		if v.Group != nil {
			b, _ := json.Marshal(v.Group)
			text = string(b)
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", k, text))
	}
	return strings.Join(lines, "\n")
}

// ---- Template generator ----------------------------------------------------

// TemplateSQLGenerator builds the script from the domain model without an LLM.
type TemplateSQLGenerator struct {
	mappings   MappingStore
	files      ContextFiles
	unloadPath string
}

// NewTemplateSQLGenerator reads the domain model uploaded through files.
func NewTemplateSQLGenerator(mappings MappingStore, files ContextFiles) *TemplateSQLGenerator {
	return &TemplateSQLGenerator{mappings: mappings, files: files, unloadPath: defaultUnloadPath}
}

// Generate returns create, transform and unload sections, each preceded by a
// comment header and separated by blank chunks.
func (g *TemplateSQLGenerator) Generate(_ context.Context, req SQLRequest) ([]string, error) {
	domain, err := readFieldDefsFile(g.files.DomainModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: domain model: %v", models.ErrInvalidInput, err)
	}
	mappings := g.mappings.All()
	return []string{
		"-- 1. Create Domain Model Table",
		CreateTableSQL(domain, req.OutputTable),
		"",
		"-- 2. Transform and Map Source Data",
		TransformSelectSQL(domain, mappings, req.SourceTable),
		"",
		"-- 3. Unload/Export Data",
		UnloadSQL(req.OutputTable, g.unloadPath),
	}, nil
}

var sqlTypes = map[string]string{
	"string":   "VARCHAR(255)",
	"int":      "INTEGER",
	"float":    "FLOAT",
	"date":     "DATE",
	"datetime": "TIMESTAMP",
	"boolean":  "BOOLEAN",
}

// SQLType maps a domain model data type to a column type. Unknown types
// become VARCHAR(255).
func SQLType(dataType string) string {
	if t, ok := sqlTypes[strings.ToLower(strings.TrimSpace(dataType))]; ok {
		return t
	}
	return "VARCHAR(255)"
}

func domainType(d models.FieldDef) string {
	if t := strings.ToLower(strings.TrimSpace(d.DataType)); t != "" {
		return t
	}
	return "string"
}

// CreateTableSQL declares one column per domain model field.
func CreateTableSQL(domain []models.FieldDef, table string) string {
	cols := make([]string, len(domain))
	for i, d := range domain {
		cols[i] = fmt.Sprintf("    %s %s", d.ColumnName, SQLType(domainType(d)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", table, strings.Join(cols, ",\n"))
}

// TransformSelectSQL selects every domain field from its mapped source.
// Unmapped fields select the column of the same name, employer group
// sub-fields come from the employerGroups mapping, and string fields are
// trimmed.
func TransformSelectSQL(domain []models.FieldDef, mappings models.MappingSet, sourceTable string) string {
	lines := make([]string, len(domain))
	for i, d := range domain {
		src := sourceFor(d.ColumnName, mappings)
		if domainType(d) == "string" {
			lines[i] = fmt.Sprintf("TRIM(%s) AS %s", src, d.ColumnName)
		} else {
			lines[i] = fmt.Sprintf("%s AS %s", src, d.ColumnName)
		}
	}
	return fmt.Sprintf("SELECT\n    %s\nFROM %s;", strings.Join(lines, ",\n    "), sourceTable)
}

func sourceFor(field string, mappings models.MappingSet) string {
	if v, ok := mappings[field]; ok && v.Group == nil && v.Expression != "" {
		return v.Expression
	}
	if v, ok := mappings[models.EmployerGroupsField]; ok && v.Group != nil {
		raw, _ := json.Marshal(v.Group)
		var sub map[string]string
		if json.Unmarshal(raw, &sub) == nil && sub[field] != "" {
			return sub[field]
		}
	}
	return field
}

// UnloadSQL exports table as Parquet under path.
func UnloadSQL(table, path string) string {
	return fmt.Sprintf("UNLOAD ('SELECT * FROM %s') TO '%s%s/' CREDENTIALS 'aws_access_key_id=...;aws_secret_access_key=...' FORMAT AS PARQUET;", table, path, table)
}
