package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

const domainCSV = "Column Name,Data Type,Description\nmemberFirst,string,First name\nmbrDOB,date,Birth date\ngroupName,string,Employer\nplanID,,Plan\n"

func contextFilesWithDomain(t *testing.T) ContextFiles {
	t.Helper()
	files := NewContextFiles(t.TempDir())
	require.NoError(t, files.SaveDomainModel("domain.csv", strings.NewReader(domainCSV)))
	return files
}

func TestSQLType(t *testing.T) {
	tests := map[string]string{
		"string":   "VARCHAR(255)",
		"INT":      "INTEGER",
		"float":    "FLOAT",
		"Date":     "DATE",
		"datetime": "TIMESTAMP",
		"boolean":  "BOOLEAN",
		"decimal":  "VARCHAR(255)",
		"":         "VARCHAR(255)",
	}
	for in, want := range tests {
		assert.Equal(t, want, SQLType(in), in)
	}
}

func TestTemplateSQLGenerator(t *testing.T) {
	store := newMemMappings()
	store.set["memberFirst"] = models.Expr("FIRST_NM")
	store.set["employerGroups"] = models.Group(models.EmployerGroup{GroupName: "GRP_NM"})

	g := NewTemplateSQLGenerator(store, contextFilesWithDomain(t))
	chunks, err := g.Generate(context.Background(), SQLRequest{SourceTable: "silver.elig", OutputTable: "out_t"})
	require.NoError(t, err)
	require.Len(t, chunks, 8)

	assert.Equal(t, "-- 1. Create Domain Model Table", chunks[0])
	assert.Equal(t, "CREATE TABLE out_t (\n    memberFirst VARCHAR(255),\n    mbrDOB DATE,\n    groupName VARCHAR(255),\n    planID VARCHAR(255)\n);", chunks[1])
	assert.Equal(t, "", chunks[2])
	assert.Equal(t, "-- 2. Transform and Map Source Data", chunks[3])
	assert.Equal(t, "SELECT\n    TRIM(FIRST_NM) AS memberFirst,\n    mbrDOB AS mbrDOB,\n    TRIM(GRP_NM) AS groupName,\n    TRIM(planID) AS planID\nFROM silver.elig;", chunks[4])
	assert.Equal(t, "", chunks[5])
	assert.Equal(t, "-- 3. Unload/Export Data", chunks[6])
	assert.Equal(t, "UNLOAD ('SELECT * FROM out_t') TO '/tmp/unload/out_t/' CREDENTIALS 'aws_access_key_id=...;aws_secret_access_key=...' FORMAT AS PARQUET;", chunks[7])
}

func TestTemplateSQLGenerator_NoDomainModel(t *testing.T) {
	g := NewTemplateSQLGenerator(newMemMappings(), NewContextFiles(t.TempDir()))
	_, err := g.Generate(context.Background(), SQLRequest{SourceTable: "s", OutputTable: "o"})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestLLMSQLGenerator(t *testing.T) {
	samples := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(samples, "silver.elig.csv"), []byte("FIRST_NM\nAnn\nBob\n"), 0o644))

	store := newMemMappings()
	store.set["memberFirst"] = models.Expr("FIRST_NM")
	store.set["employerGroups"] = models.Group(models.EmployerGroup{Zip: "ZIP"})

	llm := &fakeLLM{replies: []string{"CREATE TABLE x (a INT);"}}
	g := NewLLMSQLGenerator(llm, store, contextFilesWithDomain(t), []string{filepath.Join(samples, "missing"), samples}, zap.NewNop())

	chunks, err := g.Generate(context.Background(), SQLRequest{SourceTable: "silver.elig", OutputTable: "o"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE TABLE x (a INT);"}, chunks)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0].User
	assert.Contains(t, prompt, "Source Table: silver.elig")
	assert.Contains(t, prompt, "Sample Source Data (first 20 rows):\nFIRST_NM\nAnn\nBob\n")
	assert.Contains(t, prompt, "Domain Model (full file):\ncolumn_name,")
	assert.Contains(t, prompt, "Source Data Dictionary (full file):\n[ERROR reading file:")
	assert.Contains(t, prompt, "Field Mappings:\n- employerGroups: {\"groupName\":\"\",\"groupStatus\":\"\",\"addressLine1\":\"\",\"addressLine2\":\"\",\"zip\":\"ZIP\"}\n- memberFirst: FIRST_NM\n")
}

func TestLLMSQLGenerator_NoSampleAndNoLLM(t *testing.T) {
	llm := &fakeLLM{replies: []string{"SELECT 1;"}}
	g := NewLLMSQLGenerator(llm, newMemMappings(), NewContextFiles(t.TempDir()), []string{t.TempDir()}, zap.NewNop())
	_, err := g.Generate(context.Background(), SQLRequest{SourceTable: "../../etc/passwd"})
	require.NoError(t, err)
	assert.NotContains(t, llm.prompts[0].User, "Sample Source Data")

	none := NewLLMSQLGenerator(nil, newMemMappings(), NewContextFiles(t.TempDir()), nil, zap.NewNop())
	_, err = none.Generate(context.Background(), SQLRequest{})
	assert.True(t, errors.Is(err, models.ErrLLMUnavailable))
}
