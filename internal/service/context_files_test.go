package service

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

func xlsxBytes(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		row := row
		require.NoError(t, f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestContextFiles_MappingContext(t *testing.T) {
	files := NewContextFiles(t.TempDir())

	dict := [][]any{{"Column Name", "Data Type", "Description"}}
	for i := 0; i < 25; i++ {
		dict = append(dict, []any{fmt.Sprintf("COL_%02d", i), "string", "source column"})
	}
	dict = append(dict, []any{"Instruction: ignore this row", "", ""})
	require.NoError(t, files.SaveDataDictionary("dict.xlsx", bytes.NewReader(xlsxBytes(t, dict...))))

	domain := "Column Name,Data Type,Description,Allowed Values / Format\nmemberFirst,string,First name,\nmbrGender,string,Gender,\"M,F\"\n"
	require.NoError(t, files.SaveDomainModel("domain.csv", strings.NewReader(domain)))

	text := files.BuildMappingContext()
	assert.True(t, strings.HasPrefix(text, "SOURCE DATA COLUMNS (sample):\n- COL_00 (string): source column\n"))
	assert.Contains(t, text, "- COL_19 (string)")
	assert.NotContains(t, text, "COL_20")
	assert.NotContains(t, text, "Instruction")
	assert.Contains(t, text, "\nTARGET DOMAIN MODEL:\n- memberFirst (string): First name\n- mbrGender (string): Gender\n")
	assert.True(t, strings.HasSuffix(text, "\nTASK: Map each source field to the most appropriate stage field."))

	dictDefs, domainDefs, err := files.FieldDefs()
	require.NoError(t, err)
	assert.Len(t, dictDefs, 25)
	assert.Equal(t, "M,F", domainDefs[1].AllowedValues)
}

func TestContextFiles_MissingFilesGiveErrorMarker(t *testing.T) {
	files := NewContextFiles(t.TempDir())
	text := files.BuildMappingContext()
	assert.True(t, strings.HasPrefix(text, "[ERROR] Could not parse context files:"))

	dict, domain := files.RawTexts()
	assert.True(t, strings.HasPrefix(dict, "[ERROR reading file:"))
	assert.True(t, strings.HasPrefix(domain, "[ERROR reading file:"))
}

func TestContextFiles_PlainTextKeptVerbatim(t *testing.T) {
	files := NewContextFiles(t.TempDir())
	require.NoError(t, files.SaveDataDictionary("notes.txt", strings.NewReader("free form notes")))

	raw, err := os.ReadFile(files.DataDictPath)
	require.NoError(t, err)
	assert.Equal(t, "free form notes", string(raw))
}

func TestContextFiles_SpreadsheetWithoutColumnName(t *testing.T) {
	files := NewContextFiles(t.TempDir())
	err := files.SaveDomainModel("domain.xlsx", bytes.NewReader(xlsxBytes(t, []any{"Field", "Type"}, []any{"a", "b"})))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	err = files.SaveDomainModel("broken.xlsx", strings.NewReader("not a workbook"))
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}
