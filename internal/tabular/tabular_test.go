package tabular

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

func TestReadCSV_SampleLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("\ufeffFirstName, LastName ,DOB\n")
	for i := 0; i < 15; i++ {
		b.WriteString("Ann,Lee,1990-01-01\n")
	}
	b.WriteString("short\n")

	tbl, err := ReadCSV(strings.NewReader(b.String()), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"FirstName", "LastName", "DOB"}, tbl.Headers)
	assert.Len(t, tbl.Rows, 10)

	all, err := ReadCSV(strings.NewReader(b.String()), 0)
	require.NoError(t, err)
	assert.Len(t, all.Rows, 16)
	assert.Equal(t, "", all.Value(15, "DOB"), "short rows read as empty cells")
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), 10)
	assert.Error(t, err)
}

func TestParseDataDictionary(t *testing.T) {
	tbl := Table{
		Headers: []string{" Column Name ", "Data Type", "Description", "Format"},
		Rows: [][]string{
			{"MBR_FST_NM", "string", "Member first name", ""},
			{"", "string", "orphan row", ""},
			{"Instructions: fill in every row", "", "", ""},
			{"NOTE: dates are UTC", "", "", ""},
			{"See example below", "", "", ""},
			{"MBR_DOB", "date", "Date of birth", "YYYY-MM-DD"},
		},
	}

	defs, err := ParseDataDictionary(tbl)
	require.NoError(t, err)
	assert.Equal(t, []models.FieldDef{
		{ColumnName: "MBR_FST_NM", DataType: "string", Description: "Member first name"},
		{ColumnName: "MBR_DOB", DataType: "date", Description: "Date of birth", Format: "YYYY-MM-DD"},
	}, defs)
}

func TestParseDomainModel(t *testing.T) {
	tbl := Table{
		Headers: []string{"Column Name", "Data Type", "Description", "Allowed Values / Format", "Required"},
		Rows: [][]string{
			{"memberFirst", "string", "First name", "", "Y"},
			{"mbrGender", "string", "Gender", "M, F, U", "Y"},
			{"example", "string", "kept: instruction filter is dictionary-only", "", ""},
		},
	}

	defs, err := ParseDomainModel(tbl)
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, "M, F, U", defs[1].AllowedValues)
	assert.Equal(t, "Y", defs[0].Required)
}

func TestParseFieldDefs_MissingColumnName(t *testing.T) {
	_, err := ParseDomainModel(Table{Headers: []string{"Field", "Type"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestFieldDefsRoundTripThroughCSV(t *testing.T) {
	defs := []models.FieldDef{
		{ColumnName: "ssn", DataType: "string", Description: "Social, security number"},
		{ColumnName: "planID", DataType: "string", AllowedValues: "P1|P2"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteFieldDefs(&buf, defs))

	back, err := ReadFieldDefs(&buf)
	require.NoError(t, err)
	assert.Equal(t, defs, back)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Column Name", "Data Type", "Description"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"MBR_ID", "string", "Member id"}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]any{"ELIG_EFF_DT", "date", "Effective date"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	tbl, err := Read(&buf, "Data Dictionary.XLSX")
	require.NoError(t, err)
	assert.Equal(t, []string{"Column Name", "Data Type", "Description"}, tbl.Headers)
	assert.Equal(t, [][]string{
		{"MBR_ID", "string", "Member id"},
		{"ELIG_EFF_DT", "date", "Effective date"},
	}, tbl.Rows)

	defs, err := ParseDataDictionary(tbl)
	require.NoError(t, err)
	assert.Len(t, defs, 2)
}

func TestRead_UnsupportedExtension(t *testing.T) {
	_, err := Read(strings.NewReader("x"), "notes.txt")
	assert.Error(t, err)
}
