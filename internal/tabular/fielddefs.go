package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

// Normalized column names.
const (
	ColColumnName    = "column_name"
	ColDataType      = "data_type"
	ColDescription   = "description"
	ColFormat        = "format"
	ColAllowedValues = "allowed_values"
	ColRequired      = "required"
	ColNotes         = "notes"
)

var dataDictColumns = map[string]string{
	"Column Name": ColColumnName,
	"Data Type":   ColDataType,
	"Description": ColDescription,
	"Format":      ColFormat,
	"Required":    ColRequired,
	"Notes":       ColNotes,
}

var domainModelColumns = map[string]string{
	"Column Name":             ColColumnName,
	"Data Type":               ColDataType,
	"Description":             ColDescription,
	"Allowed Values / Format": ColAllowedValues,
	"Required":                ColRequired,
	"Notes":                   ColNotes,
}

// Rows of a data dictionary whose column name contains one of these are
// explanatory text, not fields.
var instructionMarkers = []string{"instruction", "this table", "all fields", "for actual", "note:", "example"}

// ParseDataDictionary renames the spreadsheet headers, drops rows without a
// column name and drops instruction rows.
func ParseDataDictionary(t Table) ([]models.FieldDef, error) {
	defs, err := parseFieldDefs(t, dataDictColumns)
	if err != nil {
		return nil, err
	}
	kept := defs[:0]
	for _, d := range defs {
		if !isInstruction(d.ColumnName) {
			kept = append(kept, d)
		}
	}
	return kept, nil
}

// ParseDomainModel renames the spreadsheet headers and drops rows without a
// column name.
func ParseDomainModel(t Table) ([]models.FieldDef, error) {
	return parseFieldDefs(t, domainModelColumns)
}

func parseFieldDefs(t Table, renames map[string]string) ([]models.FieldDef, error) {
	t = renameHeaders(t, renames)
	if !t.Has(ColColumnName) {
		return nil, fmt.Errorf("%w: missing %q column (expected a \"Column Name\" header)", models.ErrInvalidInput, ColColumnName)
	}

	var defs []models.FieldDef
	for i := range t.Rows {
		name := strings.TrimSpace(t.Value(i, ColColumnName))
		if name == "" {
			continue
		}
		defs = append(defs, models.FieldDef{
			ColumnName:    name,
			DataType:      t.Value(i, ColDataType),
			Description:   t.Value(i, ColDescription),
			Format:        t.Value(i, ColFormat),
			AllowedValues: t.Value(i, ColAllowedValues),
			Required:      t.Value(i, ColRequired),
			Notes:         t.Value(i, ColNotes),
		})
	}
	return defs, nil
}

func renameHeaders(t Table, renames map[string]string) Table {
	headers := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		h = strings.TrimSpace(h)
		if to, ok := renames[h]; ok {
			h = to
		}
		headers[i] = h
	}
	return Table{Headers: headers, Rows: t.Rows}
}

func isInstruction(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range instructionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

var fieldDefHeaders = []string{ColColumnName, ColDataType, ColDescription, ColFormat, ColAllowedValues, ColRequired, ColNotes}

// WriteFieldDefs writes defs as normalized CSV.
func WriteFieldDefs(w io.Writer, defs []models.FieldDef) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fieldDefHeaders); err != nil {
		return err
	}
	for _, d := range defs {
		if err := cw.Write([]string{d.ColumnName, d.DataType, d.Description, d.Format, d.AllowedValues, d.Required, d.Notes}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFieldDefs reads normalized CSV written by WriteFieldDefs, or any CSV
// carrying a column_name (or "Column Name") header.
func ReadFieldDefs(r io.Reader) ([]models.FieldDef, error) {
	t, err := ReadCSV(r, 0)
	if err != nil {
		return nil, err
	}
	return parseFieldDefs(t, domainModelColumns)
}

// FieldDefsCSV renders defs as normalized CSV text.
func FieldDefsCSV(defs []models.FieldDef) string {
	var buf bytes.Buffer
	_ = WriteFieldDefs(&buf, defs)
	return buf.String()
}
