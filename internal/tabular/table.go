// Package tabular reads the spreadsheets users upload (CSV and XLSX) and
// normalizes data dictionaries and domain models into field definitions.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a header row plus data rows. Rows may be shorter than Headers.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Value returns the cell of row i under header name, or "".
func (t Table) Value(i int, name string) string {
	for j, h := range t.Headers {
		if h == name {
			if j < len(t.Rows[i]) {
				return t.Rows[i][j]
			}
			return ""
		}
	}
	return ""
}

// Has reports whether the table has a column called name.
func (t Table) Has(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// Head returns a copy with at most n data rows.
func (t Table) Head(n int) Table {
	if n < len(t.Rows) {
		return Table{Headers: t.Headers, Rows: t.Rows[:n]}
	}
	return t
}

// CSV renders the table as CSV text with a header line.
func (t Table) CSV() string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(t.Headers)
	_ = w.WriteAll(t.Rows)
	return buf.String()
}

// ReadCSV reads a CSV stream. The first record is the header row; at most
// maxRows data rows are kept (maxRows <= 0 keeps all).
func ReadCSV(r io.Reader, maxRows int) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, fmt.Errorf("empty CSV file")
	}
	if err != nil {
		return Table{}, fmt.Errorf("read CSV header: %w", err)
	}
	t := Table{Headers: trimAll(stripBOM(headers))}
	for maxRows <= 0 || len(t.Rows) < maxRows {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read CSV row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ReadXLSX reads the first sheet of a workbook. Leading empty rows are
// skipped; the first non-empty row is the header row.
func ReadXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	for len(rows) > 0 && isEmptyRow(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return Table{}, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	t := Table{Headers: trimAll(rows[0])}
	for _, row := range rows[1:] {
		if !isEmptyRow(row) {
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

// Read dispatches on the file extension of name.
func Read(r io.Reader, name string) (Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls", ".xlsm":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r, 0)
	default:
		return Table{}, fmt.Errorf("unsupported spreadsheet type %q", filepath.Ext(name))
	}
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func stripBOM(in []string) []string {
	if len(in) > 0 {
		in[0] = strings.TrimPrefix(in[0], "\ufeff")
	}
	return in
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
