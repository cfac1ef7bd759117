package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahmednasr/mapping-assistant/internal/models"
	"github.com/ahmednasr/mapping-assistant/internal/tabular"
)

// Rows of the data dictionary shown to the mapping LLM.
const contextDataDictRows = 20

// ContextFiles stores the uploaded data dictionary and domain model in
// normalized form and renders them as LLM context.
type ContextFiles struct {
	DataDictPath    string
	DomainModelPath string
}

// NewContextFiles places both files under uploadDir.
func NewContextFiles(uploadDir string) ContextFiles {
	return ContextFiles{
		DataDictPath:    filepath.Join(uploadDir, "context", "data_dict.txt"),
		DomainModelPath: filepath.Join(uploadDir, "domain", "domain_model.txt"),
	}
}

// SaveDataDictionary stores an uploaded data dictionary. Spreadsheets are
// normalized to CSV; any other file is kept as plain text.
func (c ContextFiles) SaveDataDictionary(name string, r io.Reader) error {
	return saveContextFile(c.DataDictPath, name, r, tabular.ParseDataDictionary)
}

// SaveDomainModel stores an uploaded domain model the same way.
func (c ContextFiles) SaveDomainModel(name string, r io.Reader) error {
	return saveContextFile(c.DomainModelPath, name, r, tabular.ParseDomainModel)
}

func saveContextFile(dst, name string, r io.Reader, parse func(tabular.Table) ([]models.FieldDef, error)) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	var out []byte
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		t, err := tabular.ReadXLSX(r)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		defs, err := parse(t)
		if err != nil {
			return err
		}
		out = []byte(tabular.FieldDefsCSV(defs))
	case ".csv":
		t, err := tabular.ReadCSV(r, 0)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		if defs, err := parse(t); err == nil {
			out = []byte(tabular.FieldDefsCSV(defs))
		} else {
			out = []byte(t.CSV())
		}
	default:
		raw, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read upload: %w", err)
		}
		out = raw
	}

	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(dst), err)
	}
	return nil
}

// BuildMappingContext renders both files for the mapping prompt. When either
// file is missing or unusable the context is a single [ERROR] line, and
// generation still proceeds without it.
func (c ContextFiles) BuildMappingContext() string {
	dataDict, err := readFieldDefsFile(c.DataDictPath)
	if err != nil {
		return fmt.Sprintf("[ERROR] Could not parse context files: %v", err)
	}
	domain, err := readFieldDefsFile(c.DomainModelPath)
	if err != nil {
		return fmt.Sprintf("[ERROR] Could not parse context files: %v", err)
	}
	return FormatMappingContext(dataDict, domain)
}

// FormatMappingContext lists a sample of source columns and every target field.
func FormatMappingContext(dataDict, domain []models.FieldDef) string {
	var b strings.Builder
	b.WriteString("SOURCE DATA COLUMNS (sample):\n")
	for i, d := range dataDict {
		if i == contextDataDictRows {
			break
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", d.ColumnName, d.DataType, d.Description)
	}
	b.WriteString("\nTARGET DOMAIN MODEL:\n")
	for _, d := range domain {
		fmt.Fprintf(&b, "- %s (%s): %s\n", d.ColumnName, d.DataType, d.Description)
	}
	b.WriteString("\nTASK: Map each source field to the most appropriate stage field.")
	return b.String()
}

// FieldDefs loads both normalized files.
func (c ContextFiles) FieldDefs() (dataDict, domain []models.FieldDef, err error) {
	if dataDict, err = readFieldDefsFile(c.DataDictPath); err != nil {
		return nil, nil, err
	}
	if domain, err = readFieldDefsFile(c.DomainModelPath); err != nil {
		return nil, nil, err
	}
	return dataDict, domain, nil
}

// RawTexts returns the stored files verbatim, or an error marker in place of
// a file that cannot be read.
func (c ContextFiles) RawTexts() (dataDict, domain string) {
	return readTextOrMarker(c.DataDictPath), readTextOrMarker(c.DomainModelPath)
}

func readFieldDefsFile(path string) ([]models.FieldDef, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s has not been uploaded", filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}
	return tabular.ReadFieldDefs(bytes.NewReader(raw))
}

func readTextOrMarker(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("[ERROR reading file: %v]", err)
	}
	return string(raw)
}
