package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TransformationRule is one entry of the transformation catalogue shown to
// users and described to the mapping LLM.
type TransformationRule struct {
	Name        string `yaml:"name"        json:"name"`
	Syntax      string `yaml:"syntax"      json:"syntax"`
	Signature   string `yaml:"signature"   json:"signature"`
	Description string `yaml:"description" json:"description"`
}

// Profile describes the target domain the mapping app works against.
type Profile struct {
	Name                string               `yaml:"name"`
	StageFields         []string             `yaml:"stage_fields"`
	TransformationRules []TransformationRule `yaml:"transformation_rules"`
	DefaultSourceTable  string               `yaml:"default_source_table"`
	DefaultOutputTable  string               `yaml:"default_output_table"`
}

// EligibilityProfile is the built-in member eligibility domain.
func EligibilityProfile() Profile {
	return Profile{
		Name: "Eligibility",
		StageFields: []string{
			"memberFirst",
			"memberLast",
			"mbrDOB",
			"mbrGender",
			"ssn",
			"memberID",
			"enrollmentStatus",
			"enrollmentEffectiveDate",
			"terminationDate",
			"planID",
			"product",
			"lob",
			"memberMonth",
			"dualEligibilityInd",
			"coverageDesc",
			"employerGroups",
		},
		TransformationRules: []TransformationRule{
			{Name: "Trim", Syntax: "strip()", Signature: "Trim(field)", Description: "Remove leading/trailing spaces"},
			{Name: "Upper", Syntax: "upper()", Signature: "Upper(field)", Description: "Convert to uppercase"},
			{Name: "Lower", Syntax: "lower()", Signature: "Lower(field)", Description: "Convert to lowercase"},
			{Name: "Title", Syntax: "title()", Signature: "Title(field)", Description: "Convert to title case"},
			{Name: "Left", Syntax: "left(n)", Signature: "Left(field, n)", Description: "Get leftmost n characters"},
			{Name: "Right", Syntax: "right(n)", Signature: "Right(field, n)", Description: "Get rightmost n characters"},
			{Name: "Substring", Syntax: "substring(start, length)", Signature: "Substring(field, start, length)", Description: "Extract substring"},
			{Name: "Replace", Syntax: "replace(old, new)", Signature: "Replace(field, old_value, new_value)", Description: "Replace text"},
			{Name: "Concatenate", Syntax: "concatenate(field1, field2)", Signature: "Concatenate(field1, field2, ...)", Description: "Combine fields"},
			{Name: "DateFormat", Syntax: "date_format(format)", Signature: "DateFormat(field)", Description: "Format dates"},
			{Name: "IsNull", Syntax: "is_null()", Signature: "IsNull(field)", Description: "Check for null values"},
			{Name: "NotNull", Syntax: "not_null()", Signature: "NotNull(field)", Description: "Check for non-null values"},
			{Name: "Length", Syntax: "length()", Signature: "Length(field)", Description: "Get field length"},
			{Name: "Contains", Syntax: "contains(substring)", Signature: "Contains(field)", Description: "Check if contains substring"},
		},
		DefaultSourceTable: "silver.elig",
		DefaultOutputTable: "output_Table",
	}
}

// LoadProfile reads a YAML profile. An empty path yields the built-in
// eligibility profile; fields missing from the file keep the built-in values.
func LoadProfile(path string) (Profile, error) {
	p := EligibilityProfile()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read mapping profile: %w", err)
	}
	var override Profile
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return Profile{}, fmt.Errorf("parse mapping profile %s: %w", path, err)
	}
	if override.Name != "" {
		p.Name = override.Name
	}
	if len(override.StageFields) > 0 {
		p.StageFields = override.StageFields
	}
	if len(override.TransformationRules) > 0 {
		p.TransformationRules = override.TransformationRules
	}
	if override.DefaultSourceTable != "" {
		p.DefaultSourceTable = override.DefaultSourceTable
	}
	if override.DefaultOutputTable != "" {
		p.DefaultOutputTable = override.DefaultOutputTable
	}
	return p, nil
}

// RuleCatalogue returns the transformation rules keyed by name with their
// short syntax, the shape the UI renders.
func (p Profile) RuleCatalogue() map[string]string {
	out := make(map[string]string, len(p.TransformationRules))
	for _, r := range p.TransformationRules {
		out[r.Name] = r.Syntax
	}
	return out
}
