package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EmployerGroupsField is the one composite stage field.
const EmployerGroupsField = "employerGroups"

// EmployerGroupKeys are the sub-fields of employerGroups, in output order.
var EmployerGroupKeys = []string{"groupName", "groupStatus", "addressLine1", "addressLine2", "zip"}

// EmployerGroup is the composite mapping for employerGroups. Every key is
// always present when serialized; unmapped keys are empty strings.
type EmployerGroup struct {
	GroupName    string `json:"groupName"`
	GroupStatus  string `json:"groupStatus"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	Zip          string `json:"zip"`
}

// EmployerGroupFromMap keeps the five known keys and drops the rest.
// Non-string values are rendered with %v.
func EmployerGroupFromMap(m map[string]any) EmployerGroup {
	get := func(k string) string {
		v, ok := m[k]
		if !ok || v == nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return EmployerGroup{
		GroupName:    get("groupName"),
		GroupStatus:  get("groupStatus"),
		AddressLine1: get("addressLine1"),
		AddressLine2: get("addressLine2"),
		Zip:          get("zip"),
	}
}

// Set assigns a sub-field by its JSON key. Unknown keys are ignored.
func (g *EmployerGroup) Set(key, value string) bool {
	switch key {
	case "groupName":
		g.GroupName = value
	case "groupStatus":
		g.GroupStatus = value
	case "addressLine1":
		g.AddressLine1 = value
	case "addressLine2":
		g.AddressLine2 = value
	case "zip":
		g.Zip = value
	default:
		return false
	}
	return true
}

// MappingValue is either a plain expression or an employer group object.
type MappingValue struct {
	Expression string
	Group      *EmployerGroup
}

// Expr wraps a plain mapping expression.
func Expr(s string) MappingValue { return MappingValue{Expression: s} }

// Group wraps an employer group mapping.
func Group(g EmployerGroup) MappingValue { return MappingValue{Group: &g} }

func (v MappingValue) MarshalJSON() ([]byte, error) {
	if v.Group != nil {
		return json.Marshal(v.Group)
	}
	return json.Marshal(v.Expression)
}

func (v *MappingValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
		g := EmployerGroupFromMap(m)
		*v = MappingValue{Group: &g}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("mapping value must be a string or object: %w", err)
	}
	*v = MappingValue{Expression: s}
	return nil
}

// MappingSet maps stage field names to their source mapping.
type MappingSet map[string]MappingValue

// Clone returns a shallow copy safe to hand to callers.
func (m MappingSet) Clone() MappingSet {
	out := make(MappingSet, len(m))
	for k, v := range m {
		if v.Group != nil {
			g := *v.Group
			v.Group = &g
		}
		out[k] = v
	}
	return out
}

// SourceSnapshot is the header row and a small sample of an uploaded source file.
type SourceSnapshot struct {
	FileName string     `json:"file_name"`
	Headers  []string   `json:"headers"`
	Rows     [][]string `json:"rows"`
}

// FieldDef is one normalized row of a data dictionary or domain model.
type FieldDef struct {
	ColumnName    string `json:"column_name"`
	DataType      string `json:"data_type"`
	Description   string `json:"description"`
	Format        string `json:"format,omitempty"`
	AllowedValues string `json:"allowed_values,omitempty"`
	Required      string `json:"required,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// MappingProposal is the validated reply of the mapping LLM.
type MappingProposal struct {
	Mappings  MappingSet `json:"mappings"`
	Reasoning string     `json:"reasoning"`
}
