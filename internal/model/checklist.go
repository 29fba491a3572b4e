package model

import "strings"

// FieldType is the form control a checklist question renders as.
type FieldType string

// Supported field types. Values are case-sensitive on the wire.
const (
	FieldTextArea   FieldType = "textArea"
	FieldTextField  FieldType = "textField"
	FieldDate       FieldType = "date"
	FieldTime       FieldType = "time"
	FieldDateTime   FieldType = "dateTime"
	FieldDropdown   FieldType = "dropdown"
	FieldCheckbox   FieldType = "checkbox"
	FieldRadio      FieldType = "radio"
	FieldMultiImage FieldType = "multiImage"
	FieldSignature  FieldType = "signature"
	FieldHeader     FieldType = "header"
)

// DefaultFieldType is used when the extracted type is missing or unknown.
const DefaultFieldType = FieldTextField

// FieldTypes lists every supported field type in display order.
var FieldTypes = []FieldType{
	FieldTextArea,
	FieldTextField,
	FieldDate,
	FieldTime,
	FieldDateTime,
	FieldDropdown,
	FieldCheckbox,
	FieldRadio,
	FieldMultiImage,
	FieldSignature,
	FieldHeader,
}

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// LookupFieldType matches s against the supported types ignoring case.
// exact is false when s only matched after case folding.
func LookupFieldType(s string) (ft FieldType, exact bool, ok bool) {
	s = strings.TrimSpace(s)
	for _, t := range FieldTypes {
		if string(t) == s {
			return t, true, true
		}
	}
	for _, t := range FieldTypes {
		if strings.EqualFold(string(t), s) {
			return t, false, true
		}
	}
	return "", false, false
}

// FieldTypeNames returns the supported types as plain strings.
func FieldTypeNames() []string {
	out := make([]string, len(FieldTypes))
	for i, t := range FieldTypes {
		out[i] = string(t)
	}
	return out
}

// ChecklistItem is one typed form-field descriptor extracted from a
// checklist row.
type ChecklistItem struct {
	ID               int       `json:"id" yaml:"id"`
	Question         string    `json:"question" yaml:"question"`
	Type             FieldType `json:"type" yaml:"type"`
	Options          string    `json:"options" yaml:"options"`
	Required         bool      `json:"required" yaml:"required"`
	IsDependent      bool      `json:"isDependent" yaml:"isDependent"`
	DependentOn      string    `json:"dependentOn" yaml:"dependentOn"`
	DependentOptions string    `json:"dependentOptions" yaml:"dependentOptions"`
}
