package model

import (
	"strings"
	"time"
)

// FieldElement is the input widget a form field renders as.
type FieldElement string

const (
	ElementInput    FieldElement = "input"
	ElementTextarea FieldElement = "textarea"
	ElementSelect   FieldElement = "select"
	ElementRadio    FieldElement = "radio"
	ElementCheckbox FieldElement = "checkbox"
	ElementDate     FieldElement = "date"
)

// Valid reports whether e is a known element.
func (e FieldElement) Valid() bool {
	switch e {
	case ElementInput, ElementTextarea, ElementSelect, ElementRadio, ElementCheckbox, ElementDate:
		return true
	}
	return false
}

// FormField is one admin-defined input of the registration form. FieldName is
// the userData key the value is submitted under and is unique across fields.
type FormField struct {
	ID           string       `json:"id"`
	FieldLabel   string       `json:"field_label"`
	FieldName    string       `json:"field_name"`
	FieldElement FieldElement `json:"field_element"`
	FieldType    string       `json:"field_type,omitempty"`
	Placeholder  string       `json:"placeholder,omitempty"`
	Required     bool         `json:"required"`
	Options      []string     `json:"options,omitempty"`
	Order        int          `json:"order"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// FormFieldRequest is the payload for creating or updating a form field.
type FormFieldRequest struct {
	FieldLabel   string       `json:"field_label"`
	FieldName    string       `json:"field_name"`
	FieldElement FieldElement `json:"field_element"`
	FieldType    string       `json:"field_type,omitempty"`
	Placeholder  string       `json:"placeholder,omitempty"`
	Required     bool         `json:"required"`
	Options      []string     `json:"options,omitempty"`
}

// FieldOrderItem is one entry of a reorder request; position in the list is
// the new order.
type FieldOrderItem struct {
	ID string `json:"id"`
}

// FieldNameCheckRequest asks whether a field name is free, ignoring ExcludeID.
type FieldNameCheckRequest struct {
	FieldName string `json:"field_name"`
	ExcludeID string `json:"exclude_id,omitempty"`
}

// FieldNameCheck is the result of a field-name availability check.
type FieldNameCheck struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

// NormalizeFieldName canonicalises a field name for uniqueness comparisons.
func NormalizeFieldName(name string) string {
	return strings.TrimSpace(name)
}
