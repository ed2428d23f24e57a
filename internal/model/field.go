package model

import "time"

// FieldType classifies an extracted field record.
type FieldType string

const (
	FieldTypeText         FieldType = "Text"
	FieldTypeKeyValuePair FieldType = "KeyValuePair"
	FieldTypeTableCell    FieldType = "TableCell"
	FieldTypeFormField    FieldType = "FormField"
)

// DocumentField is one extracted (name, value, confidence) tuple with
// positional metadata. Fields are exclusively owned by their parent document
// and are replaced wholesale on retry.
type DocumentField struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"document_id"`
	Name        string     `json:"name"`
	Value       *string    `json:"value"` // extraction may find a label with no value
	FieldType   FieldType  `json:"field_type"`
	Confidence  *float64   `json:"confidence,omitempty"` // nil means "provider reported none", not 0
	BoundingBox string     `json:"bounding_box,omitempty"`
	PageNumber  *int       `json:"page_number,omitempty"`
	ExtractedAt time.Time  `json:"extracted_at"`
	Source      string     `json:"source,omitempty"`
	IsVerified  bool       `json:"is_verified"`
	VerifiedBy  string     `json:"verified_by,omitempty"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}
