package extract

import (
	"context"
	"io"

	"docintake/internal/model"
)

// Package extract defines the contract the orchestrator expects from the
// external OCR/form-recognition provider and the mapping of its output into
// domain fields.

// Record kinds as reported by the provider. The mapper assigns a
// deterministic model.FieldType per kind.
const (
	KindLine      = "line"
	KindKeyValue  = "key_value"
	KindTableCell = "table_cell"
	KindFormField = "form_field"
)

// Field is one raw extracted record as returned by the provider.
type Field struct {
	Name        string   `json:"name"`
	Value       *string  `json:"value"`
	Kind        string   `json:"kind"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Page        *int     `json:"page,omitempty"`
	BoundingBox string   `json:"bounding_box,omitempty"`
	TableIndex  *int     `json:"table_index,omitempty"`
	RowIndex    *int     `json:"row_index,omitempty"`
	ColumnIndex *int     `json:"column_index,omitempty"`
}

// Result is a successful analysis outcome. An empty Fields slice is a valid
// result (e.g. a blank page) and is distinct from a provider failure.
type Result struct {
	Fields  []Field `json:"fields"`
	Summary string  `json:"summary,omitempty"`
}

// Provider converts document bytes into structured field data.
// Analyze must return a non-nil error for provider-side failures (timeout,
// transport error, malformed response); "zero fields found" is not a failure.
type Provider interface {
	Analyze(ctx context.Context, r io.Reader, mode model.ProcessingType) (*Result, error)
}
