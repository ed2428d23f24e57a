package repository

import (
	"context"

	"docintake/internal/model"
)

// FieldRepository defines data access for extracted document fields.
// Fields are bulk-created after a successful extraction pass and bulk-deleted
// at the start of a retry so attempts never accumulate.
type FieldRepository interface {
	// CreateBatch inserts all fields of one extraction pass.
	CreateBatch(ctx context.Context, fields []model.DocumentField) error

	// ListByDocument returns all fields of a document ordered by page and name.
	ListByDocument(ctx context.Context, documentID string) ([]model.DocumentField, error)

	// FindByID returns a single field by its ID.
	FindByID(ctx context.Context, id string) (*model.DocumentField, error)

	// Update persists a reviewer edit (value, verification state, notes).
	Update(ctx context.Context, f *model.DocumentField) error

	// DeleteByDocument removes every field of a document and returns the
	// number of rows removed.
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
}
