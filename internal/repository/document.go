package repository

import (
	"context"
	"time"

	"docintake/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here — strictly persistence operations. Every read path
// excludes soft-deleted rows.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID. Soft-deleted rows are not found.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// ListByOwner returns a paginated list of an owner's documents,
	// optionally filtered by status.
	ListByOwner(ctx context.Context, ownerID string, status *model.Status, pq PageQuery) (*PageResult[model.Document], error)

	// ListByStatus returns documents in a given lifecycle state, oldest
	// first, for scheduled sweeps (e.g. re-triggering failed documents).
	ListByStatus(ctx context.Context, status model.Status, pq PageQuery) (*PageResult[model.Document], error)

	// UpdateFromStatus persists the mutable attributes of a document only
	// while the row is still in the expected lifecycle state, reporting
	// whether the write applied. Like TransitionStatus, losing the race is
	// not an error.
	UpdateFromStatus(ctx context.Context, doc *model.Document, from model.Status) (bool, error)

	// TransitionStatus performs a conditional status update
	// (WHERE status = from) and reports whether this caller claimed the
	// transition. Losing a race is not an error.
	TransitionStatus(ctx context.Context, id string, from, to model.Status) (bool, error)

	// SoftDelete marks a document deleted without removing the row.
	SoftDelete(ctx context.Context, id string, at time.Time) error
}
