package repository

import (
	"context"
	"time"

	"docintake/internal/model"
)

// AuditRepository defines data access for the append-only audit log.
// Rows are inserted once and never mutated or deleted; the count queries
// back the write-time anomaly rules.
type AuditRepository interface {
	// Create appends one audit record.
	Create(ctx context.Context, entry *model.AuditLog) error

	// ListByEntity returns the full history for one entity, oldest first.
	// The history survives soft deletion of the entity it references.
	ListByEntity(ctx context.Context, entityType, entityID string) ([]model.AuditLog, error)

	// ListByUser returns a user's records within [from, to], newest first.
	ListByUser(ctx context.Context, userID string, from, to time.Time, pq PageQuery) (*PageResult[model.AuditLog], error)

	// ListAnomalies returns flagged records, newest first.
	ListAnomalies(ctx context.Context, pq PageQuery) (*PageResult[model.AuditLog], error)

	// CountByUserSince counts a user's records with timestamp >= since.
	CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error)

	// CountByUserActionSince counts a user's records for one action with timestamp >= since.
	CountByUserActionSince(ctx context.Context, userID, action string, since time.Time) (int, error)

	// CountFailedByUserSince counts a user's Failed-status records with timestamp >= since.
	CountFailedByUserSince(ctx context.Context, userID string, since time.Time) (int, error)
}
