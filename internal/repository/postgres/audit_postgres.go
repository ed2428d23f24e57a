package postgres

import (
	"context"
	"database/sql"
	"time"

	"docintake/internal/model"
	"docintake/internal/repository"
)

// AuditPostgres is a PostgreSQL implementation of repository.AuditRepository.
// The table is append-only: this type exposes no update or delete statements.
type AuditPostgres struct {
	db *sql.DB
}

// NewAuditPostgres creates a new AuditPostgres repository.
func NewAuditPostgres(db *sql.DB) *AuditPostgres {
	return &AuditPostgres{db: db}
}

var _ repository.AuditRepository = (*AuditPostgres)(nil)

const auditColumns = `id, ts, action, entity_type, entity_id, user_id, ip_address,
	user_agent, status, severity, description, details, is_anomaly, anomaly_reason`

func scanAuditLog(row docScanner) (*model.AuditLog, error) {
	var a model.AuditLog
	var userID, ipAddress, userAgent, description, details, anomalyReason sql.NullString
	if err := row.Scan(
		&a.ID,
		&a.Timestamp,
		&a.Action,
		&a.EntityType,
		&a.EntityID,
		&userID,
		&ipAddress,
		&userAgent,
		&a.Status,
		&a.Severity,
		&description,
		&details,
		&a.IsAnomaly,
		&anomalyReason,
	); err != nil {
		return nil, err
	}
	a.UserID = userID.String
	a.IPAddress = ipAddress.String
	a.UserAgent = userAgent.String
	a.Description = description.String
	a.Details = details.String
	a.AnomalyReason = anomalyReason.String
	return &a, nil
}

// Create appends one audit record.
func (r *AuditPostgres) Create(ctx context.Context, entry *model.AuditLog) error {
	const q = `
		INSERT INTO audit_logs (id, ts, action, entity_type, entity_id, user_id, ip_address,
			user_agent, status, severity, description, details, is_anomaly, anomaly_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, q,
		entry.ID,
		entry.Timestamp,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		nullStr(entry.UserID),
		nullStr(entry.IPAddress),
		nullStr(entry.UserAgent),
		entry.Status,
		entry.Severity,
		nullStr(entry.Description),
		nullStr(entry.Details),
		entry.IsAnomaly,
		nullStr(entry.AnomalyReason),
	)
	return err
}

// ListByEntity returns the full history of one entity, oldest first.
// Ties on ts are broken by the insertion sequence.
func (r *AuditPostgres) ListByEntity(ctx context.Context, entityType, entityID string) ([]model.AuditLog, error) {
	const q = `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY ts ASC, seq ASC
	`
	rows, err := r.db.QueryContext(ctx, q, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAuditLogs(rows)
}

// ListByUser returns a user's records within [from, to], newest first.
func (r *AuditPostgres) ListByUser(ctx context.Context, userID string, from, to time.Time, pq repository.PageQuery) (*repository.PageResult[model.AuditLog], error) {
	const qCount = `SELECT COUNT(*) FROM audit_logs WHERE user_id = $1 AND ts >= $2 AND ts <= $3`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, userID, from, to).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE user_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC, seq DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.db.QueryContext(ctx, qList, userID, from, to, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectAuditLogs(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.AuditLog]{Items: items, Total: total}, nil
}

// ListAnomalies returns flagged records, newest first.
func (r *AuditPostgres) ListAnomalies(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.AuditLog], error) {
	const qCount = `SELECT COUNT(*) FROM audit_logs WHERE is_anomaly = TRUE`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE is_anomaly = TRUE
		ORDER BY ts DESC, seq DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectAuditLogs(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.AuditLog]{Items: items, Total: total}, nil
}

func collectAuditLogs(rows *sql.Rows) ([]model.AuditLog, error) {
	items := make([]model.AuditLog, 0)
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CountByUserSince counts a user's records with ts >= since.
func (r *AuditPostgres) CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM audit_logs WHERE user_id = $1 AND ts >= $2`
	var n int
	err := r.db.QueryRowContext(ctx, q, userID, since).Scan(&n)
	return n, err
}

// CountByUserActionSince counts a user's records for one action with ts >= since.
func (r *AuditPostgres) CountByUserActionSince(ctx context.Context, userID, action string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM audit_logs WHERE user_id = $1 AND action = $2 AND ts >= $3`
	var n int
	err := r.db.QueryRowContext(ctx, q, userID, action, since).Scan(&n)
	return n, err
}

// CountFailedByUserSince counts a user's Failed-status records with ts >= since.
func (r *AuditPostgres) CountFailedByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM audit_logs WHERE user_id = $1 AND status = $2 AND ts >= $3`
	var n int
	err := r.db.QueryRowContext(ctx, q, userID, model.AuditStatusFailed, since).Scan(&n)
	return n, err
}
