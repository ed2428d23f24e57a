package postgres

import (
	"context"
	"database/sql"
	"time"

	"docintake/internal/model"
	"docintake/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const docColumns = `id, file_name, file_type, file_size, container, blob_name, url,
	status, processing_type, uploaded_at, processed_at, last_modified_at,
	processing_result, error_message, retry_count, owner_id, project,
	description, category, is_public, is_deleted`

type docScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row docScanner) (*model.Document, error) {
	var d model.Document
	var processedAt sql.NullTime
	var processingType, url, processingResult, errorMessage, project, description, category sql.NullString
	if err := row.Scan(
		&d.ID,
		&d.FileName,
		&d.FileType,
		&d.FileSize,
		&d.Container,
		&d.BlobName,
		&url,
		&d.Status,
		&processingType,
		&d.UploadedAt,
		&processedAt,
		&d.LastModifiedAt,
		&processingResult,
		&errorMessage,
		&d.RetryCount,
		&d.OwnerID,
		&project,
		&description,
		&category,
		&d.IsPublic,
		&d.IsDeleted,
	); err != nil {
		return nil, err
	}
	if processedAt.Valid {
		t := processedAt.Time
		d.ProcessedAt = &t
	}
	d.URL = url.String
	d.ProcessingType = model.ProcessingType(processingType.String)
	d.ProcessingResult = processingResult.String
	d.ErrorMessage = errorMessage.String
	d.Project = project.String
	d.Description = description.String
	d.Category = category.String
	return &d, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, file_name, file_type, file_size, container, blob_name, url,
			status, processing_type, uploaded_at, processed_at, last_modified_at,
			processing_result, error_message, retry_count, owner_id, project,
			description, category, is_public, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING ` + docColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.FileName,
		doc.FileType,
		doc.FileSize,
		doc.Container,
		doc.BlobName,
		nullStr(doc.URL),
		doc.Status,
		nullStr(string(doc.ProcessingType)),
		doc.UploadedAt,
		nullTime(doc.ProcessedAt),
		doc.LastModifiedAt,
		nullStr(doc.ProcessingResult),
		nullStr(doc.ErrorMessage),
		doc.RetryCount,
		doc.OwnerID,
		nullStr(doc.Project),
		nullStr(doc.Description),
		nullStr(doc.Category),
		doc.IsPublic,
		doc.IsDeleted,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID, excluding soft-deleted rows.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
		SELECT ` + docColumns + `
		FROM documents
		WHERE id = $1 AND is_deleted = FALSE
	`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// ListByOwner returns an owner's documents with LIMIT/OFFSET pagination and a
// total count, optionally filtered by status. Soft-deleted rows are excluded.
func (r *DocumentPostgres) ListByOwner(ctx context.Context, ownerID string, status *model.Status, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	var total int
	var err error
	if status != nil {
		const qCount = `SELECT COUNT(*) FROM documents WHERE owner_id = $1 AND status = $2 AND is_deleted = FALSE`
		err = r.db.QueryRowContext(ctx, qCount, ownerID, *status).Scan(&total)
	} else {
		const qCount = `SELECT COUNT(*) FROM documents WHERE owner_id = $1 AND is_deleted = FALSE`
		err = r.db.QueryRowContext(ctx, qCount, ownerID).Scan(&total)
	}
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if status != nil {
		const qList = `
			SELECT ` + docColumns + `
			FROM documents
			WHERE owner_id = $1 AND status = $2 AND is_deleted = FALSE
			ORDER BY uploaded_at DESC, id DESC
			LIMIT $3 OFFSET $4
		`
		rows, err = r.db.QueryContext(ctx, qList, ownerID, *status, pq.Limit, pq.Offset)
	} else {
		const qList = `
			SELECT ` + docColumns + `
			FROM documents
			WHERE owner_id = $1 AND is_deleted = FALSE
			ORDER BY uploaded_at DESC, id DESC
			LIMIT $2 OFFSET $3
		`
		rows, err = r.db.QueryContext(ctx, qList, ownerID, pq.Limit, pq.Offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectDocuments(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

// ListByStatus returns documents in one lifecycle state, oldest first.
func (r *DocumentPostgres) ListByStatus(ctx context.Context, status model.Status, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents WHERE status = $1 AND is_deleted = FALSE`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, status).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + docColumns + `
		FROM documents
		WHERE status = $1 AND is_deleted = FALSE
		ORDER BY last_modified_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, status, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectDocuments(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

func collectDocuments(rows *sql.Rows) ([]model.Document, error) {
	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateFromStatus persists the mutable attributes of an existing document,
// guarded on the row still being in the expected lifecycle state. Identity
// attributes (file name, size, owner, storage location) are not touched.
// The guard keeps a finishing worker from resurrecting a document that a
// concurrent transition (e.g. a cancel) moved out from under it.
func (r *DocumentPostgres) UpdateFromStatus(ctx context.Context, doc *model.Document, from model.Status) (bool, error) {
	const q = `
		UPDATE documents
		SET status = $2,
			processing_type = $3,
			processed_at = $4,
			last_modified_at = $5,
			processing_result = $6,
			error_message = $7,
			retry_count = $8,
			project = $9,
			description = $10,
			category = $11,
			is_public = $12
		WHERE id = $1 AND status = $13 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, q,
		doc.ID,
		doc.Status,
		nullStr(string(doc.ProcessingType)),
		nullTime(doc.ProcessedAt),
		doc.LastModifiedAt,
		nullStr(doc.ProcessingResult),
		nullStr(doc.ErrorMessage),
		doc.RetryCount,
		nullStr(doc.Project),
		nullStr(doc.Description),
		nullStr(doc.Category),
		doc.IsPublic,
		from,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// TransitionStatus performs a conditional status update and reports whether
// this caller won the transition. The affected-row check is what makes the
// Uploaded -> Processing claim safe under concurrent Process calls.
func (r *DocumentPostgres) TransitionStatus(ctx context.Context, id string, from, to model.Status) (bool, error) {
	const q = `
		UPDATE documents
		SET status = $3, last_modified_at = now()
		WHERE id = $1 AND status = $2 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, q, id, from, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SoftDelete marks a document deleted. The row, its blob, and its audit
// history remain for compliance retention.
func (r *DocumentPostgres) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const q = `
		UPDATE documents
		SET is_deleted = TRUE, last_modified_at = $2
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, q, id, at)
	return err
}
