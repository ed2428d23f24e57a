package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"docintake/internal/model"
	"docintake/internal/repository"
)

// FieldPostgres is a PostgreSQL implementation of repository.FieldRepository.
type FieldPostgres struct {
	db *sql.DB
}

// NewFieldPostgres creates a new FieldPostgres repository.
func NewFieldPostgres(db *sql.DB) *FieldPostgres {
	return &FieldPostgres{db: db}
}

var _ repository.FieldRepository = (*FieldPostgres)(nil)

const fieldColumns = `id, document_id, name, value, field_type, confidence, bounding_box,
	page_number, extracted_at, source, is_verified, verified_by, verified_at, notes`

func scanField(row docScanner) (*model.DocumentField, error) {
	var f model.DocumentField
	var value, boundingBox, source, verifiedBy, notes sql.NullString
	var confidence sql.NullFloat64
	var page sql.NullInt64
	var verifiedAt sql.NullTime
	if err := row.Scan(
		&f.ID,
		&f.DocumentID,
		&f.Name,
		&value,
		&f.FieldType,
		&confidence,
		&boundingBox,
		&page,
		&f.ExtractedAt,
		&source,
		&f.IsVerified,
		&verifiedBy,
		&verifiedAt,
		&notes,
	); err != nil {
		return nil, err
	}
	if value.Valid {
		v := value.String
		f.Value = &v
	}
	if confidence.Valid {
		c := confidence.Float64
		f.Confidence = &c
	}
	if page.Valid {
		p := int(page.Int64)
		f.PageNumber = &p
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		f.VerifiedAt = &t
	}
	f.BoundingBox = boundingBox.String
	f.Source = source.String
	f.VerifiedBy = verifiedBy.String
	f.Notes = notes.String
	return &f, nil
}

// CreateBatch inserts all fields of one extraction pass in a single statement.
func (r *FieldPostgres) CreateBatch(ctx context.Context, fields []model.DocumentField) error {
	if len(fields) == 0 {
		return nil
	}

	const cols = 14
	placeholders := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)*cols)
	for i, f := range fields {
		base := i * cols
		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")

		var value sql.NullString
		if f.Value != nil {
			value = sql.NullString{String: *f.Value, Valid: true}
		}
		var confidence sql.NullFloat64
		if f.Confidence != nil {
			confidence = sql.NullFloat64{Float64: *f.Confidence, Valid: true}
		}
		var page sql.NullInt64
		if f.PageNumber != nil {
			page = sql.NullInt64{Int64: int64(*f.PageNumber), Valid: true}
		}
		args = append(args,
			f.ID,
			f.DocumentID,
			f.Name,
			value,
			f.FieldType,
			confidence,
			nullStr(f.BoundingBox),
			page,
			f.ExtractedAt,
			nullStr(f.Source),
			f.IsVerified,
			nullStr(f.VerifiedBy),
			nullTime(f.VerifiedAt),
			nullStr(f.Notes),
		)
	}

	q := `INSERT INTO document_fields (` + fieldColumns + `) VALUES ` + strings.Join(placeholders, ", ")
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

// ListByDocument returns all fields of a document ordered by page and name.
func (r *FieldPostgres) ListByDocument(ctx context.Context, documentID string) ([]model.DocumentField, error) {
	const q = `
		SELECT ` + fieldColumns + `
		FROM document_fields
		WHERE document_id = $1
		ORDER BY page_number ASC NULLS LAST, name ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.DocumentField, 0)
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// FindByID fetches a single field by its ID.
func (r *FieldPostgres) FindByID(ctx context.Context, id string) (*model.DocumentField, error) {
	const q = `
		SELECT ` + fieldColumns + `
		FROM document_fields
		WHERE id = $1
	`
	return scanField(r.db.QueryRowContext(ctx, q, id))
}

// Update persists a reviewer edit (value, verification state, notes).
func (r *FieldPostgres) Update(ctx context.Context, f *model.DocumentField) error {
	const q = `
		UPDATE document_fields
		SET value = $2, is_verified = $3, verified_by = $4, verified_at = $5, notes = $6
		WHERE id = $1
	`
	var value sql.NullString
	if f.Value != nil {
		value = sql.NullString{String: *f.Value, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		f.ID,
		value,
		f.IsVerified,
		nullStr(f.VerifiedBy),
		nullTime(f.VerifiedAt),
		nullStr(f.Notes),
	)
	return err
}

// DeleteByDocument removes every field of a document and returns the number
// of rows removed. Used at the start of a retry so attempts never accumulate.
func (r *FieldPostgres) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	const q = `DELETE FROM document_fields WHERE document_id = $1`
	res, err := r.db.ExecContext(ctx, q, documentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
