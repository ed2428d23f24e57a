package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"docintake/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fieldCols = []string{
	"id", "document_id", "name", "value", "field_type", "confidence", "bounding_box",
	"page_number", "extracted_at", "source", "is_verified", "verified_by", "verified_at", "notes",
}

func newFieldRepo(t *testing.T) (*FieldPostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFieldPostgres(db), mock
}

func TestFieldPostgres_CreateBatch(t *testing.T) {
	t.Run("empty batch is a no-op", func(t *testing.T) {
		repo, mock := newFieldRepo(t)

		err := repo.CreateBatch(context.Background(), nil)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("single row", func(t *testing.T) {
		repo, mock := newFieldRepo(t)
		now := time.Now().UTC()
		value := "ACME Corp"
		confidence := 0.97

		mock.ExpectExec("INSERT INTO document_fields (.+) VALUES \\(\\$1, \\$2, \\$3, \\$4, \\$5, \\$6, \\$7, \\$8, \\$9, \\$10, \\$11, \\$12, \\$13, \\$14\\)").
			WithArgs(
				"field-1", "doc-1", "vendor_name", sqlmock.AnyArg(), model.FieldTypeText,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), now, sqlmock.AnyArg(),
				false, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.CreateBatch(context.Background(), []model.DocumentField{{
			ID:          "field-1",
			DocumentID:  "doc-1",
			Name:        "vendor_name",
			Value:       &value,
			FieldType:   model.FieldTypeText,
			Confidence:  &confidence,
			ExtractedAt: now,
			Source:      "analyze",
		}})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("multi-row placeholders continue numbering", func(t *testing.T) {
		repo, mock := newFieldRepo(t)
		now := time.Now().UTC()

		mock.ExpectExec("INSERT INTO document_fields (.+) VALUES \\(\\$1, (.+)\\), \\(\\$15, (.+), \\$28\\)").
			WillReturnResult(sqlmock.NewResult(0, 2))

		err := repo.CreateBatch(context.Background(), []model.DocumentField{
			{ID: "field-1", DocumentID: "doc-1", Name: "total", FieldType: model.FieldTypeKeyValuePair, ExtractedAt: now},
			{ID: "field-2", DocumentID: "doc-1", Name: "date", FieldType: model.FieldTypeFormField, ExtractedAt: now},
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec failure", func(t *testing.T) {
		repo, mock := newFieldRepo(t)

		mock.ExpectExec("INSERT INTO document_fields").
			WillReturnError(errors.New("value too long"))

		err := repo.CreateBatch(context.Background(), []model.DocumentField{{ID: "field-1"}})

		assert.Error(t, err)
	})
}

func TestFieldPostgres_ListByDocument(t *testing.T) {
	repo, mock := newFieldRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(fieldCols).
		AddRow("field-1", "doc-1", "vendor_name", "ACME Corp", model.FieldTypeText, 0.97,
			`{"x":1,"y":2,"w":3,"h":4}`, 1, now, "analyze", false, nil, nil, nil).
		AddRow("field-2", "doc-1", "total", nil, model.FieldTypeKeyValuePair, nil,
			nil, nil, now, "analyze", false, nil, nil, nil)

	mock.ExpectQuery("SELECT (.+) FROM document_fields\\s+WHERE document_id = \\$1\\s+ORDER BY page_number ASC NULLS LAST").
		WithArgs("doc-1").
		WillReturnRows(rows)

	fields, err := repo.ListByDocument(context.Background(), "doc-1")

	assert.NoError(t, err)
	require.Len(t, fields, 2)

	require.NotNil(t, fields[0].Value)
	assert.Equal(t, "ACME Corp", *fields[0].Value)
	require.NotNil(t, fields[0].Confidence)
	assert.Equal(t, 0.97, *fields[0].Confidence)
	require.NotNil(t, fields[0].PageNumber)
	assert.Equal(t, 1, *fields[0].PageNumber)

	assert.Nil(t, fields[1].Value)
	assert.Nil(t, fields[1].Confidence)
	assert.Nil(t, fields[1].PageNumber)
}

func TestFieldPostgres_FindByID(t *testing.T) {
	repo, mock := newFieldRepo(t)
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(fieldCols).
			AddRow("field-1", "doc-1", "vendor_name", "ACME Corp", model.FieldTypeText, 0.97,
				nil, 1, now, "analyze", true, "reviewer-1", now, "checked against source")

		mock.ExpectQuery("SELECT (.+) FROM document_fields\\s+WHERE id = \\$1").
			WithArgs("field-1").
			WillReturnRows(rows)

		f, err := repo.FindByID(context.Background(), "field-1")

		assert.NoError(t, err)
		assert.Equal(t, "doc-1", f.DocumentID)
		assert.True(t, f.IsVerified)
		assert.Equal(t, "reviewer-1", f.VerifiedBy)
		require.NotNil(t, f.VerifiedAt)
		assert.Equal(t, "checked against source", f.Notes)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM document_fields").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		f, err := repo.FindByID(context.Background(), "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, f)
	})
}

func TestFieldPostgres_Update(t *testing.T) {
	repo, mock := newFieldRepo(t)
	now := time.Now().UTC()
	value := "1499.00"

	mock.ExpectExec("UPDATE document_fields\\s+SET value = \\$2, is_verified = \\$3").
		WithArgs("field-1", sqlmock.AnyArg(), true, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &model.DocumentField{
		ID:         "field-1",
		Value:      &value,
		IsVerified: true,
		VerifiedBy: "reviewer-1",
		VerifiedAt: &now,
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFieldPostgres_DeleteByDocument(t *testing.T) {
	repo, mock := newFieldRepo(t)

	mock.ExpectExec("DELETE FROM document_fields WHERE document_id = \\$1").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteByDocument(context.Background(), "doc-1")

	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
