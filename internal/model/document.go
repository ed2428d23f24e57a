package model

import "time"

// ProcessingType identifies which extraction mode was used for a document.
type ProcessingType string

const (
	// ProcessingTypeLayout is the structured/form mode (tables, key/value pairs).
	ProcessingTypeLayout ProcessingType = "Layout"
	// ProcessingTypeText is the free-text OCR mode.
	ProcessingTypeText ProcessingType = "Text"
)

// Document represents a stored file and its processing lifecycle.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Document struct {
	ID               string         `json:"id"`
	FileName         string         `json:"file_name"`
	FileType         string         `json:"file_type"` // extension, e.g. ".pdf"
	FileSize         int64          `json:"file_size"`
	Container        string         `json:"container"`
	BlobName         string         `json:"blob_name"`
	URL              string         `json:"url,omitempty"`
	Status           Status         `json:"status"`
	ProcessingType   ProcessingType `json:"processing_type,omitempty"`
	UploadedAt       time.Time      `json:"uploaded_at"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
	LastModifiedAt   time.Time      `json:"last_modified_at"`
	ProcessingResult string         `json:"processing_result,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	RetryCount       int            `json:"retry_count"`
	OwnerID          string         `json:"owner_id"`
	Project          string         `json:"project,omitempty"`
	Description      string         `json:"description,omitempty"`
	Category         string         `json:"category,omitempty"`
	IsPublic         bool           `json:"is_public"`
	IsDeleted        bool           `json:"-"`
}
