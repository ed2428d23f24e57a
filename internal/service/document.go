package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docintake/internal/audit"
	"docintake/internal/extract"
	"docintake/internal/model"
	"docintake/internal/repository"
	"docintake/internal/storage"
)

var (
	ErrIDRequired    = errors.New("id is required")
	ErrReaderNil     = errors.New("reader is nil")
	ErrEmptyFile     = errors.New("file size must be greater than zero")
	ErrOwnerRequired = errors.New("owner id is required")

	// ErrNotAccessible covers both "does not exist" and "not yours", so the
	// boundary does not leak document existence.
	ErrNotAccessible = errors.New("document not accessible")

	ErrAlreadyProcessing = errors.New("document is already being processed")
	ErrInvalidState      = errors.New("operation not allowed in current document state")
	ErrRetryLimit        = errors.New("retry limit reached")
)

// entityDocument is the entity type tag used on audit records.
const entityDocument = "Document"

// layoutTypes are file extensions routed to the structured/form extraction
// mode; everything else goes through free-text OCR.
var layoutTypes = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
}

// UploadRequest carries intake metadata for Create.
type UploadRequest struct {
	FileName    string
	ContentType string
	Size        int64
	Owner       Actor
	Project     string
	Description string
	Category    string
	IsPublic    bool
}

// FieldUpdate is a reviewer edit applied to one extracted field.
// Nil members are left untouched.
type FieldUpdate struct {
	Value  *string
	Verify *bool
	Notes  *string
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// AuditRecorder is the slice of the audit pipeline the service depends on.
// Implemented by audit.Recorder; appends are best-effort and never fail.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) *model.AuditLog
}

// DocumentService drives the document lifecycle: intake, extraction,
// retries, review, download, and soft deletion. Every state-changing
// operation emits exactly one audit record.
type DocumentService interface {
	// Create validates the upload, writes the bytes to blob storage, and
	// inserts the document with Status=Uploaded. The blob write gates the
	// insert; an insert failure rolls the blob back, so no orphaned row
	// survives a failed create.
	Create(ctx context.Context, r io.Reader, req UploadRequest) (*model.Document, error)

	// Process runs one extraction pass. Provider-side failure (timeout,
	// transport, malformed response) is captured into Status=Failed and
	// returned with a nil error: a failed document is a queryable,
	// retriable outcome, not a failure of this call.
	Process(ctx context.Context, id string) (*model.Document, error)

	// RetryProcessing deletes the prior attempt's fields and hands the
	// document back to Uploaded with RetryCount+1. It does not re-invoke
	// Process; scheduling the next attempt is the caller's decision.
	RetryProcessing(ctx context.Context, id string, actor Actor) (*model.Document, error)

	// Download streams the stored bytes for the owner or, if the document
	// is public, anyone.
	Download(ctx context.Context, id string, actor Actor) (io.ReadCloser, *model.Document, error)

	// Delete soft-deletes the document. Blob bytes and audit history are
	// retained.
	Delete(ctx context.Context, id string, actor Actor) error

	// Cancel moves an Uploaded or Processing document to Cancelled.
	Cancel(ctx context.Context, id string, actor Actor) (*model.Document, error)

	// Get returns a single document visible to the actor.
	Get(ctx context.Context, id string, actor Actor) (*model.Document, error)

	// List returns an owner's documents, optionally filtered by status.
	List(ctx context.Context, ownerID string, status *model.Status, limit, offset int) (*DocumentListResult, error)

	// Fields returns the extracted fields of a document.
	Fields(ctx context.Context, id string, actor Actor) ([]model.DocumentField, error)

	// UpdateField applies a reviewer edit (value, verification, notes).
	UpdateField(ctx context.Context, docID, fieldID string, actor Actor, upd FieldUpdate) (*model.DocumentField, error)
}

// documentService is the concrete orchestrator. All collaborators are
// injected; there is no ambient state.
type documentService struct {
	store          storage.Storage
	docs           repository.DocumentRepository
	fields         repository.FieldRepository
	extractor      extract.Provider
	auditor        AuditRecorder
	authz          Authorizer
	log            *slog.Logger
	container      string
	processTimeout time.Duration
	maxRetries     int // 0 disables the ceiling
	now            func() time.Time
}

// Options tunes the orchestrator.
type Options struct {
	// Container is the blob container documents are stored under.
	Container string
	// ProcessTimeout bounds one extraction provider call.
	ProcessTimeout time.Duration
	// MaxRetries caps RetryProcessing invocations per document; 0 disables it.
	MaxRetries int
}

// NewDocumentService constructs the orchestrator.
func NewDocumentService(
	store storage.Storage,
	docs repository.DocumentRepository,
	fields repository.FieldRepository,
	extractor extract.Provider,
	auditor AuditRecorder,
	authz Authorizer,
	logger *slog.Logger,
	opts Options,
) DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = NewOwnerAuthorizer()
	}
	if opts.Container == "" {
		opts.Container = "documents"
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = 60 * time.Second
	}
	return &documentService{
		store:          store,
		docs:           docs,
		fields:         fields,
		extractor:      extractor,
		auditor:        auditor,
		authz:          authz,
		log:            logger,
		container:      opts.Container,
		processTimeout: opts.ProcessTimeout,
		maxRetries:     opts.MaxRetries,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *documentService) Create(ctx context.Context, r io.Reader, req UploadRequest) (*model.Document, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if req.Size <= 0 {
		return nil, ErrEmptyFile
	}
	if req.Owner.ID == "" {
		return nil, ErrOwnerRequired
	}

	// Fresh blob name per upload; blobs are never mutated in place.
	ext := strings.ToLower(filepath.Ext(req.FileName))
	blobName := filepath.ToSlash(filepath.Join("documents", uuid.NewString()+ext))

	// The blob write gates the metadata insert: if it fails here, no
	// document row exists for this attempt.
	objInfo, err := s.store.Put(ctx, blobName, r, storage.PutObjectOptions{
		Size:        req.Size,
		ContentType: req.ContentType,
		Metadata: map[string]string{
			"original-filename": req.FileName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	now := s.now()
	doc := &model.Document{
		ID:             uuid.NewString(),
		FileName:       req.FileName,
		FileType:       ext,
		FileSize:       objInfo.Size,
		Container:      s.container,
		BlobName:       blobName,
		URL:            "/" + s.container + "/" + blobName,
		Status:         model.StatusUploaded,
		UploadedAt:     now,
		LastModifiedAt: now,
		OwnerID:        req.Owner.ID,
		Project:        req.Project,
		Description:    req.Description,
		Category:       req.Category,
		IsPublic:       req.IsPublic,
	}
	stored, err := s.docs.Create(ctx, doc)
	if err != nil {
		// Roll the blob back so a failed create leaves nothing behind.
		if delErr := s.store.Delete(ctx, blobName); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		Action:      model.ActionDocumentCreated,
		EntityType:  entityDocument,
		EntityID:    stored.ID,
		UserID:      req.Owner.ID,
		IPAddress:   req.Owner.IPAddress,
		UserAgent:   req.Owner.UserAgent,
		Description: fmt.Sprintf("uploaded %q (%d bytes)", req.FileName, objInfo.Size),
	})
	return stored, nil
}

func (s *documentService) Process(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotAccessible
		}
		return nil, err
	}

	// The Uploaded -> Processing claim is the advisory lock: a concurrent
	// Process call on the same document loses the conditional update and
	// backs off instead of duplicating the extraction call.
	claimed, err := s.docs.TransitionStatus(ctx, id, model.StatusUploaded, model.StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("claim document for processing: %w", err)
	}
	if !claimed {
		return doc, ErrAlreadyProcessing
	}
	doc.Status = model.StatusProcessing

	mode := model.ProcessingTypeText
	if layoutTypes[doc.FileType] {
		mode = model.ProcessingTypeLayout
	}
	doc.ProcessingType = mode

	rc, _, err := s.store.Get(ctx, doc.BlobName)
	if err != nil {
		return s.markFailed(ctx, doc, fmt.Errorf("fetch blob: %w", err))
	}
	defer rc.Close()

	actx, cancel := context.WithTimeout(ctx, s.processTimeout)
	defer cancel()
	res, err := s.extractor.Analyze(actx, rc, mode)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("extraction timed out after %s: %w", s.processTimeout, err)
		}
		return s.markFailed(ctx, doc, err)
	}

	now := s.now()
	docFields := extract.MapFields(doc.ID, res, string(mode), now)
	if len(docFields) > 0 {
		if err := s.fields.CreateBatch(ctx, docFields); err != nil {
			return s.markFailed(ctx, doc, fmt.Errorf("persist fields: %w", err))
		}
	}

	doc.Status = model.StatusProcessed
	doc.ProcessedAt = &now
	doc.LastModifiedAt = now
	doc.ProcessingResult = fmt.Sprintf("%d fields extracted", len(docFields))
	doc.ErrorMessage = ""

	// The terminal write is guarded on the document still being Processing:
	// a cancel that landed while extraction was in flight must not be
	// overwritten back to Processed.
	applied, err := s.docs.UpdateFromStatus(ctx, doc, model.StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("persist processed state: %w", err)
	}
	if !applied {
		return s.discardSupersededRun(ctx, doc.ID, len(docFields) > 0)
	}

	s.log.Info("document.processed", "document_id", doc.ID, "mode", mode, "fields", len(docFields))
	s.auditor.Record(ctx, audit.Entry{
		Action:      model.ActionDocumentProcessed,
		EntityType:  entityDocument,
		EntityID:    doc.ID,
		UserID:      doc.OwnerID,
		Description: doc.ProcessingResult,
	})
	return doc, nil
}

// discardSupersededRun handles a processing run whose terminal write lost to
/// a concurrent transition (a cancel). The run's output is moot: any fields it
// wrote are removed and the document is returned in its current state.
func (s *documentService) discardSupersededRun(ctx context.Context, id string, hasFields bool) (*model.Document, error) {
	if hasFields {
		if _, err := s.fields.DeleteByDocument(ctx, id); err != nil {
			return nil, fmt.Errorf("discard superseded fields: %w", err)
		}
	}
	cur, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotAccessible
		}
		return nil, err
	}
	s.log.Info("document.process.superseded", "document_id", id, "status", cur.Status)
	return cur, nil
}

// markFailed captures an extraction failure into the document's Failed state.
// The failure is domain state, not an error of the Process call itself.
func (s *documentService) markFailed(ctx context.Context, doc *model.Document, cause error) (*model.Document, error) {
	now := s.now()
	doc.Status = model.StatusFailed
	doc.ErrorMessage = cause.Error()
	doc.LastModifiedAt = now
	applied, err := s.docs.UpdateFromStatus(ctx, doc, model.StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("persist failed state: %w", err)
	}
	if !applied {
		return s.discardSupersededRun(ctx, doc.ID, false)
	}

	s.log.Error("document.process.failed", "document_id", doc.ID, "error", cause)
	s.auditor.Record(ctx, audit.Entry{
		Action:      model.ActionDocumentProcessed,
		EntityType:  entityDocument,
		EntityID:    doc.ID,
		UserID:      doc.OwnerID,
		Status:      model.AuditStatusFailed,
		Severity:    model.SeverityError,
		Description: "extraction failed",
		Details:     cause.Error(),
	})
	return doc, nil
}

func (s *documentService) RetryProcessing(ctx context.Context, id string, actor Actor) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotAccessible
		}
		return nil, err
	}
	if !s.authz.CanModify(doc, actor) {
		return nil, ErrNotAccessible
	}
	if s.maxRetries > 0 && doc.RetryCount >= s.maxRetries {
		return nil, ErrRetryLimit
	}

	// Claim Failed -> Retrying so two concurrent retries cannot both reset.
	claimed, err := s.docs.TransitionStatus(ctx, id, model.StatusFailed, model.StatusRetrying)
	if err != nil {
		return nil, fmt.Errorf("claim document for retry: %w", err)
	}
	if !claimed {
		return nil, ErrInvalidState
	}

	// A retry is a replacement, not an accumulation: drop the prior
	// attempt's fields before the document re-enters Uploaded.
	removed, err := s.fields.DeleteByDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("clear fields for retry: %w", err)
	}

	now := s.now()
	doc.Status = model.StatusUploaded
	doc.ProcessedAt = nil
	doc.ProcessingResult = ""
	doc.ErrorMessage = ""
	doc.RetryCount++
	doc.LastModifiedAt = now
	applied, err := s.docs.UpdateFromStatus(ctx, doc, model.StatusRetrying)
	if err != nil {
		return nil, fmt.Errorf("persist retry state: %w", err)
	}
	if !applied {
		// Nothing else transitions out of Retrying; losing here means the
		// row changed in a way the claim should have prevented.
		return nil, ErrInvalidState
	}

	s.log.Info("document.retry", "document_id", doc.ID, "retry_count", doc.RetryCount, "fields_removed", removed)
	s.auditor.Record(ctx, audit.Entry{
		Action:      model.ActionDocumentRetry,
		EntityType:  entityDocument,
		EntityID:    doc.ID,
		UserID:      actor.ID,
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
		Description: fmt.Sprintf("retry %d requested, %d stale fields removed", doc.RetryCount, removed),
	})
	return doc, nil
}

func (s *documentService) Download(ctx context.Context, id string, actor Actor) (io.ReadCloser, *model.Document, error) {
	if id == "" {
		return nil, nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotAccessible
		}
		return nil, nil, err
	}
	if !s.authz.CanRead(doc, actor) {
		return nil, nil, ErrNotAccessible
	}

	rc, _, err := s.store.Get(ctx, doc.BlobName)
	if err != nil {
		return nil, nil, fmt.Errorf("download from storage: %w", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		Action:     model.ActionDocumentDownloaded,
		EntityType: entityDocument,
		EntityID:   doc.ID,
		UserID:     actor.ID,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	})
	return rc, doc, nil
}

func (s *documentService) Delete(ctx context.Context, id string, actor Actor) error {
	if id == "" {
		return ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotAccessible
		}
		return err
	}
	if !s.authz.CanModify(doc, actor) {
		return ErrNotAccessible
	}

	// Soft delete only: blob bytes and audit history are retained.
	// Hard deletion belongs to a separate retention job.
	if err := s.docs.SoftDelete(ctx, id, s.now()); err != nil {
		return err
	}

	s.auditor.Record(ctx, audit.Entry{
		Action:     model.ActionDocumentDeleted,
		EntityType: entityDocument,
		EntityID:   doc.ID,
		UserID:     actor.ID,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	})
	return nil
}

func (s *documentService) Cancel(ctx context.Context, id string, actor Actor) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotAccessible
		}
		return nil, err
	}
	if !s.authz.CanModify(doc, actor) {
		return nil, ErrNotAccessible
	}

	claimed, err := s.docs.TransitionStatus(ctx, id, model.StatusUploaded, model.StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !claimed {
		claimed, err = s.docs.TransitionStatus(ctx, id, model.StatusProcessing, model.StatusCancelled)
		if err != nil {
			return nil, err
		}
	}
	if !claimed {
		return nil, ErrInvalidState
	}
	doc.Status = model.StatusCancelled

	s.auditor.Record(ctx, audit.Entry{
		Action:     model.ActionDocumentCancelled,
		EntityType: entityDocument,
		EntityID:   doc.ID,
		UserID:     actor.ID,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		Status:     model.AuditStatusCancelled,
	})
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, id string, actor Actor) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotAccessible
		}
		return nil, err
	}
	if !s.authz.CanRead(doc, actor) {
		return nil, ErrNotAccessible
	}
	return doc, nil
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, ownerID string, status *model.Status, limit, offset int) (*DocumentListResult, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.docs.ListByOwner(ctx, ownerID, status, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *documentService) Fields(ctx context.Context, id string, actor Actor) ([]model.DocumentField, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotAccessible
		}
		return nil, err
	}
	if !s.authz.CanRead(doc, actor) {
		return nil, ErrNotAccessible
	}
	return s.fields.ListByDocument(ctx, id)
}

func (s *documentService) UpdateField(ctx context.Context, docID, fieldID string, actor Actor, upd FieldUpdate) (*model.DocumentField, error) {
	if docID == "" || fieldID == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotAccessible
		}
		return nil, err
	}
	if !s.authz.CanModify(doc, actor) {
		return nil, ErrNotAccessible
	}

	f, err := s.fields.FindByID(ctx, fieldID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotAccessible
		}
		return nil, err
	}
	if f.DocumentID != docID {
		return nil, ErrNotAccessible
	}

	if upd.Value != nil {
		f.Value = upd.Value
	}
	if upd.Notes != nil {
		f.Notes = *upd.Notes
	}
	if upd.Verify != nil {
		f.IsVerified = *upd.Verify
		if *upd.Verify {
			now := s.now()
			f.VerifiedBy = actor.ID
			f.VerifiedAt = &now
		} else {
			f.VerifiedBy = ""
			f.VerifiedAt = nil
		}
	}
	if err := s.fields.Update(ctx, f); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, audit.Entry{
		Action:      model.ActionFieldUpdated,
		EntityType:  "DocumentField",
		EntityID:    f.ID,
		UserID:      actor.ID,
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
		Description: fmt.Sprintf("field %q of document %s updated", f.Name, docID),
	})
	return f, nil
}
