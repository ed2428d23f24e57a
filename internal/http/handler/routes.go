package handler

import (
	"context"
	"database/sql"
	"mime"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docintake/internal/async"
	"docintake/internal/model"
	"docintake/internal/repository"
	"docintake/internal/service"
)

// Identity headers set by the gateway in front of this service.
const (
	userIDHeader   = "X-User-ID"
	userRoleHeader = "X-User-Role"
)

// Enqueuer is the slice of the async queue the handlers depend on.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// autoProcess enqueues freshly uploaded documents for extraction.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, queue Enqueuer, audits repository.AuditRepository, autoProcess bool) {
	// API reference
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", SwaggerUI())

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/documents", ListDocuments(docSvc))
	app.Post("/documents", UploadDocument(docSvc, queue, autoProcess))
	app.Get("/documents/:id", GetDocument(docSvc))
	app.Delete("/documents/:id", DeleteDocument(docSvc))
	app.Post("/documents/:id/process", ProcessDocument(queue))
	app.Post("/documents/:id/retry", RetryDocument(docSvc, queue))
	app.Post("/documents/:id/cancel", CancelDocument(docSvc))
	app.Get("/documents/:id/download", DownloadDocument(docSvc))
	app.Get("/documents/:id/fields", ListFields(docSvc))
	app.Patch("/documents/:id/fields/:fieldId", UpdateField(docSvc))

	app.Get("/audit/entity/:type/:id", ListEntityAudit(audits))
	app.Get("/audit/users/:userId", ListUserAudit(audits))
	app.Get("/audit/anomalies", ListAnomalies(audits))
}

// SwaggerUI serves a minimal Swagger UI page pointed at /openapi.yaml.
func SwaggerUI() fiber.Handler {
	return func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	}
}

// HealthCheck reports readiness: it pings the database with a short timeout.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness probe with no dependencies.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// actorFromCtx builds the caller identity from gateway headers and the
// connection. An empty ID means the request is anonymous.
func actorFromCtx(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:        c.Get(userIDHeader),
		Role:      c.Get(userRoleHeader),
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

// pageFromQuery parses limit/offset with defaults, rejecting non-numeric input.
func pageFromQuery(c *fiber.Ctx) (limit, offset int, err error) {
	limit, err = strconv.Atoi(c.Query("limit", "10"))
	if err != nil {
		return 0, 0, writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
	}
	offset, err = strconv.Atoi(c.Query("offset", "0"))
	if err != nil {
		return 0, 0, writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
	}
	return limit, offset, nil
}

// ListDocuments returns the caller's documents, optionally filtered by status.
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := actorFromCtx(c)
		if actor.ID == "" {
			return writeError(c, fiber.StatusBadRequest, "USER_REQUIRED", "X-User-ID header is required")
		}

		limit, offset, err := pageFromQuery(c)
		if err != nil {
			return err
		}

		var status *model.Status
		if s := c.Query("status"); s != "" {
			st := model.Status(s)
			if !st.Valid() {
				return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "unknown status value")
			}
			status = &st
		}

		res, err := docSvc.List(c.UserContext(), actor.ID, status, limit, offset)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadDocument accepts a multipart upload (field name: file) plus optional
// metadata form values and creates the document. With autoProcess set, the
// new document is handed to the queue; a full queue leaves it in Uploaded
// for a later explicit process call.
func UploadDocument(docSvc service.DocumentService, queue Enqueuer, autoProcess bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := actorFromCtx(c)
		if actor.ID == "" {
			return writeError(c, fiber.StatusBadRequest, "USER_REQUIRED", "X-User-ID header is required")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		req := service.UploadRequest{
			FileName:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			Owner:       actor,
			Project:     c.FormValue("project"),
			Description: c.FormValue("description"),
			Category:    c.FormValue("category"),
			IsPublic:    c.FormValue("is_public") == "true",
		}

		doc, err := docSvc.Create(c.UserContext(), f, req)
		if err != nil {
			return serviceError(c, err)
		}

		if autoProcess {
			_ = queue.Enqueue(c.UserContext(), async.Job{DocumentID: doc.ID, SubmittedAt: time.Now()})
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// GetDocument returns a single document visible to the caller.
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := docSvc.Get(c.UserContext(), id, actorFromCtx(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(doc)
	}
}

// ProcessDocument enqueues an extraction run for the document and returns 202.
func ProcessDocument(queue Enqueuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		job := async.Job{DocumentID: id, SubmittedAt: time.Now()}
		if err := queue.Enqueue(c.UserContext(), job); err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued", "document_id": id})
	}
}

// RetryDocument resets a failed document for another attempt and enqueues it.
func RetryDocument(docSvc service.DocumentService, queue Enqueuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		doc, err := docSvc.RetryProcessing(c.UserContext(), id, actorFromCtx(c))
		if err != nil {
			return serviceError(c, err)
		}

		job := async.Job{DocumentID: id, SubmittedAt: time.Now()}
		if err := queue.Enqueue(c.UserContext(), job); err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(doc)
	}
}

// CancelDocument moves an Uploaded or Processing document to Cancelled.
func CancelDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := docSvc.Cancel(c.UserContext(), id, actorFromCtx(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DownloadDocument streams the stored bytes back to the caller.
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		rc, doc, err := docSvc.Download(c.UserContext(), id, actorFromCtx(c))
		if err != nil {
			return serviceError(c, err)
		}

		ct := mime.TypeByExtension(doc.FileType)
		if ct == "" {
			ct = fiber.MIMEOctetStream
		}
		c.Set(fiber.HeaderContentType, ct)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+doc.FileName+`"`)
		return c.SendStream(rc, int(doc.FileSize))
	}
}

// DeleteDocument soft-deletes a document. Audit history is retained.
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := docSvc.Delete(c.UserContext(), id, actorFromCtx(c)); err != nil {
			return serviceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ListFields returns the extracted fields of a document.
func ListFields(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		fields, err := docSvc.Fields(c.UserContext(), id, actorFromCtx(c))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"data": fields, "total": len(fields)})
	}
}

// fieldUpdateBody is the JSON body accepted by UpdateField.
type fieldUpdateBody struct {
	Value    *string `json:"value"`
	Verified *bool   `json:"verified"`
	Notes    *string `json:"notes"`
}

// UpdateField applies a reviewer edit to one extracted field.
func UpdateField(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docID := c.Params("id")
		fieldID := c.Params("fieldId")
		if _, err := uuid.Parse(docID); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if _, err := uuid.Parse(fieldID); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FIELD_ID", "invalid field id format")
		}

		var body fieldUpdateBody
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}
		if body.Value == nil && body.Verified == nil && body.Notes == nil {
			return writeError(c, fiber.StatusBadRequest, "EMPTY_UPDATE", "at least one of value, verified, notes is required")
		}

		upd := service.FieldUpdate{Value: body.Value, Verify: body.Verified, Notes: body.Notes}
		field, err := docSvc.UpdateField(c.UserContext(), docID, fieldID, actorFromCtx(c), upd)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(field)
	}
}

// ListEntityAudit returns the full audit history for one entity, oldest first.
func ListEntityAudit(audits repository.AuditRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entityType := c.Params("type")
		entityID := c.Params("id")

		logs, err := audits.ListByEntity(c.UserContext(), entityType, entityID)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"data": logs, "total": len(logs)})
	}
}

// ListUserAudit returns a user's audit records within an optional time range.
// from/to default to the last 24 hours.
func ListUserAudit(audits repository.AuditRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("userId")

		limit, offset, err := pageFromQuery(c)
		if err != nil {
			return err
		}

		to := time.Now()
		from := to.Add(-24 * time.Hour)
		if s := c.Query("from"); s != "" {
			if from, err = time.Parse(time.RFC3339, s); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_FROM", "from must be RFC3339")
			}
		}
		if s := c.Query("to"); s != "" {
			if to, err = time.Parse(time.RFC3339, s); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_TO", "to must be RFC3339")
			}
		}

		res, err := audits.ListByUser(c.UserContext(), userID, from, to, repository.PageQuery{Limit: limit, Offset: offset})
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"data": res.Items, "total": res.Total})
	}
}

// ListAnomalies returns audit records flagged as anomalous, newest first.
func ListAnomalies(audits repository.AuditRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, err := pageFromQuery(c)
		if err != nil {
			return err
		}

		res, err := audits.ListAnomalies(c.UserContext(), repository.PageQuery{Limit: limit, Offset: offset})
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"data": res.Items, "total": res.Total})
	}
}
