package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id                UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  file_name         TEXT        NOT NULL,
  file_type         TEXT        NOT NULL,
  file_size         BIGINT      NOT NULL CHECK (file_size > 0),
  container         TEXT        NOT NULL,
  blob_name         TEXT        NOT NULL UNIQUE,
  url               TEXT,
  status            TEXT        NOT NULL,
  processing_type   TEXT,
  uploaded_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  processed_at      TIMESTAMPTZ,
  last_modified_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  processing_result TEXT,
  error_message     TEXT,
  retry_count       INTEGER     NOT NULL DEFAULT 0 CHECK (retry_count >= 0),
  owner_id          TEXT        NOT NULL,
  project           TEXT,
  description       TEXT,
  category          TEXT,
  is_public         BOOLEAN     NOT NULL DEFAULT FALSE,
  is_deleted        BOOLEAN     NOT NULL DEFAULT FALSE
);`,
	},
	{
		Name: "create_index_documents_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (owner_id) WHERE is_deleted = FALSE;`,
	},
	{
		Name: "create_index_documents_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status) WHERE is_deleted = FALSE;`,
	},
	{
		Name: "create_index_documents_uploaded_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents (uploaded_at);`,
	},
	{
		Name: "create_table_document_fields",
		SQL: `CREATE TABLE IF NOT EXISTS document_fields (
  id           UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  document_id  UUID        NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
  name         TEXT        NOT NULL,
  value        TEXT,
  field_type   TEXT        NOT NULL,
  confidence   DOUBLE PRECISION CHECK (confidence >= 0.0 AND confidence <= 1.0),
  bounding_box TEXT,
  page_number  INTEGER,
  extracted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  source       TEXT,
  is_verified  BOOLEAN     NOT NULL DEFAULT FALSE,
  verified_by  TEXT,
  verified_at  TIMESTAMPTZ,
  notes        TEXT
);`,
	},
	{
		Name: "create_index_document_fields_document",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_document_fields_document ON document_fields (document_id);`,
	},
	{
		Name: "create_table_audit_logs",
		SQL: `CREATE TABLE IF NOT EXISTS audit_logs (
  id             UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  seq            BIGSERIAL   NOT NULL,
  ts             TIMESTAMPTZ NOT NULL DEFAULT now(),
  action         TEXT        NOT NULL,
  entity_type    TEXT        NOT NULL,
  entity_id      TEXT        NOT NULL,
  user_id        TEXT,
  ip_address     TEXT,
  user_agent     TEXT,
  status         TEXT        NOT NULL,
  severity       TEXT        NOT NULL,
  description    TEXT,
  details        TEXT,
  is_anomaly     BOOLEAN     NOT NULL DEFAULT FALSE,
  anomaly_reason TEXT
);`,
	},
	{
		Name: "create_index_audit_logs_user_ts",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_audit_logs_user_ts ON audit_logs (user_id, ts);`,
	},
	{
		Name: "create_index_audit_logs_entity",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs (entity_type, entity_id);`,
	},
	{
		Name: "create_index_audit_logs_anomaly",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_audit_logs_anomaly ON audit_logs (ts) WHERE is_anomaly = TRUE;`,
	},
}

// EnsureMigrated checks if the 'audit_logs' table exists and runs migrations if it doesn't.
// audit_logs is created last, so its presence implies the full schema is in place.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.audit_logs') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
