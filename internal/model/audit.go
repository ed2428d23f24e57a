package model

import "time"

// AuditStatus is the outcome recorded on an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess   AuditStatus = "Success"
	AuditStatusFailed    AuditStatus = "Failed"
	AuditStatusPending   AuditStatus = "Pending"
	AuditStatusCancelled AuditStatus = "Cancelled"
)

// AuditSeverity grades an audit entry.
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "Info"
	SeverityWarning  AuditSeverity = "Warning"
	SeverityError    AuditSeverity = "Error"
	SeverityCritical AuditSeverity = "Critical"
)

// Well-known audit actions emitted by the orchestrator.
const (
	ActionDocumentCreated    = "DocumentCreated"
	ActionDocumentProcessed  = "DocumentProcessed"
	ActionDocumentRetry      = "DocumentRetry"
	ActionDocumentDownloaded = "DocumentDownloaded"
	ActionDocumentDeleted    = "DocumentDeleted"
	ActionDocumentCancelled  = "DocumentCancelled"
	ActionFieldUpdated       = "FieldUpdated"
)

// AuditLog is one append-only audit record. Except for the anomaly flag and
// reason, which are set exactly once at write time, no field of an existing
// record is ever mutated. Records are never deleted; a deleted document keeps
// its full audit history.
type AuditLog struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	Action        string        `json:"action"`
	EntityType    string        `json:"entity_type"`
	EntityID      string        `json:"entity_id"`
	UserID        string        `json:"user_id,omitempty"` // empty for system actions
	IPAddress     string        `json:"ip_address,omitempty"`
	UserAgent     string        `json:"user_agent,omitempty"`
	Status        AuditStatus   `json:"status"`
	Severity      AuditSeverity `json:"severity"`
	Description   string        `json:"description,omitempty"`
	Details       string        `json:"details,omitempty"`
	IsAnomaly     bool          `json:"is_anomaly"`
	AnomalyReason string        `json:"anomaly_reason,omitempty"`
}
