package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"docintake/internal/model"
	"docintake/internal/repository"
)

// Tripwire thresholds. A rule fires when the event being written would push
// the user's count past the limit.
const (
	burstLimit        = 5  // events per burstWindow
	hotLoopLimit      = 50 // identical actions per trailingWindow
	failureStormLimit = 10 // Failed events per trailingWindow

	burstWindow    = time.Second
	trailingWindow = time.Hour
)

// Entry is the caller-facing shape of one audit event. Zero-value Status and
// Severity default to Success/Info.
type Entry struct {
	Action      string
	EntityType  string
	EntityID    string
	UserID      string // empty for system actions
	IPAddress   string
	UserAgent   string
	Status      model.AuditStatus
	Severity    model.AuditSeverity
	Description string
	Details     string
}

// Recorder appends audit records and scores them against the anomaly rules
// before the insert, so the anomaly flag is part of the same durable write.
//
// Audit writes are best-effort: a failed append is logged and swallowed,
// never propagated to the business operation it describes.
type Recorder struct {
	repo repository.AuditRepository
	log  *slog.Logger
	now  func() time.Time
}

// NewRecorder constructs a Recorder.
func NewRecorder(repo repository.AuditRepository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, log: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends one audit record. It returns the record as written for
// observability; errors are never returned.
func (r *Recorder) Record(ctx context.Context, e Entry) *model.AuditLog {
	ts := r.now()

	entry := &model.AuditLog{
		ID:          uuid.NewString(),
		Timestamp:   ts,
		Action:      e.Action,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		UserID:      e.UserID,
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
		Status:      e.Status,
		Severity:    e.Severity,
		Description: e.Description,
		Details:     e.Details,
	}
	if entry.Status == "" {
		entry.Status = model.AuditStatusSuccess
	}
	if entry.Severity == "" {
		entry.Severity = model.SeverityInfo
	}

	if fired := r.firedRules(ctx, entry); len(fired) > 0 {
		entry.IsAnomaly = true
		entry.AnomalyReason = strings.Join(fired, "; ")
		entry.Severity = model.SeverityWarning
	}

	if err := r.repo.Create(ctx, entry); err != nil {
		r.log.Error("audit.append.failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"user_id", entry.UserID,
			"error", err,
		)
	}
	return entry
}

// firedRules evaluates the tripwire rules against the user's existing log.
// System events (no user) are not scored. Count failures degrade to "not
// anomalous" so a flaky store cannot block the write.
func (r *Recorder) firedRules(ctx context.Context, entry *model.AuditLog) []string {
	if entry.UserID == "" {
		return nil
	}

	var fired []string

	// Rule A: burst — more than burstLimit events in the window ending now.
	// The event being written counts toward the total.
	if n, err := r.repo.CountByUserSince(ctx, entry.UserID, entry.Timestamp.Add(-burstWindow)); err != nil {
		r.log.Warn("audit.anomaly.count_failed", "rule", "burst", "error", err)
	} else if n+1 > burstLimit {
		fired = append(fired, fmt.Sprintf("burst: more than %d events within %s", burstLimit, burstWindow))
	}

	// Rule B: hot-looping — one action repeated past hotLoopLimit in the trailing hour.
	if n, err := r.repo.CountByUserActionSince(ctx, entry.UserID, entry.Action, entry.Timestamp.Add(-trailingWindow)); err != nil {
		r.log.Warn("audit.anomaly.count_failed", "rule", "hot-loop", "error", err)
	} else if n+1 > hotLoopLimit {
		fired = append(fired, fmt.Sprintf("hot-loop: action %q more than %d times within %s", entry.Action, hotLoopLimit, trailingWindow))
	}

	// Rule C: failure storm — more than failureStormLimit Failed events in the trailing hour.
	if n, err := r.repo.CountFailedByUserSince(ctx, entry.UserID, entry.Timestamp.Add(-trailingWindow)); err != nil {
		r.log.Warn("audit.anomaly.count_failed", "rule", "failure-storm", "error", err)
	} else {
		total := n
		if entry.Status == model.AuditStatusFailed {
			total++
		}
		if total > failureStormLimit {
			fired = append(fired, fmt.Sprintf("failure-storm: more than %d failed events within %s", failureStormLimit, trailingWindow))
		}
	}

	return fired
}
