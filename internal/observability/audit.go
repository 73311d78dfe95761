package observability

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"` // session id
	Action    string                 `json:"action"`          // e.g. "deploy:netlify", "license:verify"
	Status    string                 `json:"status"`          // "success", "failure", "skipped"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// AuditLogger handles recording and persisting audit events
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditMu   sync.Mutex
	auditInst *AuditLogger
)

// GetAuditLogger returns the global audit logger instance.
// It writes to stderr until InitAuditLogger is called.
func GetAuditLogger() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditInst == nil {
		auditInst = &AuditLogger{
			logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
		}
	}
	return auditInst
}

// InitAuditLogger points the global audit logger at a file
func InitAuditLogger(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditInst != nil && auditInst.file != nil {
		_ = auditInst.file.Close()
	}
	auditInst = &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}
	return nil
}

// SetAuditLogger replaces the global audit logger with one writing to logger
func SetAuditLogger(logger zerolog.Logger) {
	auditMu.Lock()
	defer auditMu.Unlock()
	auditInst = &AuditLogger{logger: logger}
}

// Record emits an audit event and mirrors it on the active span
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ctx != nil {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			event.TraceID = span.SpanContext().TraceID().String()

			span.AddEvent(event.Action, trace.WithAttributes(
				attribute.String("audit.type", event.Type),
				attribute.String("audit.status", event.Status),
				attribute.String("audit.actor", event.Actor),
			))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status).
		Str("trace_id", event.TraceID)

	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func RecordDeployAudit(ctx context.Context, target, sessionID, status string, metadata map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "deploy",
		Actor:    sessionID,
		Action:   "deploy:" + target,
		Status:   status,
		Metadata: metadata,
	})
}

func RecordLicenseAudit(ctx context.Context, reason string, valid bool) {
	status := "failure"
	if valid {
		status = "success"
	}
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "license",
		Action:   "license:verify",
		Status:   status,
		Metadata: map[string]interface{}{"reason": reason},
	})
}
