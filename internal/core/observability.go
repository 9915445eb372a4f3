package core

import (
	"context"
	"errors"
	"time"

	"veedcore/pkg/domain"
)

// Logger is the minimal leveled logging contract consumed by the service.
// Keyvals follow the alternating key/value convention.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the current time from the wrapped function.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// AuditStatus captures the outcome recorded in an audit entry.
type AuditStatus string

// Audit entry statuses.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service operation for compliance logging.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries emitted by the service.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder aggregates operation timings and outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span started by a Tracer.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger installs a logger. Nil values are ignored.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the service clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAuditRecorder installs an audit recorder.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// operationMetadata maps service operation names to the entity and action
// recorded in audit entries. Operations missing from the table are not audited.
var operationMetadata = map[string]struct {
	Entity EntityType
	Action Action
}{
	"create_case":           {EntityCase, ActionCreate},
	"duplicate_case":        {EntityCase, ActionCreate},
	"update_case_reference": {EntityCase, ActionUpdate},
	"set_active_case":       {EntityCase, ActionUpdate},
	"set_user_name":         {EntityCase, ActionUpdate},
	"set_checklist_item":    {EntityCase, ActionUpdate},
	"set_document_status":   {EntityCase, ActionUpdate},
	"add_log_entry":         {EntityCase, ActionUpdate},
	"add_finding":           {EntityCase, ActionUpdate},
	"remove_finding":        {EntityCase, ActionUpdate},
	"clear_history":         {EntityCase, ActionUpdate},
	"merge_cases":           {EntityCase, ActionUpdate},
	"import_document":       {EntityCase, ActionUpdate},
	"delete_case":           {EntityCase, ActionDelete},
	"attach_evidence":       {EntityEvidence, ActionCreate},
	"remove_evidence":       {EntityEvidence, ActionDelete},
	"attach_document_file":  {EntityDocumentFile, ActionCreate},
	"remove_document_file":  {EntityDocumentFile, ActionDelete},
}

func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, duration time.Duration) {
	meta, ok := operationMetadata[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.Entity,
		Action:    meta.Action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, operation, entityID string, duration time.Duration, err error) {
	meta, ok := operationMetadata[operation]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: operation,
		Entity:    meta.Entity,
		Action:    meta.Action,
		EntityID:  entityID,
		Status:    AuditStatusError,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// begin instruments a service operation. The returned finish function must be
// called exactly once with the resulting entity ID and error.
func (s *Service) begin(ctx context.Context, operation string) (context.Context, func(entityID string, err error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	return ctx, func(entityID string, err error) {
		duration := time.Since(start)
		span.End(err)
		s.metrics.Observe(ctx, operation, err == nil, duration)
		if err != nil {
			s.recordAuditError(ctx, operation, entityID, duration, err)
			var rve domain.RuleViolationError
			if errors.As(err, &rve) {
				s.logger.Warn("operation blocked by rules", "operation", operation, "entity_id", entityID, "violations", len(rve.Result.Violations))
			} else {
				s.logger.Error("operation failed", "operation", operation, "entity_id", entityID, "error", err)
			}
			return
		}
		s.recordAuditSuccess(ctx, operation, entityID, duration)
		s.logger.Debug("operation completed", "operation", operation, "entity_id", entityID, "duration", duration)
	}
}
