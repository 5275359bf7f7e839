package security

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Arbiter-Network/adjudication_layer/infrastructure/logging"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/metrics"
)

// EventType classifies an audit event.
type EventType string

const (
	EventAuthenticationFailure EventType = "authentication_failure"
	EventAuthorizationFailure  EventType = "authorization_failure"
	EventSecurityViolation     EventType = "security_violation"
	EventResourceCreate        EventType = "resource_create"
	EventResourceRead          EventType = "resource_read"
	EventResourceUpdate        EventType = "resource_update"
	EventResourceDelete        EventType = "resource_delete"
	EventResourceQuery         EventType = "resource_query"
)

// EventResult is the outcome recorded on an event.
type EventResult string

const (
	ResultSuccess EventResult = "success"
	ResultFailure EventResult = "failure"
)

// Actor identifies who performed the audited action.
type Actor struct {
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

// Event is one audit record.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	EventType EventType              `json:"event_type"`
	Actor     Actor                  `json:"actor"`
	Action    string                 `json:"action"`
	Resource  string                 `json:"resource,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Result    EventResult            `json:"result"`
	Error     string                 `json:"error,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
}

// AuditConfig tunes the audit log.
type AuditConfig struct {
	MaxEvents     int
	RetentionDays int
	// SweepSchedule is a cron expression for the retention sweep.
	// Empty disables scheduling; callers can invoke Cleanup directly.
	SweepSchedule string
}

// DefaultAuditConfig returns sensible defaults: nightly sweep at 03:10.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		MaxEvents:     10000,
		RetentionDays: 30,
		SweepSchedule: "10 3 * * *",
	}
}

// ViolationHandler receives security-violation events for the health alert
// channel.
type ViolationHandler func(Event)

// AuditLog is a bounded, append-only event store. Append truncates from the
// front past MaxEvents; the scheduled sweep drops events older than the
// retention window.
type AuditLog struct {
	mu     sync.RWMutex
	events []Event
	config AuditConfig

	logger    *logging.Logger
	metrics   *metrics.Metrics
	onViolate ViolationHandler

	cron *cron.Cron
}

// NewAuditLog creates the log and starts the retention sweep schedule.
// logger and metrics may be nil.
func NewAuditLog(cfg AuditConfig, logger *logging.Logger, m *metrics.Metrics) *AuditLog {
	if cfg.MaxEvents < 1 {
		cfg.MaxEvents = 10000
	}
	if cfg.RetentionDays < 1 {
		cfg.RetentionDays = 30
	}

	log := &AuditLog{
		config:  cfg,
		logger:  logger,
		metrics: m,
	}

	if cfg.SweepSchedule != "" {
		log.cron = cron.New()
		if _, err := log.cron.AddFunc(cfg.SweepSchedule, func() { log.Cleanup() }); err == nil {
			log.cron.Start()
		} else if logger != nil {
			logger.WithError(err).Warn("audit sweep schedule invalid, sweep disabled")
		}
	}

	return log
}

// OnViolation registers the handler invoked for security violations.
func (l *AuditLog) OnViolation(handler ViolationHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onViolate = handler
}

// Append records one event, assigning ID and timestamp when missing.
func (l *AuditLog) Append(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	if len(l.events) > l.config.MaxEvents {
		overflow := len(l.events) - l.config.MaxEvents
		l.events = append([]Event(nil), l.events[overflow:]...)
	}
	handler := l.onViolate
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.RecordAuditEvent("security-envelope", string(event.EventType), string(event.Result))
	}
	if l.logger != nil {
		l.logger.WithFields(map[string]interface{}{
			"event_type": event.EventType,
			"tenant_id":  event.Actor.TenantID,
			"user_id":    event.Actor.UserID,
			"action":     event.Action,
			"resource":   event.Resource,
			"result":     event.Result,
		}).Debug("audit event")
	}

	if event.EventType == EventSecurityViolation && handler != nil {
		handler(event)
	}

	return event
}

// Query filters the log. Results are sorted by timestamp descending and
// capped at limit (0 means no cap).
type Query struct {
	TenantID  string
	UserID    string
	EventType EventType
	Since     time.Time
	Until     time.Time
	Limit     int
}

// Events returns the filtered, newest-first view of the log.
func (l *AuditLog) Events(q Query) []Event {
	l.mu.RLock()
	matched := make([]Event, 0, len(l.events))
	for _, event := range l.events {
		if q.TenantID != "" && event.Actor.TenantID != q.TenantID {
			continue
		}
		if q.UserID != "" && event.Actor.UserID != q.UserID {
			continue
		}
		if q.EventType != "" && event.EventType != q.EventType {
			continue
		}
		if !q.Since.IsZero() && event.Timestamp.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && event.Timestamp.After(q.Until) {
			continue
		}
		matched = append(matched, event)
	}
	l.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched
}

// Len returns the current event count.
func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Cleanup drops events older than the retention window. Returns dropped count.
func (l *AuditLog) Cleanup() int {
	cutoff := time.Now().UTC().AddDate(0, 0, -l.config.RetentionDays)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.events[:0]
	dropped := 0
	for _, event := range l.events {
		if event.Timestamp.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, event)
	}
	l.events = kept
	return dropped
}

// Stop halts the retention sweep scheduler.
func (l *AuditLog) Stop() {
	if l.cron != nil {
		l.cron.Stop()
	}
}
