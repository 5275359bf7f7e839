package observer

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Arbiter-Network/adjudication_layer/infrastructure/httputil"
	"github.com/Arbiter-Network/adjudication_layer/internal/security"
)

// StatusSummary is the /observer/status payload.
type StatusSummary struct {
	ArbiterState  string         `json:"arbiter_state"`
	QueueDepth    int            `json:"queue_depth"`
	TasksByStatus map[string]int `json:"tasks_by_status"`
	InFlight      int            `json:"in_flight_verifications"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Overall       string         `json:"overall_health"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	overall := "unknown"
	if s.monitor != nil {
		status, _ := s.monitor.Overall()
		overall = string(status)
	}

	httputil.WriteJSON(w, http.StatusOK, StatusSummary{
		ArbiterState:  s.arbiter.State(),
		QueueDepth:    s.arbiter.QueueDepth(),
		TasksByStatus: s.tasks.CountByStatus(),
		InFlight:      s.engine.InFlight(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Overall:       overall,
	})
}

// MetricsSnapshot is the /observer/metrics payload.
type MetricsSnapshot struct {
	System      interface{} `json:"system"`
	Checks      interface{} `json:"checks"`
	CacheSize   int         `json:"verification_cache_size"`
	EventCount  int         `json:"event_count"`
	AuditEvents int         `json:"audit_events"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := MetricsSnapshot{
		CacheSize:   s.engine.CacheSize(),
		EventCount:  s.events.Len(),
		AuditEvents: s.envelope.Audit().Len(),
	}
	if s.monitor != nil {
		snapshot.System = s.monitor.Metrics()
		_, checks := s.monitor.Overall()
		snapshot.Checks = checks
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

// ProgressSummary is the /observer/progress payload.
type ProgressSummary struct {
	StepsByTask map[string]int `json:"steps_by_task"`
	TotalSteps  int            `json:"total_steps"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	steps := s.cot.StepCount()
	total := 0
	for _, count := range steps {
		total += count
	}
	httputil.WriteJSON(w, http.StatusOK, ProgressSummary{StepsByTask: steps, TotalSteps: total})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	diagnostics := map[string]interface{}{
		"arbiter_state":       s.arbiter.State(),
		"queue_depth":         s.arbiter.QueueDepth(),
		"registered_kinds":    s.engine.RegisteredKinds(),
		"verification_cache":  s.engine.CacheSize(),
		"in_flight":           s.engine.InFlight(),
		"uptime":              time.Since(s.startTime).String(),
	}
	if s.navigator != nil {
		diagnostics["navigator_health"] = s.navigator.Health()
	}
	if s.monitor != nil {
		diagnostics["active_alerts"] = s.monitor.ActiveAlerts()
	}
	httputil.WriteJSON(w, http.StatusOK, diagnostics)
}

// EventListResult is the /observer/logs payload.
type EventListResult struct {
	Events     []Event `json:"events"`
	NextCursor int64   `json:"next_cursor"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	filter := EventFilter{
		Cursor:   httputil.QueryInt64(r, "cursor", 0),
		Limit:    httputil.QueryInt(r, "limit", 100),
		Severity: httputil.QueryString(r, "severity", ""),
		Type:     httputil.QueryString(r, "type", ""),
		TaskID:   httputil.QueryString(r, "taskId", ""),
	}
	if since := httputil.QueryInt64(r, "sinceTs", 0); since > 0 {
		filter.SinceTs = time.UnixMilli(since).UTC()
	}
	if until := httputil.QueryInt64(r, "untilTs", 0); until > 0 {
		filter.UntilTs = time.UnixMilli(until).UTC()
	}

	events, next := s.events.List(filter)
	httputil.WriteJSON(w, http.StatusOK, EventListResult{Events: events, NextCursor: next})
}

// CoTListResult is the chain-of-thought list payload.
type CoTListResult struct {
	Entries    []CoTEntry `json:"entries"`
	NextCursor int64      `json:"next_cursor"`
}

func (s *Server) handleCoT(w http.ResponseWriter, r *http.Request) {
	s.listCoT(w, r, httputil.QueryString(r, "taskId", ""))
}

func (s *Server) handleTaskCoT(w http.ResponseWriter, r *http.Request) {
	s.listCoT(w, r, mux.Vars(r)["taskId"])
}

func (s *Server) listCoT(w http.ResponseWriter, r *http.Request, taskID string) {
	var since time.Time
	if raw := httputil.QueryInt64(r, "since", 0); raw > 0 {
		since = time.UnixMilli(raw).UTC()
	}

	entries, next := s.cot.List(
		httputil.QueryInt64(r, "cursor", 0),
		httputil.QueryInt(r, "limit", 100),
		taskID,
		since,
	)
	httputil.WriteJSON(w, http.StatusOK, CoTListResult{Entries: entries, NextCursor: next})
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]
	task, ok := s.tasks.Get(taskID)
	if !ok {
		httputil.NotFound(w, "task not found")
		return
	}

	secCtx := securityContext(r)
	if secCtx != nil && task.TenantID != "" && task.TenantID != secCtx.TenantID {
		// Cross-tenant reads surface as absence, with the violation audited.
		s.envelope.Audit().Append(security.Event{
			EventType: security.EventSecurityViolation,
			Actor: security.Actor{
				TenantID:  secCtx.TenantID,
				UserID:    secCtx.UserID,
				SessionID: secCtx.SessionID,
			},
			Action:   "read",
			Resource: "task/" + taskID,
			Details:  map[string]interface{}{"reason": "Cross-tenant access attempt"},
			Result:   security.ResultFailure,
		})
		httputil.NotFound(w, "task not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, task)
}

// SubmitTaskRequest is the /observer/tasks body.
type SubmitTaskRequest struct {
	Description string                 `json:"description"`
	SpecPath    string                 `json:"specPath,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SubmitTaskResult is the /observer/tasks payload.
type SubmitTaskResult struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func (s *Server) handleTaskSubmit(w http.ResponseWriter, r *http.Request) {
	var body SubmitTaskRequest
	if !httputil.DecodeJSON(w, r, &body) {
		return
	}
	if body.Description == "" {
		httputil.BadRequest(w, "description is required")
		return
	}

	tenantID := ""
	if secCtx := securityContext(r); secCtx != nil {
		tenantID = secCtx.TenantID
	}

	task := s.tasks.Create(tenantID, body.Description, body.SpecPath, body.Metadata)
	if err := s.arbiter.Submit(task.ID); err != nil {
		s.tasks.Update(task.ID, func(t *Task) {
			t.Status = TaskFailed
			t.Error = err.Error()
		})
		httputil.ServiceUnavailable(w, err.Error())
		return
	}

	s.events.Append(Event{Type: "task", TaskID: task.ID, Message: "task submitted"})
	httputil.WriteJSON(w, http.StatusAccepted, SubmitTaskResult{TaskID: task.ID, Status: TaskQueued})
}

// ArbiterControlResult is the arbiter lifecycle payload.
type ArbiterControlResult struct {
	State string `json:"state"`
}

func (s *Server) handleArbiterStart(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ArbiterControlResult{State: s.arbiter.Start()})
}

func (s *Server) handleArbiterStop(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ArbiterControlResult{State: s.arbiter.Stop()})
}

// CommandRequest is the /observer/commands body.
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResult is the /observer/commands payload.
type CommandResult struct {
	Accepted bool     `json:"accepted"`
	Output   string   `json:"output,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body CommandRequest
	if !httputil.DecodeJSON(w, r, &body) {
		return
	}

	result := s.commands.Validate(body.Command)
	if !result.Valid {
		httputil.BadRequest(w, "command rejected: "+strings.Join(result.Errors, "; "))
		return
	}

	output := s.executeCommand(body.Command)
	s.events.Append(Event{Type: "command", Message: "command executed: " + body.Command})
	httputil.WriteJSON(w, http.StatusOK, CommandResult{Accepted: true, Output: output})
}

// executeCommand runs one allowlisted control command.
func (s *Server) executeCommand(command string) string {
	switch command {
	case "status":
		return "arbiter " + s.arbiter.State()
	case "pause":
		return "arbiter " + s.arbiter.Stop()
	case "resume":
		return "arbiter " + s.arbiter.Start()
	case "flush-cache":
		s.engine.ClearCache()
		if s.navigator != nil {
			s.navigator.ClearCaches()
		}
		return "caches flushed"
	default:
		return "no-op"
	}
}

// ObservationRequest is the /observer/observations body.
type ObservationRequest struct {
	Message string `json:"message"`
	TaskID  string `json:"taskId,omitempty"`
	Author  string `json:"author,omitempty"`
}

// ObservationResult is the /observer/observations payload.
type ObservationResult struct {
	Cursor int64 `json:"cursor"`
}

func (s *Server) handleObservation(w http.ResponseWriter, r *http.Request) {
	var body ObservationRequest
	if !httputil.DecodeJSON(w, r, &body) {
		return
	}
	if body.Message == "" {
		httputil.BadRequest(w, "message is required")
		return
	}

	event := s.events.Append(Event{
		Type:    "observation",
		TaskID:  body.TaskID,
		Message: body.Message,
		Data:    map[string]interface{}{"author": body.Author},
	})
	if body.TaskID != "" {
		s.cot.Append(body.TaskID, body.Message, body.Author)
	}
	httputil.WriteJSON(w, http.StatusCreated, ObservationResult{Cursor: event.Cursor})
}
