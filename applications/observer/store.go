// Package observer implements the observer HTTP API: status, metrics,
// event and chain-of-thought feeds, task submission, arbiter lifecycle
// control, and the realtime SSE stream. Every route is guarded by the
// security envelope.
package observer

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity levels of observer events.
const (
	SeverityDebug = "debug"
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// Event is one observer feed entry. Cursor is a monotonically increasing
// sequence used for pagination and SSE resume.
type Event struct {
	Cursor    int64                  `json:"cursor"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	TaskID    string                 `json:"task_id,omitempty"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// CoTEntry is one chain-of-thought step attached to a task.
type CoTEntry struct {
	Cursor    int64     `json:"cursor"`
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
	Step      int       `json:"step"`
	Content   string    `json:"content"`
	Author    string    `json:"author,omitempty"`
}

// TaskStatus values of a submitted task.
const (
	TaskQueued    = "queued"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// Task is a submitted adjudication task.
type Task struct {
	ID          string                 `json:"id"`
	TenantID    string                 `json:"tenant_id"`
	Description string                 `json:"description"`
	SpecPath    string                 `json:"spec_path,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Status      string                 `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Result      interface{}            `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// EventStore is a bounded, cursor-addressed event feed with fan-out to
// live listeners.
type EventStore struct {
	mu        sync.RWMutex
	events    []Event
	nextSeq   int64
	maxEvents int
	listeners map[int64]chan Event
	nextSub   int64
}

// NewEventStore creates the store.
func NewEventStore(maxEvents int) *EventStore {
	if maxEvents < 1 {
		maxEvents = 10000
	}
	return &EventStore{
		nextSeq:   1,
		maxEvents: maxEvents,
		listeners: make(map[int64]chan Event),
	}
}

// Append records one event and fans it out to listeners. Slow listeners
// drop events rather than block the writer.
func (s *EventStore) Append(event Event) Event {
	s.mu.Lock()
	event.Cursor = s.nextSeq
	s.nextSeq++
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}
	s.events = append(s.events, event)
	if len(s.events) > s.maxEvents {
		overflow := len(s.events) - s.maxEvents
		s.events = append([]Event(nil), s.events[overflow:]...)
	}
	listeners := make([]chan Event, 0, len(s.listeners))
	for _, ch := range s.listeners {
		listeners = append(listeners, ch)
	}
	s.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- event:
		default:
		}
	}
	return event
}

// EventFilter selects events for listing and streaming.
type EventFilter struct {
	Cursor   int64
	Limit    int
	Severity string
	Type     string
	TaskID   string
	SinceTs  time.Time
	UntilTs  time.Time
}

// matches reports whether the event passes the filter's field selectors.
func (f EventFilter) matches(e Event) bool {
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.TaskID != "" && e.TaskID != f.TaskID {
		return false
	}
	if !f.SinceTs.IsZero() && e.Timestamp.Before(f.SinceTs) {
		return false
	}
	if !f.UntilTs.IsZero() && e.Timestamp.After(f.UntilTs) {
		return false
	}
	return true
}

// List returns events after the cursor, oldest first, plus the next cursor.
func (s *EventStore) List(f EventFilter) ([]Event, int64) {
	limit := f.Limit
	if limit < 1 || limit > 500 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Event, 0, limit)
	nextCursor := f.Cursor
	for _, event := range s.events {
		if event.Cursor <= f.Cursor {
			continue
		}
		nextCursor = event.Cursor
		if !f.matches(event) {
			continue
		}
		matched = append(matched, event)
		if len(matched) >= limit {
			break
		}
	}
	return matched, nextCursor
}

// Subscribe registers a live listener. The returned cancel func must be
// called to release it.
func (s *EventStore) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Len returns the stored event count.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// CoTStore is a bounded, cursor-addressed chain-of-thought feed.
type CoTStore struct {
	mu         sync.RWMutex
	entries    []CoTEntry
	nextSeq    int64
	maxEntries int
	stepByTask map[string]int
}

// NewCoTStore creates the store.
func NewCoTStore(maxEntries int) *CoTStore {
	if maxEntries < 1 {
		maxEntries = 10000
	}
	return &CoTStore{
		nextSeq:    1,
		maxEntries: maxEntries,
		stepByTask: make(map[string]int),
	}
}

// Append records a reasoning step for a task, numbering steps per task.
func (s *CoTStore) Append(taskID, content, author string) CoTEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stepByTask[taskID]++
	entry := CoTEntry{
		Cursor:    s.nextSeq,
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
		Step:      s.stepByTask[taskID],
		Content:   content,
		Author:    author,
	}
	s.nextSeq++
	s.entries = append(s.entries, entry)
	if len(s.entries) > s.maxEntries {
		overflow := len(s.entries) - s.maxEntries
		s.entries = append([]CoTEntry(nil), s.entries[overflow:]...)
	}
	return entry
}

// List returns entries after the cursor, oldest first, plus the next cursor.
func (s *CoTStore) List(cursor int64, limit int, taskID string, since time.Time) ([]CoTEntry, int64) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]CoTEntry, 0, limit)
	nextCursor := cursor
	for _, entry := range s.entries {
		if entry.Cursor <= cursor {
			continue
		}
		nextCursor = entry.Cursor
		if taskID != "" && entry.TaskID != taskID {
			continue
		}
		if !since.IsZero() && entry.Timestamp.Before(since) {
			continue
		}
		matched = append(matched, entry)
		if len(matched) >= limit {
			break
		}
	}
	return matched, nextCursor
}

// StepCount returns how many reasoning steps each task has recorded.
func (s *CoTStore) StepCount() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.stepByTask))
	for task, count := range s.stepByTask {
		counts[task] = count
	}
	return counts
}

// TaskStore holds submitted tasks by ID.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTaskStore creates the store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*Task)}
}

// Create registers a new queued task.
func (s *TaskStore) Create(tenantID, description, specPath string, metadata map[string]interface{}) *Task {
	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Description: description,
		SpecPath:    specPath,
		Metadata:    metadata,
		Status:      TaskQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()
	return task
}

// Get returns a copy of the task, if present.
func (s *TaskStore) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Update applies fn to the task under the store lock.
func (s *TaskStore) Update(id string, fn func(*Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return false
	}
	fn(task)
	task.UpdatedAt = time.Now().UTC()
	return true
}

// CountByStatus tallies tasks per status.
func (s *TaskStore) CountByStatus() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, task := range s.tasks {
		counts[task.Status]++
	}
	return counts
}
