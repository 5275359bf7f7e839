package observer

import (
	"context"
	"fmt"
	"sync"

	"github.com/Arbiter-Network/adjudication_layer/infrastructure/logging"
	"github.com/Arbiter-Network/adjudication_layer/internal/verification"
)

// Arbiter states.
const (
	ArbiterStopped  = "stopped"
	ArbiterRunning  = "running"
	ArbiterStopping = "stopping"
)

// Arbiter consumes queued tasks and runs them through the verification
// engine, recording progress events and chain-of-thought entries as it
// goes. Lifecycle: stopped -> running -> stopping -> stopped.
type Arbiter struct {
	engine *verification.Engine
	tasks  *TaskStore
	events *EventStore
	cot    *CoTStore
	logger *logging.Logger

	mu     sync.Mutex
	state  string
	queue  chan string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewArbiter creates a stopped arbiter with the given queue capacity.
func NewArbiter(engine *verification.Engine, tasks *TaskStore, events *EventStore, cot *CoTStore, logger *logging.Logger, queueSize int) *Arbiter {
	if queueSize < 1 {
		queueSize = 256
	}
	return &Arbiter{
		engine: engine,
		tasks:  tasks,
		events: events,
		cot:    cot,
		logger: logger,
		state:  ArbiterStopped,
		queue:  make(chan string, queueSize),
	}
}

// State returns the lifecycle state.
func (a *Arbiter) State() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// QueueDepth returns the number of tasks waiting.
func (a *Arbiter) QueueDepth() int {
	return len(a.queue)
}

// Start moves the arbiter to running. Idempotent while running.
func (a *Arbiter) Start() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == ArbiterRunning {
		return a.state
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	a.state = ArbiterRunning

	go a.run(ctx)

	a.events.Append(Event{Type: "arbiter", Message: "arbiter started"})
	return a.state
}

// Stop drains in-flight work and moves to stopped.
func (a *Arbiter) Stop() string {
	a.mu.Lock()
	if a.state != ArbiterRunning {
		state := a.state
		a.mu.Unlock()
		return state
	}
	a.state = ArbiterStopping
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()

	cancel()
	<-done

	a.mu.Lock()
	a.state = ArbiterStopped
	a.mu.Unlock()

	a.events.Append(Event{Type: "arbiter", Message: "arbiter stopped"})
	return ArbiterStopped
}

// Submit queues a task for processing. Fails when the queue is full.
func (a *Arbiter) Submit(taskID string) error {
	select {
	case a.queue <- taskID:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (a *Arbiter) run(ctx context.Context) {
	defer close(a.done)

	for {
		select {
		case <-ctx.Done():
			return
		case taskID := <-a.queue:
			a.process(ctx, taskID)
		}
	}
}

// process runs one task through the engine.
func (a *Arbiter) process(ctx context.Context, taskID string) {
	task, ok := a.tasks.Get(taskID)
	if !ok {
		return
	}

	a.tasks.Update(taskID, func(t *Task) { t.Status = TaskRunning })
	a.events.Append(Event{Type: "task", TaskID: taskID, Message: "task started"})
	a.cot.Append(taskID, "Claim received: "+task.Description, "arbiter")

	request := &verification.Request{
		ID:       taskID,
		Content:  task.Description,
		Priority: verification.PriorityMedium,
	}

	result, err := a.engine.Verify(ctx, request)

	switch {
	case err != nil:
		a.tasks.Update(taskID, func(t *Task) {
			t.Status = TaskFailed
			t.Error = err.Error()
			t.Result = result
		})
		a.events.Append(Event{
			Type: "task", TaskID: taskID, Severity: SeverityError,
			Message: "task failed: " + err.Error(),
		})
	default:
		for _, line := range result.Reasoning {
			a.cot.Append(taskID, line, "engine")
		}
		a.tasks.Update(taskID, func(t *Task) {
			t.Status = TaskCompleted
			t.Result = result
		})
		a.events.Append(Event{
			Type: "task", TaskID: taskID,
			Message: fmt.Sprintf("task completed: verdict %s (%.2f)", result.Verdict, result.Confidence),
			Data:    map[string]interface{}{"verdict": result.Verdict, "confidence": result.Confidence},
		})
	}

	if a.logger != nil {
		a.logger.WithFields(map[string]interface{}{
			"task_id": taskID,
		}).Info("task processed")
	}
}
