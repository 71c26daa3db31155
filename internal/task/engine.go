package task

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iambrandonn/actuator/internal/protocol"
)

// DefaultRetention is how long a finished task stays queryable
const DefaultRetention = time.Hour

// EmitFunc receives every task event. An error is returned to the caller of
// the method that produced the event.
type EmitFunc func(protocol.TaskEvent) error

// Task is one tracked request. Values returned by the Engine are copies.
type Task struct {
	ID         string
	Request    string
	Intent     protocol.TaskIntent
	State      protocol.TaskState
	Message    string
	Proposal   *protocol.Proposal
	Status     protocol.FinishStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

func (t *Task) clone() *Task {
	c := *t
	c.Intent.Params = maps.Clone(t.Intent.Params)
	if t.Proposal != nil {
		p := *t.Proposal
		p.Commands = append([]string(nil), t.Proposal.Commands...)
		c.Proposal = &p
	}
	if t.FinishedAt != nil {
		f := *t.FinishedAt
		c.FinishedAt = &f
	}
	return &c
}

// Engine owns the task map. It is safe for concurrent use. Each change is
// recorded and emitted under emitMu, so events reach emit in the order the
// changes were applied. The map lock is released before emit runs; emit may
// read tasks but must not call the methods that record changes.
type Engine struct {
	emitMu sync.Mutex

	mu    sync.Mutex
	tasks map[string]*Task

	emit      EmitFunc
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	retention time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the uuid task id generator
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithRetention sets how long finished tasks are kept. Zero keeps them forever.
func WithRetention(ttl time.Duration) Option {
	return func(e *Engine) { e.retention = ttl }
}

// NewEngine creates an engine that reports events to emit. A nil emit drops them.
func NewEngine(emit EmitFunc, opts ...Option) *Engine {
	e := &Engine{
		tasks:     make(map[string]*Task),
		emit:      emit,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateTask stores a new task in RECEIVED and emits task.started followed
// by task.state_changed. When emission fails the task is still stored and
// returned alongside the error.
func (e *Engine) CreateTask(request string, intent protocol.TaskIntent) (*Task, error) {
	now := e.now()
	t := &Task{
		ID:        e.newID(),
		Request:   request,
		Intent:    intent,
		State:     protocol.StateReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}

	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	if _, exists := e.tasks[t.ID]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("task id %s already in use", t.ID)
	}
	e.tasks[t.ID] = t
	snapshot := t.clone()
	e.mu.Unlock()

	e.logger.Info("task created", "task_id", t.ID, "intent", intent.Kind)

	intentCopy := snapshot.Intent
	if err := e.send(protocol.TaskEvent{
		Event:      protocol.EventTaskStarted,
		TaskID:     t.ID,
		Request:    request,
		Intent:     &intentCopy,
		OccurredAt: now,
	}); err != nil {
		return snapshot, err
	}
	if err := e.send(protocol.TaskEvent{
		Event:      protocol.EventTaskStateChanged,
		TaskID:     t.ID,
		State:      protocol.StateReceived,
		OccurredAt: now,
	}); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

// UpdateState moves a task to state if the transition table allows it
func (e *Engine) UpdateState(id string, state protocol.TaskState, message string) error {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	now := e.now()

	e.mu.Lock()
	t, ok := e.tasks[id]
	if !ok {
		e.mu.Unlock()
		return &UnknownTaskError{TaskID: id}
	}
	from := t.State
	if !CanTransition(from, state) {
		e.mu.Unlock()
		return &InvalidTransitionError{TaskID: id, From: from, To: state}
	}
	t.State = state
	t.Message = message
	t.UpdatedAt = now
	e.mu.Unlock()

	e.logger.Debug("task state changed", "task_id", id, "from", from, "to", state)

	return e.send(protocol.TaskEvent{
		Event:      protocol.EventTaskStateChanged,
		TaskID:     id,
		State:      state,
		Previous:   from,
		Message:    message,
		OccurredAt: now,
	})
}

// EmitStreamChunk publishes a piece of incremental output for messageID
func (e *Engine) EmitStreamChunk(id, messageID, chunk string) error {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	now := e.now()
	if err := e.touch(id, now, nil); err != nil {
		return err
	}
	return e.send(protocol.TaskEvent{
		Event:      protocol.EventTaskStreamChunk,
		TaskID:     id,
		MessageID:  messageID,
		Chunk:      chunk,
		OccurredAt: now,
	})
}

// EmitProposal records proposal on the task and publishes it
func (e *Engine) EmitProposal(id string, proposal protocol.Proposal) error {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	now := e.now()
	stored := proposal
	stored.Commands = append([]string(nil), proposal.Commands...)
	if err := e.touch(id, now, func(t *Task) { t.Proposal = &stored }); err != nil {
		return err
	}
	return e.send(protocol.TaskEvent{
		Event:      protocol.EventTaskProposal,
		TaskID:     id,
		Proposal:   &proposal,
		OccurredAt: now,
	})
}

// Finish records a terminal status. It is not checked against the transition
// table; callers decide when a task is done.
func (e *Engine) Finish(id string, status protocol.FinishStatus, message string) error {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	now := e.now()
	var state protocol.TaskState
	err := e.touch(id, now, func(t *Task) {
		t.Status = status
		t.FinishedAt = &now
		if message != "" {
			t.Message = message
		}
		state = t.State
	})
	if err != nil {
		return err
	}

	e.logger.Info("task finished", "task_id", id, "status", status, "state", state)

	return e.send(protocol.TaskEvent{
		Event:      protocol.EventTaskFinished,
		TaskID:     id,
		State:      state,
		Status:     status,
		Message:    message,
		OccurredAt: now,
	})
}

// GetTask returns a copy of the task
func (e *Engine) GetTask(id string) (Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]
	if !ok {
		return Task{}, &UnknownTaskError{TaskID: id}
	}
	return *t.clone(), nil
}

// List returns copies of all tasks ordered by creation time
func (e *Engine) List() []Task {
	e.mu.Lock()
	out := make([]Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		out = append(out, *t.clone())
	}
	e.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (e *Engine) touch(id string, now time.Time, fn func(*Task)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]
	if !ok {
		return &UnknownTaskError{TaskID: id}
	}
	if fn != nil {
		fn(t)
	}
	t.UpdatedAt = now
	return nil
}

func (e *Engine) send(evt protocol.TaskEvent) error {
	if e.emit == nil {
		return nil
	}
	evt.Kind = protocol.MessageKindEvent
	if err := e.emit(evt); err != nil {
		e.logger.Warn("task event emission failed", "task_id", evt.TaskID, "event", evt.Event, "error", err)
		return fmt.Errorf("failed to emit %s for task %s: %w", evt.Event, evt.TaskID, err)
	}
	return nil
}
