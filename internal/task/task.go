package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Handle is what a Handler receives to talk back to its task: progress
// logging, cooperative cancellation polling, and optional explicit
// error-kind reporting.
type Handle struct {
	task         *Task
	reportedKind ErrorKind
	reportedMsg  string
}

// LogProgress appends a history entry. fraction of -1 means "no
// percentage".
func (h *Handle) LogProgress(message string, fraction float64) {
	h.task.appendHistory(message, fraction)
}

// IsCancelled lets a handler cooperatively poll for cancellation.
func (h *Handle) IsCancelled() bool {
	return h.task.IsCancelled()
}

// ReportError lets a handler supply a more specific error kind than the
// default ExecutionFailed (e.g. DeviceError) before returning its error.
func (h *Handle) ReportError(kind ErrorKind, message string) {
	h.reportedKind = kind
	h.reportedMsg = message
}

// Handler is the opaque task-execution callback. Domain handlers
// (camera, mount, filter wheel, plate-solving, ...) live outside this
// module; it only defines and exercises the contract.
type Handler func(ctx context.Context, params map[string]any, h *Handle) error

// Task is the scheduler's runtime unit. A Task is mutated only by its
// own Execute/Cancel methods and is owned exclusively by the manager
// that created its TaskContext.
type Task struct {
	mu sync.RWMutex

	id       string
	typeName string
	schema   Schema
	handler  Handler

	status       Status
	errorKind    ErrorKind
	errorMessage string
	history      []HistoryEntry
	result       any

	timeout  time.Duration
	priority int
	logLevel int

	startTime time.Time
	endTime   time.Time

	cancelFlag atomic.Bool
	generation atomic.Int64
}

// New constructs a Task bound to a handler. The task-type constructor is
// expected to call AddParamDefinition to install the schema.
func New(id, typeName string, handler Handler) *Task {
	return &Task{
		id:       id,
		typeName: typeName,
		handler:  handler,
		status:   StatusPending,
	}
}

func (t *Task) ID() string       { return t.id }
func (t *Task) TypeName() string { return t.typeName }

// AddParamDefinition accumulates the parameter schema.
func (t *Task) AddParamDefinition(spec ParamSpec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.schema.Add(spec)
}

// AddCompositeValidator attaches a named cross-field validator.
func (t *Task) AddCompositeValidator(v CompositeValidator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.schema.AddComposite(v)
}

func (t *Task) SetTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = d
}

func (t *Task) SetPriority(p int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.priority = p
}

func (t *Task) SetLogLevel(l int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logLevel = l
}

func (t *Task) Timeout() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.timeout
}

func (t *Task) Priority() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.priority
}

// Status returns the current lifecycle state under a shared lock.
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// ErrorInfo returns the terminal (kind, message) pair.
func (t *Task) ErrorInfo() (ErrorKind, string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errorKind, t.errorMessage
}

// History returns a copy of the recorded progress log.
func (t *Task) History() []HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]HistoryEntry, len(t.history))
	copy(out, t.history)
	return out
}

// Result returns the opaque value reported by a successful handler.
func (t *Task) Result() any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

func (t *Task) StartTime() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.startTime
}

func (t *Task) EndTime() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.endTime
}

// Validate runs schema validation without executing the task.
func (t *Task) Validate(params map[string]any) []error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.schema.Validate(params)
}

func (t *Task) appendHistory(message string, fraction float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, HistoryEntry{Time: time.Now(), Message: message, Fraction: fraction})
}

func (t *Task) setTerminal(status Status, kind ErrorKind, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	t.errorKind = kind
	t.errorMessage = message
}

// IsCancelled reports the cooperative cancellation flag.
func (t *Task) IsCancelled() bool {
	return t.cancelFlag.Load()
}

// Cancel sets the cooperative cancellation flag. Idempotent; always
// returns true.
func (t *Task) Cancel() bool {
	t.cancelFlag.Store(true)
	return true
}

// Execute drives the task state machine: cancellation check, validation,
// handler invocation, and terminal-state assignment. It never retries or
// times out on its own; that discipline belongs to the manager.
//
// The manager runs a timed-out attempt's handler in a detached goroutine
// rather than block on it, so each call stamps a generation; a write
// after the handler returns is applied only if no later attempt (and no
// manager-issued Invalidate) has superseded it.
func (t *Task) Execute(ctx context.Context, params map[string]any) {
	gen := t.generation.Add(1)

	t.mu.Lock()
	t.startTime = time.Now()
	t.mu.Unlock()

	if t.IsCancelled() {
		t.setTerminal(StatusFailed, ErrorCancelled, "task was cancelled before execution")
		t.markEnd()
		return
	}

	defaulted := t.schema.WithDefaults(params)
	if errs := t.schema.Validate(params); len(errs) > 0 {
		t.setTerminal(StatusFailed, ErrorInvalidParameter, errs[0].Error())
		t.markEnd()
		return
	}

	t.mu.Lock()
	t.status = StatusInProgress
	t.mu.Unlock()

	handle := &Handle{task: t}
	err := t.handler(ctx, defaulted, handle)

	if t.generation.Load() != gen {
		// A later attempt (or a manager timeout giveup) already decided
		// this task's fate; this attempt's outcome is discarded.
		return
	}

	switch {
	case t.IsCancelled():
		t.setTerminal(StatusCancelled, ErrorCancelled, "cancelled during execution")
	case err != nil:
		kind := handle.reportedKind
		msg := handle.reportedMsg
		if kind == ErrorNone {
			kind = ErrorExecutionFailed
		}
		if msg == "" {
			msg = err.Error()
		}
		t.setTerminal(StatusFailed, kind, msg)
	default:
		t.mu.Lock()
		t.status = StatusCompleted
		t.mu.Unlock()
		t.appendHistory("completed", 1.0)
	}

	t.markEnd()
}

// Invalidate bumps the attempt generation so a still-running, abandoned
// attempt's eventual write is discarded by Execute's staleness check.
// Called by the manager when it gives up waiting on a timed-out attempt.
func (t *Task) Invalidate() {
	t.generation.Add(1)
}

func (t *Task) markEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endTime = time.Now()
}

// MarkTimeout records a Timeout failure, unless the handler already won
// the race and completed successfully. It takes precedence over a
// Cancelled status recorded by Execute's own cooperative-cancellation
// check, since the caller only invokes MarkTimeout when it knows the
// cancellation was timeout-driven, not a manual Cancel.
func (t *Task) MarkTimeout() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusCompleted {
		return
	}
	t.status = StatusFailed
	t.errorKind = ErrorTimeout
	t.errorMessage = "attempt exceeded its timeout budget"
	t.endTime = time.Now()
}

// ForceTerminal lets the owning manager assign a terminal status without
// running the handler, used for DependencyFailed where the task never
// executes at all.
func (t *Task) ForceTerminal(status Status, kind ErrorKind, message string) {
	t.mu.Lock()
	t.startTime = time.Now()
	t.endTime = t.startTime
	t.status = status
	t.errorKind = kind
	t.errorMessage = message
	t.mu.Unlock()
}

// SetResult lets a handler (via a closure capturing the Task through its
// TaskContext owner) stash an opaque result value. Exposed for the
// manager package, which owns both Task and TaskContext.
func (t *Task) SetResult(v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result = v
}
