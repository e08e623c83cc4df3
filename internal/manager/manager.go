package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ElementAstro/lithium-scheduler/internal/task"
	"github.com/ElementAstro/lithium-scheduler/internal/telemetry"
)

// Factory constructs a Task for a registered type name. The constructor
// is expected to install the parameter schema via AddParamDefinition.
type Factory func(instanceName string, params map[string]any) (*task.Task, error)

// CompletionCallback is invoked synchronously after a task reaches
// Completed.
type CompletionCallback func(ctx *TaskContext)

// ErrorCallback is invoked synchronously after a task reaches Failed or
// Cancelled.
type ErrorCallback func(ctx *TaskContext, kind task.ErrorKind, message string)

// Manager owns every TaskContext and Task created for a given run. All
// mutation of the id maps is serialized by mu. Sleeper is swappable so
// retry-loop tests don't sleep in real time.
type Manager struct {
	mu sync.RWMutex

	contexts map[string]*TaskContext
	tasks    map[string]*task.Task
	factory  map[string]Factory

	cancelled bool

	onCompletion []CompletionCallback
	onError      []ErrorCallback

	Sleeper telemetry.Sleeper
}

// New constructs an empty Manager with a per-manager type registry, so
// tests can isolate their registrations from one another.
func New() *Manager {
	return &Manager{
		contexts: make(map[string]*TaskContext),
		tasks:    make(map[string]*task.Task),
		factory:  make(map[string]Factory),
		Sleeper:  telemetry.RealSleeper,
	}
}

// RegisterType adds a constructor to the per-manager factory registry.
func (m *Manager) RegisterType(typeName string, ctor Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factory[typeName] = ctor
}

// OnTaskCompletion registers a completion callback.
func (m *Manager) OnTaskCompletion(fn CompletionCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCompletion = append(m.onCompletion, fn)
}

// OnTaskError registers an error callback.
func (m *Manager) OnTaskError(fn ErrorCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = append(m.onError, fn)
}

// AddTask registers an already-constructed Task under a fresh id.
func (m *Manager) AddTask(t *task.Task, target string, params map[string]any) string {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id] = t
	m.contexts[id] = newContext(id, t.TypeName(), target, params)
	return id
}

// CreateTaskContext constructs a Task via the registered factory for
// typeName and registers both it and its context.
func (m *Manager) CreateTaskContext(typeName, target string, params map[string]any) (string, error) {
	m.mu.Lock()
	ctor, ok := m.factory[typeName]
	m.mu.Unlock()
	if !ok {
		return "", errUnknownType("no constructor registered for type %q", typeName)
	}

	id := uuid.NewString()
	t, err := ctor(id, params)
	if err != nil {
		return "", fmt.Errorf("construct task %q: %w", typeName, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id] = t
	m.contexts[id] = newContext(id, typeName, target, params)
	return id, nil
}

// AddDependency inserts dependsOn into id's dependency set, rejecting a
// cycle or unknown id. The edge is transactional: on cycle detection it
// is rolled back before returning.
func (m *Manager) AddDependency(id, dependsOn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, ok := m.contexts[id]
	if !ok {
		return errUnknownID("context %q does not exist", id)
	}
	if _, ok := m.contexts[dependsOn]; !ok {
		return errUnknownID("context %q does not exist", dependsOn)
	}

	ctx.Dependencies[dependsOn] = struct{}{}
	if m.hasCycleLocked() {
		delete(ctx.Dependencies, dependsOn)
		return errCycleDetected("adding dependency %q -> %q would create a cycle", id, dependsOn)
	}
	return nil
}

// hasCycleLocked runs DFS-with-visiting-set cycle detection over the
// context dependency graph. Caller must hold mu.
func (m *Manager) hasCycleLocked() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(m.contexts))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for dep := range m.contexts[id].Dependencies {
			switch color[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for id := range m.contexts {
		if color[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// SetTaskTimeout sets the per-context timeout.
func (m *Manager) SetTaskTimeout(id string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, ok := m.contexts[id]
	if !ok {
		return errUnknownID("context %q does not exist", id)
	}
	ctx.Timeout = d.Milliseconds()
	m.tasks[id].SetTimeout(d)
	return nil
}

// SetTaskRetryPolicy sets the per-context fixed-delay retry policy.
func (m *Manager) SetTaskRetryPolicy(id string, maxRetries int, delayMS int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, ok := m.contexts[id]
	if !ok {
		return errUnknownID("context %q does not exist", id)
	}
	ctx.Retry = RetryPolicy{MaxRetries: maxRetries, DelayMS: delayMS}
	return nil
}

// SetTaskPriority sets the per-context priority (higher runs first under
// the Priority strategy).
func (m *Manager) SetTaskPriority(id string, priority int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, ok := m.contexts[id]
	if !ok {
		return errUnknownID("context %q does not exist", id)
	}
	ctx.Priority = priority
	m.tasks[id].SetPriority(priority)
	return nil
}

// Context returns the TaskContext for id.
func (m *Manager) Context(id string) (*TaskContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.contexts[id]
	if !ok {
		return nil, errUnknownID("context %q does not exist", id)
	}
	return ctx, nil
}

// Task returns the Task runtime object for id.
func (m *Manager) Task(id string) (*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, errUnknownID("task %q does not exist", id)
	}
	return t, nil
}

// dependenciesSatisfied reports whether every dependency of id is
// Completed.
func (m *Manager) dependenciesSatisfied(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx := m.contexts[id]
	for dep := range ctx.Dependencies {
		if m.tasks[dep].Status() != task.StatusCompleted {
			return false
		}
	}
	return true
}

// ExecuteTask drives id through the attempt/retry/timeout loop. It
// returns an error only when execution was rejected structurally; a
// handler failure after retries are exhausted is reported via the error
// callback and the task's own terminal status, not as a Go error, so a
// sequence keeps going past failed tasks.
func (m *Manager) ExecuteTask(ctx context.Context, id string) error {
	m.mu.RLock()
	cancelled := m.cancelled
	m.mu.RUnlock()

	t, err := m.Task(id)
	if err != nil {
		return err
	}
	tctx, err := m.Context(id)
	if err != nil {
		return err
	}

	if cancelled {
		t.Cancel()
		t.ForceTerminal(task.StatusCancelled, task.ErrorCancelled, "manager cancelled before execution")
		m.fireTerminal(tctx, t)
		return nil
	}

	if !m.dependenciesSatisfied(id) {
		m.mu.Lock()
		tctx.AttemptCount++
		m.mu.Unlock()
		m.markDependencyFailed(t)
		m.fireTerminal(tctx, t)
		return nil
	}

	policy := tctx.Retry
	attempts := policy.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	timeout := time.Duration(tctx.Timeout) * time.Millisecond

	for attempt := 1; attempt <= attempts; attempt++ {
		m.mu.Lock()
		tctx.AttemptCount = attempt
		m.mu.Unlock()

		m.runOneAttempt(ctx, t, tctx, timeout)

		status := t.Status()
		if status == task.StatusCompleted {
			m.fireTerminal(tctx, t)
			return nil
		}

		kind, _ := t.ErrorInfo()
		if !kind.Retryable() || attempt == attempts {
			m.fireTerminal(tctx, t)
			return nil
		}

		if err := m.Sleeper(ctx, time.Duration(policy.DelayMS)*time.Millisecond); err != nil {
			m.fireTerminal(tctx, t)
			return nil
		}
	}
	return nil
}

// runOneAttempt executes t once, racing it against timeout when one is
// configured.
func (m *Manager) runOneAttempt(ctx context.Context, t *task.Task, tctx *TaskContext, timeout time.Duration) {
	if timeout <= 0 {
		t.Execute(ctx, tctx.Params)
		return
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		t.Execute(attemptCtx, tctx.Params)
		close(done)
	}()

	select {
	case <-done:
	case <-attemptCtx.Done():
		// The handler is still running; rather than block on it (it may
		// never poll cancellation), invalidate this attempt and record
		// Timeout now. The goroutine's eventual write, if any, is
		// discarded by Execute's own staleness check.
		t.Invalidate()
		t.MarkTimeout()
	}
}

func (m *Manager) markDependencyFailed(t *task.Task) {
	t.ForceTerminal(task.StatusFailed, task.ErrorDependencyFailed, "one or more dependencies did not complete")
}

func (m *Manager) fireTerminal(tctx *TaskContext, t *task.Task) {
	m.mu.RLock()
	completions := append([]CompletionCallback(nil), m.onCompletion...)
	errs := append([]ErrorCallback(nil), m.onError...)
	m.mu.RUnlock()

	switch t.Status() {
	case task.StatusCompleted:
		for _, fn := range completions {
			fn(tctx)
		}
	default:
		kind, msg := t.ErrorInfo()
		for _, fn := range errs {
			fn(tctx, kind, msg)
		}
	}
}

// CancelTask cooperatively cancels a single in-flight or pending task.
func (m *Manager) CancelTask(id string) error {
	t, err := m.Task(id)
	if err != nil {
		return err
	}
	t.Cancel()
	return nil
}

// CancelAllTasks sets the manager-wide cancel flag and cancels every
// known task. Subsequent ExecuteTask calls short-circuit to Cancelled.
func (m *Manager) CancelAllTasks() {
	m.mu.Lock()
	m.cancelled = true
	tasks := make([]*task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
}

// IsCancelled reports the manager-wide cancel flag.
func (m *Manager) IsCancelled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancelled
}

// ExecuteTasksInOrder runs ids sequentially in the given order; the
// sequencer uses it to run one target's task list in declared order.
func (m *Manager) ExecuteTasksInOrder(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := m.ExecuteTask(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
