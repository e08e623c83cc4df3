package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ElementAstro/lithium-scheduler/internal/task"
)

func registerNoop(m *Manager, typeName string, handler task.Handler) {
	m.RegisterType(typeName, func(instanceName string, params map[string]any) (*task.Task, error) {
		return task.New(instanceName, typeName, handler), nil
	})
}

func TestCreateTaskContextUnknownType(t *testing.T) {
	m := New()
	if _, err := m.CreateTaskContext("missing", "t1", nil); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
}

func TestAddDependencyRejectsCycle(t *testing.T) {
	m := New()
	registerNoop(m, "noop", func(ctx context.Context, params map[string]any, h *task.Handle) error { return nil })

	a, _ := m.CreateTaskContext("noop", "t", nil)
	b, _ := m.CreateTaskContext("noop", "t", nil)
	c, _ := m.CreateTaskContext("noop", "t", nil)

	if err := m.AddDependency(b, a); err != nil {
		t.Fatalf("a->b: %v", err)
	}
	if err := m.AddDependency(c, b); err != nil {
		t.Fatalf("b->c: %v", err)
	}
	err := m.AddDependency(a, c)
	if err == nil || !IsStructural(err) {
		t.Fatalf("expected CycleDetected, got %v", err)
	}

	ctxA, _ := m.Context(a)
	if len(ctxA.Dependencies) != 0 {
		t.Fatalf("cycle edge should have been rolled back, got deps %v", ctxA.Dependencies)
	}
}

func TestExecuteTaskDependencyFailed(t *testing.T) {
	m := New()
	registerNoop(m, "fail", func(ctx context.Context, params map[string]any, h *task.Handle) error {
		return errors.New("boom")
	})
	registerNoop(m, "noop", func(ctx context.Context, params map[string]any, h *task.Handle) error { return nil })

	a, _ := m.CreateTaskContext("fail", "t", nil)
	b, _ := m.CreateTaskContext("noop", "t", nil)
	_ = m.AddDependency(b, a)

	_ = m.ExecuteTask(context.Background(), a)
	_ = m.ExecuteTask(context.Background(), b)

	tb, _ := m.Task(b)
	if tb.Status() != task.StatusFailed {
		t.Fatalf("status = %v, want Failed", tb.Status())
	}
	kind, _ := tb.ErrorInfo()
	if kind != task.ErrorDependencyFailed {
		t.Fatalf("kind = %v, want DependencyFailed", kind)
	}
}

func TestExecuteTaskRetriesOnTransientFailure(t *testing.T) {
	m := New()
	var attempts int32
	registerNoop(m, "flaky", func(ctx context.Context, params map[string]any, h *task.Handle) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return errors.New("transient")
		}
		return nil
	})

	id, _ := m.CreateTaskContext("flaky", "t", nil)
	_ = m.SetTaskRetryPolicy(id, 2, 1)

	var sleeps int32
	m.Sleeper = func(ctx context.Context, d time.Duration) error {
		atomic.AddInt32(&sleeps, 1)
		return nil
	}

	if err := m.ExecuteTask(context.Background(), id); err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}

	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if sleeps != 2 {
		t.Fatalf("sleeps = %d, want 2", sleeps)
	}
	ctx, _ := m.Context(id)
	if ctx.AttemptCount != 3 {
		t.Fatalf("AttemptCount = %d, want 3", ctx.AttemptCount)
	}
	tk, _ := m.Task(id)
	if tk.Status() != task.StatusCompleted {
		t.Fatalf("status = %v, want Completed", tk.Status())
	}
}

func TestExecuteTaskExhaustsRetriesAndFails(t *testing.T) {
	m := New()
	var attempts int32
	registerNoop(m, "always-fails", func(ctx context.Context, params map[string]any, h *task.Handle) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("nope")
	})
	id, _ := m.CreateTaskContext("always-fails", "t", nil)
	_ = m.SetTaskRetryPolicy(id, 2, 0)
	m.Sleeper = func(ctx context.Context, d time.Duration) error { return nil }

	var errCalls int32
	m.OnTaskError(func(ctx *TaskContext, kind task.ErrorKind, message string) {
		atomic.AddInt32(&errCalls, 1)
	})

	_ = m.ExecuteTask(context.Background(), id)

	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (1 + 2 retries)", attempts)
	}
	if errCalls != 1 {
		t.Fatalf("error callback fired %d times, want 1", errCalls)
	}
	tk, _ := m.Task(id)
	if tk.Status() != task.StatusFailed {
		t.Fatalf("status = %v, want Failed", tk.Status())
	}
}

func TestExecuteTaskInvalidParameterNeverRetries(t *testing.T) {
	m := New()
	var attempts int32
	m.RegisterType("typed", func(instanceName string, params map[string]any) (*task.Task, error) {
		tk := task.New(instanceName, "typed", func(ctx context.Context, params map[string]any, h *task.Handle) error {
			atomic.AddInt32(&attempts, 1)
			return nil
		})
		tk.AddParamDefinition(task.ParamSpec{Name: "x", Type: task.TypeInteger, Required: true})
		return tk, nil
	})
	id, _ := m.CreateTaskContext("typed", "t", map[string]any{})
	_ = m.SetTaskRetryPolicy(id, 5, 0)

	_ = m.ExecuteTask(context.Background(), id)

	if attempts != 0 {
		t.Fatalf("handler should never run for invalid parameters, ran %d times", attempts)
	}
}

func TestExecuteTaskTimeout(t *testing.T) {
	m := New()
	registerNoop(m, "slow", func(ctx context.Context, params map[string]any, h *task.Handle) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	id, _ := m.CreateTaskContext("slow", "t", nil)
	_ = m.SetTaskTimeout(id, 20*time.Millisecond)

	_ = m.ExecuteTask(context.Background(), id)

	tk, _ := m.Task(id)
	if tk.Status() != task.StatusFailed {
		t.Fatalf("status = %v, want Failed", tk.Status())
	}
	kind, _ := tk.ErrorInfo()
	if kind != task.ErrorTimeout {
		t.Fatalf("kind = %v, want Timeout", kind)
	}
}

func TestCancelAllTasksShortCircuitsFutureExecutions(t *testing.T) {
	m := New()
	var ran int32
	registerNoop(m, "noop", func(ctx context.Context, params map[string]any, h *task.Handle) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	id, _ := m.CreateTaskContext("noop", "t", nil)

	m.CancelAllTasks()
	_ = m.ExecuteTask(context.Background(), id)

	if ran != 0 {
		t.Fatalf("handler should not run after CancelAllTasks")
	}
	tk, _ := m.Task(id)
	if tk.Status() != task.StatusCancelled {
		t.Fatalf("status = %v, want Cancelled", tk.Status())
	}
	kind, _ := tk.ErrorInfo()
	if kind != task.ErrorCancelled {
		t.Fatalf("kind = %v, want Cancelled", kind)
	}
}

func TestCompletionCallbackFiresOnSuccess(t *testing.T) {
	m := New()
	registerNoop(m, "noop", func(ctx context.Context, params map[string]any, h *task.Handle) error { return nil })
	id, _ := m.CreateTaskContext("noop", "t", nil)

	var mu sync.Mutex
	var seen *TaskContext
	m.OnTaskCompletion(func(ctx *TaskContext) {
		mu.Lock()
		seen = ctx
		mu.Unlock()
	})

	_ = m.ExecuteTask(context.Background(), id)

	mu.Lock()
	defer mu.Unlock()
	if seen == nil || seen.ID != id {
		t.Fatalf("completion callback did not fire with expected context")
	}
}
