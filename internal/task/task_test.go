package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newNoop(t *testing.T, handler Handler) *Task {
	t.Helper()
	tk := New("t-1", "noop", handler)
	return tk
}

func TestExecuteSuccess(t *testing.T) {
	tk := newNoop(t, func(ctx context.Context, params map[string]any, h *Handle) error {
		h.LogProgress("working", 0.5)
		return nil
	})
	tk.Execute(context.Background(), map[string]any{})

	if got := tk.Status(); got != StatusCompleted {
		t.Fatalf("status = %v, want Completed", got)
	}
	hist := tk.History()
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2 (progress + completed)", len(hist))
	}
	if tk.StartTime().IsZero() || tk.EndTime().IsZero() {
		t.Fatalf("expected start/end time to be set")
	}
}

func TestExecuteInvalidParameter(t *testing.T) {
	tk := newNoop(t, func(ctx context.Context, params map[string]any, h *Handle) error {
		t.Fatalf("handler must not run when validation fails")
		return nil
	})
	tk.AddParamDefinition(ParamSpec{Name: "exposure", Type: TypeNumber, Required: true})
	tk.Execute(context.Background(), map[string]any{})

	if got := tk.Status(); got != StatusFailed {
		t.Fatalf("status = %v, want Failed", got)
	}
	kind, _ := tk.ErrorInfo()
	if kind != ErrorInvalidParameter {
		t.Fatalf("error kind = %v, want InvalidParameter", kind)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	tk := newNoop(t, nil)
	tk.AddParamDefinition(ParamSpec{Name: "a", Type: TypeString, Required: true})
	tk.AddParamDefinition(ParamSpec{Name: "b", Type: TypeInteger, Required: true})

	errs := tk.Validate(map[string]any{})
	if len(errs) != 2 {
		t.Fatalf("errors = %d, want 2 (both required fields missing)", len(errs))
	}
}

func TestExecuteHandlerFailure(t *testing.T) {
	tk := newNoop(t, func(ctx context.Context, params map[string]any, h *Handle) error {
		return errors.New("boom")
	})
	tk.Execute(context.Background(), map[string]any{})

	if got := tk.Status(); got != StatusFailed {
		t.Fatalf("status = %v, want Failed", got)
	}
	kind, msg := tk.ErrorInfo()
	if kind != ErrorExecutionFailed {
		t.Fatalf("error kind = %v, want ExecutionFailed", kind)
	}
	if msg != "boom" {
		t.Fatalf("error message = %q, want %q", msg, "boom")
	}
}

func TestExecuteReportedErrorKind(t *testing.T) {
	tk := newNoop(t, func(ctx context.Context, params map[string]any, h *Handle) error {
		h.ReportError(ErrorDeviceError, "camera offline")
		return errors.New("boom")
	})
	tk.Execute(context.Background(), map[string]any{})

	kind, msg := tk.ErrorInfo()
	if kind != ErrorDeviceError || msg != "camera offline" {
		t.Fatalf("got (%v, %q), want (DeviceError, %q)", kind, msg, "camera offline")
	}
}

func TestCancelBeforeExecutionSkipsHandler(t *testing.T) {
	tk := newNoop(t, func(ctx context.Context, params map[string]any, h *Handle) error {
		t.Fatalf("handler must not run after cancellation")
		return nil
	})
	if ok := tk.Cancel(); !ok {
		t.Fatalf("Cancel() = false, want true")
	}
	tk.Execute(context.Background(), map[string]any{})

	if got := tk.Status(); got != StatusFailed {
		t.Fatalf("status = %v, want Failed", got)
	}
	kind, _ := tk.ErrorInfo()
	if kind != ErrorCancelled {
		t.Fatalf("error kind = %v, want Cancelled", kind)
	}
}

func TestCooperativeCancellationDuringExecution(t *testing.T) {
	tk := newNoop(t, func(ctx context.Context, params map[string]any, h *Handle) error {
		for !h.IsCancelled() {
			time.Sleep(time.Millisecond)
		}
		return nil
	})

	go func() {
		time.Sleep(5 * time.Millisecond)
		tk.Cancel()
	}()
	tk.Execute(context.Background(), map[string]any{})

	if got := tk.Status(); got != StatusCancelled {
		t.Fatalf("status = %v, want Cancelled", got)
	}
}

func TestDefaultsAppliedBeforeValidation(t *testing.T) {
	var seen map[string]any
	tk := newNoop(t, func(ctx context.Context, params map[string]any, h *Handle) error {
		seen = params
		return nil
	})
	tk.AddParamDefinition(ParamSpec{Name: "gain", Type: TypeInteger, Default: 100})
	tk.Execute(context.Background(), map[string]any{})

	if got, _ := seen["gain"].(int); got != 100 {
		t.Fatalf("gain = %v, want 100 (default)", seen["gain"])
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	tk := newNoop(t, nil)
	if !tk.Cancel() || !tk.Cancel() {
		t.Fatalf("Cancel() should always return true")
	}
	if !tk.IsCancelled() {
		t.Fatalf("expected task to report cancelled")
	}
}
