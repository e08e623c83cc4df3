package manager

// RetryPolicy is a TaskContext's fixed-delay retry configuration.
type RetryPolicy struct {
	MaxRetries int
	DelayMS    int64
}

// TaskContext is the manager-side binding between a task id, its type,
// target, parameters, and policies. A context carries no status field of
// its own; status always reflects the bound Task so the two never drift.
type TaskContext struct {
	ID     string
	Type   string
	Target string
	Params map[string]any

	Priority     int
	Dependencies map[string]struct{}
	Retry        RetryPolicy
	Timeout      int64 // milliseconds; 0 means no timeout

	AttemptCount int
}

func newContext(id, typeName, target string, params map[string]any) *TaskContext {
	return &TaskContext{
		ID:           id,
		Type:         typeName,
		Target:       target,
		Params:       params,
		Dependencies: make(map[string]struct{}),
	}
}
