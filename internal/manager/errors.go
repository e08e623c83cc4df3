// Package manager owns task contexts and drives task execution: dependency
// checks, retry, timeout, and completion/error callbacks.
package manager

import "fmt"

// StructuralError is a rejection surfaced directly from a manager API call
// rather than recorded as a task's terminal status: CycleDetected,
// UnknownId, or UnknownType.
type StructuralError struct {
	Kind    string
	Message string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func errCycleDetected(format string, args ...any) error {
	return &StructuralError{Kind: "CycleDetected", Message: fmt.Sprintf(format, args...)}
}

func errUnknownID(format string, args ...any) error {
	return &StructuralError{Kind: "UnknownId", Message: fmt.Sprintf(format, args...)}
}

func errUnknownType(format string, args ...any) error {
	return &StructuralError{Kind: "UnknownType", Message: fmt.Sprintf(format, args...)}
}

// IsStructural reports whether err is one of the manager's structural
// rejections, as opposed to a task terminal status.
func IsStructural(err error) bool {
	_, ok := err.(*StructuralError)
	return ok
}
