package sequencer

import "fmt"

// StructuralError is a rejection returned directly from a sequencer API
// call: CycleDetected or UnknownId.
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

func errUnknownTarget(format string, args ...any) error {
	return &StructuralError{Kind: "UnknownId", Message: fmt.Sprintf(format, args...)}
}

// IsStructural reports whether err is a sequencer structural rejection.
func IsStructural(err error) bool {
	_, ok := err.(*StructuralError)
	return ok
}
