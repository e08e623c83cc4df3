package script

import "fmt"

// MalformedError reports a structural defect found by
// ValidateSequenceScript or CreateSequenceFromScript.
type MalformedError struct {
	Message string
}

func (e *MalformedError) Error() string { return "ScriptMalformed: " + e.Message }

func errMalformed(format string, args ...any) error {
	return &MalformedError{Message: fmt.Sprintf(format, args...)}
}
