// Package script serializes and deserializes a Sequencer's configuration
// as a portable JSON document, and applies {{key}}/{{key|default:value}}
// parameterized templates over canned documents.
package script

// Document is the sole wire format for a sequencer's configuration.
type Document struct {
	Sequence SequenceDoc `json:"sequence"`
}

// SequenceDoc is the body of Document.Sequence.
type SequenceDoc struct {
	ID             string      `json:"id,omitempty"`
	Strategy       *int        `json:"strategy,omitempty"`
	MaxConcurrency *int        `json:"maxConcurrency,omitempty"`
	Targets        []TargetDoc `json:"targets"`
}

// TargetDoc is one target entry within SequenceDoc.Targets.
type TargetDoc struct {
	Name         string    `json:"name"`
	Tasks        []TaskDoc `json:"tasks,omitempty"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Priority     *int      `json:"priority,omitempty"`
}

// TaskDoc is one task entry within TargetDoc.Tasks.
type TaskDoc struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
}
