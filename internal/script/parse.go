package script

import (
	"github.com/google/uuid"

	"github.com/ElementAstro/lithium-scheduler/internal/sequencer"
)

// CreateSequenceFromScript parses doc and drives seq through
// AddCustomTaskToTarget/AddTargetDependency calls in order. Targets and
// their tasks are created first, in document order, so that a later
// dependency entry can always reference an already-created target;
// dependency edges are added only after every target exists, matching
// the validation pass ValidateSequenceScript already performed.
func CreateSequenceFromScript(seq *sequencer.Sequencer, doc Document) (string, error) {
	if err := ValidateSequenceScriptErr(doc); err != nil {
		return "", err
	}

	if doc.Sequence.Strategy != nil {
		seq.SetExecutionStrategy(sequencer.Strategy(*doc.Sequence.Strategy))
	}
	if doc.Sequence.MaxConcurrency != nil {
		seq.SetMaxConcurrency(*doc.Sequence.MaxConcurrency)
	}

	for _, t := range doc.Sequence.Targets {
		seq.EnsureTarget(t.Name)
		if t.Priority != nil {
			if err := seq.SetTargetPriority(t.Name, *t.Priority); err != nil {
				return "", err
			}
		}
		for _, tk := range t.Tasks {
			if _, err := seq.AddCustomTaskToTarget(t.Name, tk.Type, tk.Parameters); err != nil {
				return "", err
			}
		}
	}

	for _, t := range doc.Sequence.Targets {
		for _, dep := range t.Dependencies {
			if err := seq.AddTargetDependency(t.Name, dep); err != nil {
				return "", err
			}
		}
	}

	id := doc.Sequence.ID
	if id == "" {
		id = uuid.NewString()
	}
	return id, nil
}
