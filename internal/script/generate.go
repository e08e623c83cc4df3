package script

import (
	"github.com/ElementAstro/lithium-scheduler/internal/sequencer"
)

// GenerateSequenceScript emits seq's current configuration as a Document,
// the inverse of CreateSequenceFromScript. Task ids are included so a
// caller that wants an identical round-trip (modulo regenerated ids on
// re-parse) can match entries; CreateSequenceFromScript itself ignores
// TaskDoc.ID on parse, since the manager always mints a fresh id.
func GenerateSequenceScript(seq *sequencer.Sequencer, sequenceID string) Document {
	strategy := int(seq.Strategy())
	maxConcurrency := seq.MaxConcurrency()

	doc := Document{
		Sequence: SequenceDoc{
			ID:             sequenceID,
			Strategy:       &strategy,
			MaxConcurrency: &maxConcurrency,
		},
	}

	mgr := seq.Manager()
	for _, name := range seq.TargetNames() {
		snap, ok := seq.TargetSnapshot(name)
		if !ok {
			continue
		}

		td := TargetDoc{Name: snap.Name}
		if snap.Priority != 0 {
			p := snap.Priority
			td.Priority = &p
		}
		for dep := range snap.Dependencies {
			td.Dependencies = append(td.Dependencies, dep)
		}

		for _, id := range snap.TaskIDs {
			tctx, err := mgr.Context(id)
			if err != nil {
				continue
			}
			td.Tasks = append(td.Tasks, TaskDoc{
				ID:         id,
				Type:       tctx.Type,
				Parameters: tctx.Params,
			})
		}

		doc.Sequence.Targets = append(doc.Sequence.Targets, td)
	}

	return doc
}
