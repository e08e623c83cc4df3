// Package sequencer composes tasks into named targets, maintains a
// target-level dependency DAG, and drives execution of that DAG under a
// pluggable strategy.
package sequencer

// Target is a named, ordered container of task ids. The order of
// TaskIDs is significant: every strategy executes a target's own tasks
// in this declared order.
type Target struct {
	Name         string
	TaskIDs      []string
	Dependencies map[string]struct{}
	Priority     int
}

func newTarget(name string) *Target {
	return &Target{Name: name, Dependencies: make(map[string]struct{})}
}


func (t *Target) dependencyNamesMap() map[string]struct{} {
	out := make(map[string]struct{}, len(t.Dependencies))
	for n := range t.Dependencies {
		out[n] = struct{}{}
	}
	return out
}
