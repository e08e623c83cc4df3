package sequencer

// Strategy selects how targets, already in topological order, are
// dispatched to the task manager. Within a target, tasks always run in
// declared order regardless of strategy.
type Strategy int

const (
	// Sequential executes the topological order one target at a time.
	Sequential Strategy = iota
	// Parallel dispatches all targets into a worker pool of the
	// configured size without enforcing target dependencies.
	Parallel
	// Adaptive dispatches targets wave by wave, each wave being the set
	// of targets whose dependencies are all satisfied.
	Adaptive
	// Priority flattens all task ids and executes them by context
	// priority under a max_concurrency pool, honoring dependencies by
	// deferring tasks whose dependencies are unmet.
	Priority
)

func (s Strategy) String() string {
	switch s {
	case Sequential:
		return "sequential"
	case Parallel:
		return "parallel"
	case Adaptive:
		return "adaptive"
	case Priority:
		return "priority"
	default:
		return "unknown"
	}
}
