package sequencer

// Builder is a fluent helper for assembling a Sequencer's targets and
// dependencies programmatically, for callers that would otherwise
// hand-write a sequence of AddCustomTaskToTarget/AddTargetDependency
// calls.
type Builder struct {
	seq *Sequencer
	err error
}

// NewBuilder wraps seq in a fluent builder.
func NewBuilder(seq *Sequencer) *Builder {
	return &Builder{seq: seq}
}

// Task adds a task of typeName to target, creating the target on first
// use. The generated id is discarded; use AddCustomTaskToTarget directly
// when the id is needed.
func (b *Builder) Task(target, typeName string, params map[string]any) *Builder {
	if b.err != nil {
		return b
	}
	_, b.err = b.seq.AddCustomTaskToTarget(target, typeName, params)
	return b
}

// DependsOn records that target depends on dependsOn.
func (b *Builder) DependsOn(target, dependsOn string) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.seq.AddTargetDependency(target, dependsOn)
	return b
}

// Priority sets target's priority.
func (b *Builder) Priority(target string, priority int) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.seq.SetTargetPriority(target, priority)
	return b
}

// Strategy sets the execution strategy.
func (b *Builder) Strategy(s Strategy) *Builder {
	b.seq.SetExecutionStrategy(s)
	return b
}

// MaxConcurrency sets the concurrency cap.
func (b *Builder) MaxConcurrency(n int) *Builder {
	b.seq.SetMaxConcurrency(n)
	return b
}

// Build returns the assembled Sequencer, or the first error encountered.
func (b *Builder) Build() (*Sequencer, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.seq, nil
}
