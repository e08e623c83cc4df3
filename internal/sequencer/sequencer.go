package sequencer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ElementAstro/lithium-scheduler/internal/manager"
	"github.com/ElementAstro/lithium-scheduler/internal/task"
)

// OptimizationCallback receives the diagnostic report emitted by
// OptimizeSequence.
type OptimizationCallback func(report OptimizationReport)

// Sequencer owns a task manager and the target/target-dependency
// structures, and drives execution of the target DAG under a pluggable
// Strategy.
type Sequencer struct {
	mu sync.RWMutex

	manager *manager.Manager

	strategy       Strategy
	maxConcurrency int
	retryDefaults  manager.RetryPolicy
	timeoutDefault time.Duration

	targets        map[string]*Target
	insertionOrder []string

	running   bool
	paused    bool
	cancelled bool

	total     int
	completed int
	startedAt time.Time

	onOptimization []OptimizationCallback

	tracer trace.Tracer
}

// New constructs an empty Sequencer bound to mgr, defaulting to
// Sequential strategy with a concurrency cap of 1.
func New(mgr *manager.Manager) *Sequencer {
	return &Sequencer{
		manager:        mgr,
		strategy:       Sequential,
		maxConcurrency: 1,
		targets:        make(map[string]*Target),
		tracer:         otel.Tracer("lithium-scheduler-sequencer"),
	}
}

// Manager returns the sequencer's owned task manager, for callers that
// need direct access (e.g. the script layer registering factories).
func (s *Sequencer) Manager() *manager.Manager { return s.manager }

// EnsureTarget creates targetName if it doesn't already exist, with an
// empty task list. Exposed for the script layer: a target declared in a
// document with no tasks of its own (only dependencies) still needs to
// exist before AddTargetDependency can reference it.
func (s *Sequencer) EnsureTarget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureTargetLocked(name)
}

func (s *Sequencer) ensureTargetLocked(name string) *Target {
	t, ok := s.targets[name]
	if !ok {
		t = newTarget(name)
		s.targets[name] = t
		s.insertionOrder = append(s.insertionOrder, name)
	}
	return t
}

// AddCustomTaskToTarget creates a task context through the manager and
// appends its id to target's task list, creating the target on first
// use.
func (s *Sequencer) AddCustomTaskToTarget(targetName, typeName string, params map[string]any) (string, error) {
	id, err := s.manager.CreateTaskContext(typeName, targetName, params)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	t := s.ensureTargetLocked(targetName)
	t.TaskIDs = append(t.TaskIDs, id)
	retry, timeout := s.retryDefaults, s.timeoutDefault
	s.mu.Unlock()

	if retry != (manager.RetryPolicy{}) {
		if err := s.manager.SetTaskRetryPolicy(id, retry.MaxRetries, retry.DelayMS); err != nil {
			return "", err
		}
	}
	if timeout > 0 {
		if err := s.manager.SetTaskTimeout(id, timeout); err != nil {
			return "", err
		}
	}
	return id, nil
}

// RemoveCustomTaskFromTarget removes id from target's task list and
// cancels its context.
func (s *Sequencer) RemoveCustomTaskFromTarget(targetName, id string) error {
	s.mu.Lock()
	t, ok := s.targets[targetName]
	if !ok {
		s.mu.Unlock()
		return errUnknownTarget("target %q does not exist", targetName)
	}
	for i, tid := range t.TaskIDs {
		if tid == id {
			t.TaskIDs = append(t.TaskIDs[:i], t.TaskIDs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return s.manager.CancelTask(id)
}

// AddTargetDependency adds a dependency edge, transactionally rolling it
// back on cycle detection so the DAG is left unchanged.
func (s *Sequencer) AddTargetDependency(target, dependsOn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.targets[target]
	if !ok {
		return errUnknownTarget("target %q does not exist", target)
	}
	if _, ok := s.targets[dependsOn]; !ok {
		return errUnknownTarget("target %q does not exist", dependsOn)
	}

	t.Dependencies[dependsOn] = struct{}{}
	if s.hasCycleLocked() {
		delete(t.Dependencies, dependsOn)
		return errCycleDetected("adding dependency %q -> %q would create a cycle", target, dependsOn)
	}
	return nil
}

// SetTargetPriority sets the named target's priority.
func (s *Sequencer) SetTargetPriority(name string, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[name]
	if !ok {
		return errUnknownTarget("target %q does not exist", name)
	}
	t.Priority = priority
	return nil
}

// RemoveTargetDependency removes a dependency edge if present.
func (s *Sequencer) RemoveTargetDependency(target, dependsOn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[target]
	if !ok {
		return errUnknownTarget("target %q does not exist", target)
	}
	delete(t.Dependencies, dependsOn)
	return nil
}

// GetTargetExecutionOrder computes a topological order of target names.
func (s *Sequencer) GetTargetExecutionOrder() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.targetExecutionOrderLocked()
}

// ValidateSequenceDependencies reports whether the target graph is
// currently acyclic.
func (s *Sequencer) ValidateSequenceDependencies() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.hasCycleLocked()
}

// SetExecutionStrategy sets the strategy used by the next ExecuteSequence.
func (s *Sequencer) SetExecutionStrategy(strategy Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategy = strategy
}

// SetMaxConcurrency sets the worker-pool size for Parallel/Adaptive/Priority.
func (s *Sequencer) SetMaxConcurrency(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = 1
	}
	s.maxConcurrency = n
}

// SetRetryDefaults and SetTimeoutDefault configure the policies that
// AddCustomTaskToTarget applies to each context it creates; a zero value
// leaves the manager's own default in place. Contexts created before the
// call keep their existing policies.
func (s *Sequencer) SetRetryDefaults(p manager.RetryPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryDefaults = p
}

func (s *Sequencer) SetTimeoutDefault(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeoutDefault = d
}

// PauseExecution and ResumeExecution set cooperative flags honored at
// the next suspension point of the running strategy loop. A pause set
// before ExecuteSequence starts holds the run at its first boundary.
func (s *Sequencer) PauseExecution() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

func (s *Sequencer) ResumeExecution() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// CancelExecution stops dispatch of new targets/tasks and cancels every
// task known to the manager.
func (s *Sequencer) CancelExecution() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
	s.manager.CancelAllTasks()
}

// GetExecutionProgress returns completed/total at target granularity, or
// 0 if total is 0.
func (s *Sequencer) GetExecutionProgress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.total == 0 {
		return 0
	}
	return float64(s.completed) / float64(s.total)
}

// GetEstimatedCompletionTime extrapolates elapsed time against progress
// fraction.
func (s *Sequencer) GetEstimatedCompletionTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.completed == 0 || s.total == 0 {
		return time.Now()
	}
	fraction := float64(s.completed) / float64(s.total)
	elapsed := time.Since(s.startedAt)
	return s.startedAt.Add(time.Duration(float64(elapsed) / fraction))
}

// Strategy returns the currently configured strategy.
func (s *Sequencer) Strategy() Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strategy
}

// MaxConcurrency returns the currently configured concurrency cap.
func (s *Sequencer) MaxConcurrency() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxConcurrency
}

// TargetNames returns target names in the order they were first added.
func (s *Sequencer) TargetNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.insertionOrder...)
}

// TargetSnapshot returns a shallow copy of the named target's state, for
// read-only inspection by the script layer.
func (s *Sequencer) TargetSnapshot(name string) (Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[name]
	if !ok {
		return Target{}, false
	}
	return Target{
		Name:         t.Name,
		TaskIDs:      append([]string(nil), t.TaskIDs...),
		Dependencies: t.dependencyNamesMap(),
		Priority:     t.Priority,
	}, true
}

// OnSequenceOptimization registers a callback invoked by OptimizeSequence.
func (s *Sequencer) OnSequenceOptimization(fn OptimizationCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOptimization = append(s.onOptimization, fn)
}

// waitIfPaused blocks in small increments while paused, returning false
// if cancelled fires meanwhile or ctx is done.
func (s *Sequencer) waitIfPaused(ctx context.Context) bool {
	for {
		s.mu.RLock()
		paused, cancelled := s.paused, s.cancelled
		s.mu.RUnlock()
		if cancelled {
			return false
		}
		if !paused {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *Sequencer) isCancelled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancelled
}

// executeTargetTasks runs a single target's task ids sequentially in
// declared order, regardless of the between-target strategy.
func (s *Sequencer) executeTargetTasks(ctx context.Context, name string) error {
	s.mu.RLock()
	t := s.targets[name]
	ids := append([]string(nil), t.TaskIDs...)
	s.mu.RUnlock()

	return s.manager.ExecuteTasksInOrder(ctx, ids)
}

func (s *Sequencer) incrementCompleted() {
	s.mu.Lock()
	s.completed++
	s.mu.Unlock()
}

// ExecuteSequence is the entry point driving the configured strategy
// over the target DAG.
func (s *Sequencer) ExecuteSequence(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "sequencer.execute_sequence")
	defer span.End()

	order, err := s.GetTargetExecutionOrder()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.running = true
	s.cancelled = false
	s.total = len(order)
	s.completed = 0
	s.startedAt = time.Now()
	strategy := s.strategy
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("strategy", strategy.String()),
		attribute.Int("targets", len(order)),
	)

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	switch strategy {
	case Sequential:
		return s.runSequential(ctx, order)
	case Parallel:
		return s.runParallel(ctx, order)
	case Adaptive:
		return s.runAdaptive(ctx, order)
	case Priority:
		return s.runPriority(ctx)
	default:
		return fmt.Errorf("unknown execution strategy %v", strategy)
	}
}

func (s *Sequencer) runSequential(ctx context.Context, order []string) error {
	for _, name := range order {
		if !s.waitIfPaused(ctx) {
			return nil
		}
		if err := s.executeTargetTasks(ctx, name); err != nil {
			return err
		}
		s.incrementCompleted()
	}
	return nil
}

// runConcurrent dispatches items into a worker pool of the configured
// size, running fn for each and waiting for all to finish.
func (s *Sequencer) runConcurrent(ctx context.Context, items []string, fn func(ctx context.Context, item string)) {
	s.mu.RLock()
	limit := s.maxConcurrency
	s.mu.RUnlock()
	if limit < 1 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for _, item := range items {
		if !s.waitIfPaused(ctx) {
			break
		}
		item := item
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, item)
		}()
	}
	wg.Wait()
}

// runParallel dispatches every target concurrently without enforcing
// target dependencies.
func (s *Sequencer) runParallel(ctx context.Context, order []string) error {
	s.runConcurrent(ctx, order, func(ctx context.Context, name string) {
		if s.isCancelled() {
			return
		}
		_ = s.executeTargetTasks(ctx, name)
		s.incrementCompleted()
	})
	return nil
}

// runAdaptive dispatches ready targets wave by wave: each wave is the
// set of not-yet-executed targets whose dependencies are all satisfied.
func (s *Sequencer) runAdaptive(ctx context.Context, order []string) error {
	executed := make(map[string]bool, len(order))

	for len(executed) < len(order) {
		if !s.waitIfPaused(ctx) {
			return nil
		}

		s.mu.RLock()
		var ready []string
		for _, name := range order {
			if executed[name] {
				continue
			}
			t := s.targets[name]
			allDone := true
			for dep := range t.Dependencies {
				if !executed[dep] {
					allDone = false
					break
				}
			}
			if allDone {
				ready = append(ready, name)
			}
		}
		s.mu.RUnlock()

		if len(ready) == 0 {
			return fmt.Errorf("internal error: no ready targets but %d of %d remain (latent cycle?)", len(order)-len(executed), len(order))
		}

		s.runConcurrent(ctx, ready, func(ctx context.Context, name string) {
			if s.isCancelled() {
				return
			}
			_ = s.executeTargetTasks(ctx, name)
			s.incrementCompleted()
		})

		for _, name := range ready {
			executed[name] = true
		}
	}
	return nil
}

// runPriority flattens every target's task ids into one list and
// executes them by descending context priority under the concurrency
// cap, deferring tasks whose dependencies are unmet to a later pass.
func (s *Sequencer) runPriority(ctx context.Context) error {
	s.mu.RLock()
	pending := make([]string, 0)
	for _, name := range s.insertionOrder {
		pending = append(pending, s.targets[name].TaskIDs...)
	}
	s.mu.RUnlock()

	for len(pending) > 0 {
		if !s.waitIfPaused(ctx) {
			return nil
		}

		var ready, deferred []string
		for _, id := range pending {
			tctx, err := s.manager.Context(id)
			if err != nil {
				continue
			}
			depsMet := true
			for dep := range tctx.Dependencies {
				t, err := s.manager.Task(dep)
				if err != nil || t.Status() != task.StatusCompleted {
					depsMet = false
					break
				}
			}
			if depsMet {
				ready = append(ready, id)
			} else {
				deferred = append(deferred, id)
			}
		}

		if len(ready) == 0 {
			return fmt.Errorf("internal error: no ready tasks but %d remain (latent cycle?)", len(pending))
		}

		sort.SliceStable(ready, func(i, j int) bool {
			ci, _ := s.manager.Context(ready[i])
			cj, _ := s.manager.Context(ready[j])
			return ci.Priority > cj.Priority
		})

		s.runConcurrent(ctx, ready, func(ctx context.Context, id string) {
			if s.isCancelled() {
				return
			}
			_ = s.manager.ExecuteTask(ctx, id)
		})

		pending = deferred
	}
	s.mu.Lock()
	s.completed = s.total
	s.mu.Unlock()
	return nil
}
