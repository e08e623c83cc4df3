package sequencer

// OptimizationReport is the diagnostic document produced by
// OptimizeSequence and SuggestOptimizations: the current execution
// order, a histogram of task types, and the targets with no
// dependencies of their own (safe to run concurrently).
type OptimizationReport struct {
	ExecutionOrder        []string       `json:"execution_order"`
	TaskTypeHistogram     map[string]int `json:"task_type_histogram"`
	ParallelizableTargets []string       `json:"parallelizable_targets"`
}

// OptimizeSequence computes the diagnostic report and emits it to every
// registered optimization callback.
func (s *Sequencer) OptimizeSequence() (OptimizationReport, error) {
	order, err := s.GetTargetExecutionOrder()
	if err != nil {
		return OptimizationReport{}, err
	}

	s.mu.RLock()
	histogram := make(map[string]int)
	var parallelizable []string
	for _, name := range s.insertionOrder {
		t := s.targets[name]
		if len(t.Dependencies) == 0 {
			parallelizable = append(parallelizable, name)
		}
		for _, id := range t.TaskIDs {
			if tctx, err := s.manager.Context(id); err == nil {
				histogram[tctx.Type]++
			}
		}
	}
	callbacks := append([]OptimizationCallback(nil), s.onOptimization...)
	s.mu.RUnlock()

	report := OptimizationReport{
		ExecutionOrder:        order,
		TaskTypeHistogram:     histogram,
		ParallelizableTargets: parallelizable,
	}
	for _, fn := range callbacks {
		fn(report)
	}
	return report, nil
}

// SuggestOptimizations is OptimizeSequence without the side effect of
// invoking the registered callbacks, for callers that only want the
// diagnostic.
func (s *Sequencer) SuggestOptimizations() (OptimizationReport, error) {
	order, err := s.GetTargetExecutionOrder()
	if err != nil {
		return OptimizationReport{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	histogram := make(map[string]int)
	var parallelizable []string
	for _, name := range s.insertionOrder {
		t := s.targets[name]
		if len(t.Dependencies) == 0 {
			parallelizable = append(parallelizable, name)
		}
		for _, id := range t.TaskIDs {
			if tctx, err := s.manager.Context(id); err == nil {
				histogram[tctx.Type]++
			}
		}
	}
	return OptimizationReport{
		ExecutionOrder:        order,
		TaskTypeHistogram:     histogram,
		ParallelizableTargets: parallelizable,
	}, nil
}

// Statistics is a point-in-time snapshot of the sequencer's progress,
// so monitoring surfaces have a single call to read instead of
// composing several accessors.
type Statistics struct {
	Strategy         string  `json:"strategy"`
	TotalTargets     int     `json:"total_targets"`
	CompletedTargets int     `json:"completed_targets"`
	ProgressFraction float64 `json:"progress_fraction"`
	Running          bool    `json:"running"`
	Paused           bool    `json:"paused"`
	Cancelled        bool    `json:"cancelled"`
}

// GetStatistics returns the current Statistics snapshot.
func (s *Sequencer) GetStatistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fraction := 0.0
	if s.total > 0 {
		fraction = float64(s.completed) / float64(s.total)
	}
	return Statistics{
		Strategy:         s.strategy.String(),
		TotalTargets:     s.total,
		CompletedTargets: s.completed,
		ProgressFraction: fraction,
		Running:          s.running,
		Paused:           s.paused,
		Cancelled:        s.cancelled,
	}
}
