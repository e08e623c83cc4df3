package sequencer

// targetExecutionOrderLocked computes a topological order of target
// names via DFS with a visiting (gray) set; re-entering a gray node
// signals a cycle. Targets are seeded in the order they were first
// added; a target's own dependencies are visited in map iteration order,
// so the relative order of two unrelated dependencies of one target can
// differ between runs. Caller must hold s.mu.
func (s *Sequencer) targetExecutionOrderLocked() ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(s.targets))
	order := make([]string, 0, len(s.targets))

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = gray
		for dep := range s.targets[name].Dependencies {
			switch color[dep] {
			case gray:
				return errCycleDetected("dependency cycle involving target %q", name)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	for _, name := range s.insertionOrder {
		if color[name] == white {
			if err := visit(name); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// hasCycleLocked reports whether the target dependency graph currently
// contains a cycle by attempting a full topological order.
func (s *Sequencer) hasCycleLocked() bool {
	_, err := s.targetExecutionOrderLocked()
	return err != nil
}
