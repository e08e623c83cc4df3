// Package schedule lets a script declare a cron expression so its
// sequence runs on a recurring basis, e.g. "run the calibration sequence
// every night at dusk". One cron entry per named schedule; entries are
// tracked by name so RemoveSchedule removes the right one.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ElementAstro/lithium-scheduler/internal/telemetry"
)

// RunFunc executes one scheduled sequence run. Callers typically close
// over a script document and a fresh sequencer/manager pair per
// invocation, since execution mutates task and target state.
type RunFunc func(ctx context.Context) error

// Config describes one named, cron-triggered sequence.
type Config struct {
	Name     string
	CronExpr string // robfig/cron seconds-precision expression, e.g. "0 0 22 * * *"
	Timeout  time.Duration
	Run      RunFunc

	// MaxRetries is how many additional backoff-spaced attempts a failed
	// run gets before it is counted as a failure.
	MaxRetries int
}

// Scheduler drives recurring sequence executions on cron triggers.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	configs map[string]Config

	runs     metric.Int64Counter
	failures metric.Int64Counter
	tracer   trace.Tracer
}

// New constructs a Scheduler with seconds-precision cron parsing.
func New() *Scheduler {
	meter := telemetry.Meter("lithium-scheduler-schedule")
	runs, _ := meter.Int64Counter("lithium_scheduler_schedule_runs_total")
	failures, _ := meter.Int64Counter("lithium_scheduler_schedule_failures_total")

	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		entries:  make(map[string]cron.EntryID),
		configs:  make(map[string]Config),
		runs:     runs,
		failures: failures,
		tracer:   otel.Tracer("lithium-scheduler-schedule"),
	}
}

// Start begins dispatching scheduled runs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("schedule: started")
}

// Stop gracefully waits for in-flight runs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		slog.Info("schedule: stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddSchedule registers cfg, replacing any existing schedule of the same
// name.
func (s *Scheduler) AddSchedule(cfg Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("schedule: name is required")
	}
	if cfg.CronExpr == "" {
		return fmt.Errorf("schedule: cron expression is required")
	}

	s.mu.Lock()
	if existing, ok := s.entries[cfg.Name]; ok {
		s.cron.Remove(existing)
	}
	s.mu.Unlock()

	entryID, err := s.cron.AddFunc(cfg.CronExpr, func() {
		s.runOnce(context.Background(), cfg)
	})
	if err != nil {
		return fmt.Errorf("add cron schedule %q: %w", cfg.Name, err)
	}

	s.mu.Lock()
	s.entries[cfg.Name] = entryID
	s.configs[cfg.Name] = cfg
	s.mu.Unlock()

	slog.Info("schedule: added", "name", cfg.Name, "cron", cfg.CronExpr)
	return nil
}

// RemoveSchedule unregisters a named schedule.
func (s *Scheduler) RemoveSchedule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("schedule: no such schedule %q", name)
	}
	s.cron.Remove(entryID)
	delete(s.entries, name)
	delete(s.configs, name)
	slog.Info("schedule: removed", "name", name)
	return nil
}

// Names returns every currently registered schedule name.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.configs))
	for name := range s.configs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) runOnce(ctx context.Context, cfg Config) {
	ctx, span := s.tracer.Start(ctx, "schedule.run",
		trace.WithAttributes(attribute.String("schedule", cfg.Name)))
	defer span.End()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("schedule", cfg.Name)))

	_, err := telemetry.Backoff(ctx, cfg.MaxRetries+1, 500*time.Millisecond, func() (struct{}, error) {
		return struct{}{}, cfg.Run(ctx)
	})
	if err != nil {
		s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("schedule", cfg.Name)))
		slog.Error("schedule: run failed", "name", cfg.Name, "error", err)
		return
	}
	slog.Info("schedule: run completed", "name", cfg.Name)
}
