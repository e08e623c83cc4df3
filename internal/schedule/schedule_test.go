package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddScheduleFiresRunFunc(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop(context.Background())

	var runs int32
	done := make(chan struct{}, 1)
	err := s.AddSchedule(Config{
		Name:     "every-second",
		CronExpr: "* * * * * *",
		Run: func(ctx context.Context) error {
			if atomic.AddInt32(&runs, 1) == 1 {
				select {
				case done <- struct{}{}:
				default:
				}
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("RunFunc did not fire within 3s")
	}
}

func TestAddScheduleReplacesExisting(t *testing.T) {
	s := New()
	if err := s.AddSchedule(Config{Name: "n", CronExpr: "* * * * * *", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("first AddSchedule: %v", err)
	}
	if err := s.AddSchedule(Config{Name: "n", CronExpr: "*/2 * * * * *", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("second AddSchedule: %v", err)
	}
	if len(s.Names()) != 1 {
		t.Fatalf("expected replacing a schedule by name to keep a single entry, got %v", s.Names())
	}
}

func TestAddScheduleRequiresNameAndCron(t *testing.T) {
	s := New()
	if err := s.AddSchedule(Config{CronExpr: "* * * * * *"}); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if err := s.AddSchedule(Config{Name: "n"}); err == nil {
		t.Fatalf("expected error for missing cron expression")
	}
}

func TestRemoveSchedule(t *testing.T) {
	s := New()
	_ = s.AddSchedule(Config{Name: "n", CronExpr: "* * * * * *", Run: func(context.Context) error { return nil }})
	if err := s.RemoveSchedule("n"); err != nil {
		t.Fatalf("RemoveSchedule: %v", err)
	}
	if len(s.Names()) != 0 {
		t.Fatalf("expected no schedules after removal, got %v", s.Names())
	}
	if err := s.RemoveSchedule("n"); err == nil {
		t.Fatalf("expected error removing an already-removed schedule")
	}
}

func TestRunOnceRetriesTransientFailures(t *testing.T) {
	s := New()
	var attempts int32
	s.runOnce(context.Background(), Config{
		Name:       "flaky",
		CronExpr:   "* * * * * *",
		MaxRetries: 2,
		Run: func(ctx context.Context) error {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return errors.New("transient")
			}
			return nil
		},
	})
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (1 + 2 retries)", attempts)
	}
}

func TestRunOnceRecordsFailureWithoutPanicking(t *testing.T) {
	s := New()
	done := make(chan struct{}, 1)
	_ = s.AddSchedule(Config{
		Name:     "fails",
		CronExpr: "* * * * * *",
		Timeout:  time.Second,
		Run: func(ctx context.Context) error {
			select {
			case done <- struct{}{}:
			default:
			}
			return context.DeadlineExceeded
		},
	})
	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("RunFunc did not fire within 3s")
	}
}
