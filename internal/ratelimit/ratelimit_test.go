package ratelimit

import (
	"testing"
	"time"
)

func TestAllowRespectsCapacity(t *testing.T) {
	l := New(2, 0, time.Minute, 0)
	if !l.Allow() {
		t.Fatalf("expected first token to be allowed")
	}
	if !l.Allow() {
		t.Fatalf("expected second token to be allowed")
	}
	if l.Allow() {
		t.Fatalf("expected third token to be denied (capacity exhausted, no refill)")
	}
}

func TestAllowRespectsWindowCap(t *testing.T) {
	l := New(100, 100, time.Minute, 1)
	if !l.Allow() {
		t.Fatalf("expected first request in window to be allowed")
	}
	if l.Allow() {
		t.Fatalf("expected second request in window to be denied (maxPerWindow=1)")
	}
}

func TestAllowNZeroOrNegativeAlwaysAllowed(t *testing.T) {
	l := New(1, 0, time.Minute, 0)
	if !l.AllowN(0) {
		t.Fatalf("AllowN(0) should always be allowed")
	}
	if !l.AllowN(-1) {
		t.Fatalf("AllowN(-1) should always be allowed")
	}
}
