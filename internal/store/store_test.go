package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ElementAstro/lithium-scheduler/internal/script"
)

func TestPutGetScriptRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	doc := script.Document{Sequence: script.SequenceDoc{
		Targets: []script.TargetDoc{{Name: "T1", Tasks: []script.TaskDoc{{Type: "noop"}}}},
	}}

	if err := st.PutScript(context.Background(), "nightly", doc); err != nil {
		t.Fatalf("PutScript: %v", err)
	}

	got, ok, err := st.GetScript(context.Background(), "nightly")
	if err != nil || !ok {
		t.Fatalf("GetScript: ok=%v err=%v", ok, err)
	}
	if len(got.Sequence.Targets) != 1 || got.Sequence.Targets[0].Name != "T1" {
		t.Fatalf("got = %+v", got)
	}
}

func TestGetScriptMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	_, ok, err := st.GetScript(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetScript: %v", err)
	}
	if ok {
		t.Fatalf("expected not found")
	}
}

func TestCacheWarmsFromDiskOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	doc := script.Document{Sequence: script.SequenceDoc{Targets: []script.TargetDoc{{Name: "T1"}}}}
	if err := st.PutScript(context.Background(), "persisted", doc); err != nil {
		t.Fatalf("PutScript: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	names := st2.ListScriptNames()
	if len(names) != 1 || names[0] != "persisted" {
		t.Fatalf("names = %v, want [persisted]", names)
	}
}

func TestDeleteScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	doc := script.Document{Sequence: script.SequenceDoc{Targets: []script.TargetDoc{{Name: "T1"}}}}
	_ = st.PutScript(context.Background(), "temp", doc)
	if err := st.DeleteScript(context.Background(), "temp"); err != nil {
		t.Fatalf("DeleteScript: %v", err)
	}
	if _, ok, _ := st.GetScript(context.Background(), "temp"); ok {
		t.Fatalf("expected script to be gone after delete")
	}
}
