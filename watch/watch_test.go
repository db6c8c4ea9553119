package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFnMatch(t *testing.T) {
	m := FnMatch("H-*.dat")
	if !m("H-1.dat") {
		t.Error("expected match")
	}
	if m("B-1.dat") {
		t.Error("expected no match")
	}
}

func TestBacklogSuppressesZeroByteFiles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "H-1.dat"), []byte("data"), 0o644)
	os.WriteFile(filepath.Join(dir, "H-empty.dat"), nil, 0o644)

	evs, err := Backlog(dir, FnMatch("H-*.dat"))
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 backlog event, got %d", len(evs))
	}
}

func TestPollWatcherEmitsNewMatchingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewPolling(dir, 20*time.Millisecond, FnMatch("H-*.dat"))
	defer w.Close()

	os.WriteFile(filepath.Join(dir, "H-new.dat"), []byte("data"), 0o644)

	select {
	case ev := <-w.Events():
		if filepath.Base(ev.Path) != "H-new.dat" {
			t.Errorf("got %s", ev.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll event")
	}
}

func TestPollWatcherSuppressesZeroByteFile(t *testing.T) {
	dir := t.TempDir()
	w := NewPolling(dir, 20*time.Millisecond, FnMatch("H-*.dat"))
	defer w.Close()

	os.WriteFile(filepath.Join(dir, "H-empty.dat"), nil, 0o644)

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for empty file: %v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
