package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"svorder/internal/shared/util"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadGlob(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, []string{"["}, nil, func([]string) {}); err == nil {
		t.Fatal("expected glob compile error")
	}
}

func waitFor(t *testing.T, ch <-chan []string, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-ch:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, []string{"build"}, []string{"*_tb.sv"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "top.sv")
	if err := os.WriteFile(testFile, []byte("module top; endmodule\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, testFile)

	for _, name := range []string{"top_tb.sv", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case paths := <-changedFiles:
		t.Errorf("excluded files triggered a rebuild: %v", paths)
	case <-time.After(400 * time.Millisecond):
	}

	subdir := filepath.Join(tmpDir, "rtl")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	header := filepath.Join(subdir, "defs.svh")
	if err := os.WriteFile(header, []byte("`define W 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, header)
}

func TestWatcher_FileArgumentWatchesParent(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "leaf.v")
	if err := os.WriteFile(src, []byte("module leaf; endmodule\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{src, src}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("module leaf(); endmodule\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, src)
}

func TestWatcher_DebounceBatches(t *testing.T) {
	var calls atomic.Int32
	w, err := NewWatcher(50*time.Millisecond, nil, nil, func(paths []string) {
		calls.Add(1)
		if len(paths) != 2 || paths[0] != "a.sv" || paths[1] != "b.sv" {
			t.Errorf("unexpected batch %v", paths)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.scheduleChange("b.sv")
	w.scheduleChange("a.sv")
	w.scheduleChange("b.sv")

	time.Sleep(300 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one debounced callback, got %d", got)
	}
}

func TestWatcher_ClosedLimiterDropsBatch(t *testing.T) {
	var calls atomic.Int32
	w, err := NewWatcher(time.Millisecond, nil, nil, func([]string) { calls.Add(1) })
	if err != nil {
		t.Fatal(err)
	}
	w.SetLimiter(util.NewRebuildLimiter(0.001))

	w.pending["a.sv"] = time.Now()
	w.flushChanges()
	if calls.Load() != 1 {
		t.Fatalf("first batch should use the burst token")
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	w.pending["b.sv"] = time.Now()
	w.flushChanges()
	if calls.Load() != 1 {
		t.Fatalf("batch after close should be dropped, got %d calls", calls.Load())
	}
}

func TestWatcher_ExtensionFilters(t *testing.T) {
	w, err := NewWatcher(10*time.Millisecond, nil, nil, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if w.shouldExcludeFile("pkg.SVH") {
		t.Fatal("headers should trigger rebuilds")
	}
	if !w.shouldExcludeFile("main.go") {
		t.Fatal("non-HDL files should be ignored")
	}

	w.SetExtensions([]string{"sv"})
	if w.shouldExcludeFile("top.sv") {
		t.Fatal("expected .sv to be watched")
	}
	if !w.shouldExcludeFile("top.v") {
		t.Fatal("expected .v to be ignored after SetExtensions")
	}
}
