package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestService_CheckChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.tle")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewService(path)

	// 1. Initial check - nothing changed
	if s.CheckChanged() {
		t.Error("expected no change right after start")
	}

	// 2. Rewrite with a later mtime
	if err := os.WriteFile(path, []byte("two, longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	if !s.CheckChanged() {
		t.Error("expected change after rewrite")
	}

	// 3. Reported once
	if s.CheckChanged() {
		t.Error("change reported twice")
	}

	// 4. Removed file is not a change
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if s.CheckChanged() {
		t.Error("missing file reported as change")
	}
}

func TestService_FileAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.tle")
	s := NewService(path)
	if s.CheckChanged() {
		t.Fatal("missing file reported as change")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !s.CheckChanged() {
		t.Error("expected new file to be reported")
	}
}

func TestService_Run(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.tle")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewService(path)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond, func() { calls.Add(1) })
		close(done)
	}()

	if err := os.WriteFile(path, []byte("two, longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if calls.Load() != 1 {
		t.Errorf("onChange called %d times, want 1", calls.Load())
	}
}
