package lock

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "psdglot.db.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	b, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		t.Fatal("expected PID in lock file, got empty")
	}
}

func TestAcquireSecondInstanceFails(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "psdglot.db.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	if _, err := Acquire(lockPath); err == nil {
		t.Fatal("expected second acquire to fail while lock is held")
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "psdglot.db.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	l2, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	_ = l2.Release()
}

func TestForStateDB(t *testing.T) {
	t.Parallel()

	if got := ForStateDB("/var/lib/psdglot/state.db"); got != "/var/lib/psdglot/state.db.lock" {
		t.Fatalf("unexpected lock path %q", got)
	}
}
