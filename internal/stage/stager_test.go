package stage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/psdglot/psdglot/internal/state"
	"github.com/psdglot/psdglot/internal/storage"
)

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	signErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return fmt.Sprintf("http://store.local/%s?sig=get&ttl=%s", key, ttl), nil
}

func (f *fakeStore) PresignPut(ctx context.Context, key string, ttl time.Duration, contentType string) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return fmt.Sprintf("http://store.local/%s?sig=put&ct=%s", key, contentType), nil
}

func (f *fakeStore) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func newTestLedger(t *testing.T) *state.Store {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return state.NewStore(db)
}

func TestUploadAndSign(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	s := NewStager(store, newTestLedger(t))
	ctx := context.Background()

	if err := s.Upload(ctx, "staging/in.psd", []byte("bytes"), "image/vnd.adobe.photoshop"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !store.has("staging/in.psd") {
		t.Fatal("object not stored")
	}

	readURL, err := s.SignedReadURL(ctx, "staging/in.psd", 10*time.Minute)
	if err != nil {
		t.Fatalf("SignedReadURL: %v", err)
	}
	if !strings.Contains(readURL, "sig=get") {
		t.Fatalf("unexpected read URL %q", readURL)
	}

	writeURL, err := s.SignedWriteURL(ctx, "staging/out.psd", 10*time.Minute, "image/vnd.adobe.photoshop")
	if err != nil {
		t.Fatalf("SignedWriteURL: %v", err)
	}
	if !strings.Contains(writeURL, "sig=put") {
		t.Fatalf("unexpected write URL %q", writeURL)
	}
}

func TestUploadFailureIsWriteError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.putErr = errors.New("access denied")
	s := NewStager(store, newTestLedger(t))

	err := s.Upload(context.Background(), "staging/in.psd", []byte("x"), "application/octet-stream")
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
}

func TestSignFailureIsStoreError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.signErr = errors.New("no such object")
	s := NewStager(store, newTestLedger(t))

	_, err := s.SignedReadURL(context.Background(), "staging/missing.psd", time.Minute)
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *StoreError, got %v", err)
	}
}

func TestScheduleDeleteRemovesObject(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ledger := newTestLedger(t)
	s := NewStager(store, ledger)
	ctx := context.Background()

	if err := s.Upload(ctx, "staging/tmp.psd", []byte("x"), "application/octet-stream"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	s.ScheduleDelete("staging/tmp.psd", 20*time.Millisecond)

	// Not deleted before the grace period.
	if !store.has("staging/tmp.psd") {
		t.Fatal("object deleted before grace period")
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.has("staging/tmp.psd") {
		if time.Now().After(deadline) {
			t.Fatal("object never deleted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Ledger no longer lists it as due.
	due, err := ledger.DueDeletions(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DueDeletions: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected ledger to be drained, got %v", due)
	}
}

func TestSweepExpiredDeletesOverdueObjects(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ledger := newTestLedger(t)
	ctx := context.Background()

	// Simulate a previous process that staged an object and crashed before
	// its deletion timer fired.
	store.objects["staging/orphan.psd"] = []byte("x")
	if err := ledger.ScheduleDeletion(ctx, "staging/orphan.psd", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("ScheduleDeletion: %v", err)
	}

	s := NewStager(store, ledger)
	if err := s.SweepExpired(ctx); err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}

	if store.has("staging/orphan.psd") {
		t.Fatal("orphaned object survived the sweep")
	}
}

func TestObjectKeyUniquePerRun(t *testing.T) {
	t.Parallel()

	data := []byte("same document")
	k1 := ObjectKey("run-1", data, "input.psd")
	k2 := ObjectKey("run-2", data, "input.psd")
	if k1 == k2 {
		t.Fatalf("keys collide across runs: %q", k1)
	}
	if !strings.HasPrefix(k1, "staging/run-1-") || !strings.HasSuffix(k1, "-input.psd") {
		t.Fatalf("unexpected key shape %q", k1)
	}

	// Same run and bytes produce the same key.
	if ObjectKey("run-1", data, "input.psd") != k1 {
		t.Fatal("key derivation is not deterministic")
	}
}
