// Package stage moves document bytes through the object store so that the
// image-editing API, which only consumes URLs, can reach them. Every staged
// object gets a scheduled deletion; the ledger in internal/state makes that
// survive restarts.
package stage

import (
	"context"
	"log/slog"
	"time"

	"github.com/psdglot/psdglot/internal/log"
)

const removeTimeout = 30 * time.Second

// ObjectStore is the blob-store surface the Stager needs. *S3Store is the
// production implementation; tests use a fake.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignPut(ctx context.Context, key string, ttl time.Duration, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

// DeletionLedger records scheduled deletions so they outlive the process.
type DeletionLedger interface {
	ScheduleDeletion(ctx context.Context, objectKey string, deleteAfter time.Time) error
	DueDeletions(ctx context.Context, now time.Time) ([]string, error)
	MarkDeleted(ctx context.Context, objectKey string) error
}

// Stager uploads staging objects and mints time-limited signed URLs.
type Stager struct {
	store  ObjectStore
	ledger DeletionLedger
	logger *slog.Logger
}

// NewStager creates a Stager.
func NewStager(store ObjectStore, ledger DeletionLedger) *Stager {
	return &Stager{
		store:  store,
		ledger: ledger,
		logger: log.WithComponent("stage"),
	}
}

// Upload stores data under key.
func (s *Stager) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.store.Put(ctx, key, data, contentType); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	s.logger.Debug("object staged", "key", key, "bytes", len(data))
	return nil
}

// SignedReadURL mints a read URL valid for ttl from now.
func (s *Stager) SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.store.PresignGet(ctx, key, ttl)
	if err != nil {
		return "", &StoreError{Op: "sign read URL for", Key: key, Err: err}
	}
	return u, nil
}

// SignedWriteURL mints a pre-authorized upload URL for a not-yet-existing
// object.
func (s *Stager) SignedWriteURL(ctx context.Context, key string, ttl time.Duration, contentType string) (string, error) {
	u, err := s.store.PresignPut(ctx, key, ttl, contentType)
	if err != nil {
		return "", &StoreError{Op: "sign write URL for", Key: key, Err: err}
	}
	return u, nil
}

// ScheduleDelete arranges for key to be deleted after the grace period.
// Fire-and-forget: the ledger record is written synchronously, the deletion
// itself runs detached, and any failure is logged, never propagated. An
// object that outlives its grace period is a degraded outcome, not a
// pipeline failure; the boot sweep picks it up eventually.
func (s *Stager) ScheduleDelete(key string, after time.Duration) {
	deleteAt := time.Now().Add(after)

	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()
	if err := s.ledger.ScheduleDeletion(ctx, key, deleteAt); err != nil {
		s.logger.Error("failed to record scheduled deletion", "key", key, "error", err)
	}

	go func() {
		time.Sleep(after)
		s.deleteNow(key)
	}()

	s.logger.Info("deletion scheduled", "key", key, "delete_after", after.String())
}

// SweepExpired deletes every object whose scheduled deadline has passed.
// Called at startup to clean up after crashes.
func (s *Stager) SweepExpired(ctx context.Context) error {
	due, err := s.ledger.DueDeletions(ctx, time.Now())
	if err != nil {
		return err
	}
	for _, key := range due {
		s.deleteNow(key)
	}
	if len(due) > 0 {
		s.logger.Info("swept expired staging objects", "count", len(due))
	}
	return nil
}

func (s *Stager) deleteNow(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	if err := s.store.Remove(ctx, key); err != nil {
		// Best effort only. The ledger entry stays pending so the next
		// sweep retries.
		s.logger.Error("failed to delete staged object", "key", key, "error", err)
		return
	}
	if err := s.ledger.MarkDeleted(ctx, key); err != nil {
		s.logger.Error("failed to mark object deleted", "key", key, "error", err)
		return
	}
	s.logger.Debug("staged object deleted", "key", key)
}
