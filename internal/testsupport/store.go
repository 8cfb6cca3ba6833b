package testsupport

import (
	"context"
	"testing"

	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a queue item from a local source path for tests.
func NewJob(t testing.TB, store *queue.Store, sourcePath string) *queue.Item {
	t.Helper()

	item, err := store.NewJob(context.Background(), queue.JobRequest{SourcePath: sourcePath})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return item
}

// NewURLJob creates a queue item from a remote source URL for tests.
func NewURLJob(t testing.TB, store *queue.Store, sourceURL string) *queue.Item {
	t.Helper()

	item, err := store.NewJob(context.Background(), queue.JobRequest{SourceURL: sourceURL})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return item
}
