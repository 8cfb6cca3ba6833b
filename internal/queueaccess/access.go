package queueaccess

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/703deuce/upscale/internal/api"
	"github.com/703deuce/upscale/internal/queue"
)

// Access provides queue operations whether or not the daemon is reachable.
// The client-backed form talks to the daemon's HTTP API; the store-backed
// form opens the queue database directly and mirrors the daemon's error
// contract so command output stays identical either way.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.QueueItem, error)
	Describe(ctx context.Context, id int64) (*api.QueueItem, error)
	Submit(ctx context.Context, req api.JobRequest) (*api.QueueItem, error)
	RetryJob(ctx context.Context, id int64) (int64, error)
	RemoveJob(ctx context.Context, id int64) error
	RetryAll(ctx context.Context) (int64, error)
	Clear(ctx context.Context, scope string) (int64, error)
}

// NewClientAccess returns an Access backed by the daemon HTTP API.
func NewClientAccess(client *api.Client) Access {
	return &clientAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct database access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store, service: api.NewQueueService(store)}
}

type clientAccess struct {
	client *api.Client
}

func (a *clientAccess) Stats(ctx context.Context) (map[string]int, error) {
	status, err := a.client.Status(ctx)
	if err != nil {
		return nil, err
	}
	return status.Workflow.QueueStats, nil
}

func (a *clientAccess) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	return a.client.ListJobs(ctx, statuses...)
}

func (a *clientAccess) Describe(ctx context.Context, id int64) (*api.QueueItem, error) {
	item, err := a.client.GetJob(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func (a *clientAccess) Submit(ctx context.Context, req api.JobRequest) (*api.QueueItem, error) {
	return a.client.SubmitJob(ctx, req)
}

func (a *clientAccess) RetryJob(ctx context.Context, id int64) (int64, error) {
	return a.client.RetryJob(ctx, id)
}

func (a *clientAccess) RemoveJob(ctx context.Context, id int64) error {
	return a.client.RemoveJob(ctx, id)
}

// RetryAll resets every failed and review item. The daemon retries one job
// per request, so the client form lists retryable items and walks them.
func (a *clientAccess) RetryAll(ctx context.Context) (int64, error) {
	items, err := a.client.ListJobs(ctx, string(queue.StatusFailed), string(queue.StatusReview))
	if err != nil {
		return 0, err
	}
	var updated int64
	for _, item := range items {
		count, err := a.client.RetryJob(ctx, item.ID)
		if err != nil {
			// Cleared by another client between the list and the retry.
			if api.IsNotFound(err) {
				continue
			}
			return updated, err
		}
		updated += count
	}
	return updated, nil
}

func (a *clientAccess) Clear(ctx context.Context, scope string) (int64, error) {
	return a.client.ClearQueue(ctx, scope)
}

type storeAccess struct {
	store   *queue.Store
	service *api.QueueService
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	var filters []queue.Status
	for _, s := range statuses {
		if parsed, ok := queue.ParseStatus(s); ok {
			filters = append(filters, parsed)
		}
	}
	return a.service.List(ctx, filters...)
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*api.QueueItem, error) {
	return a.service.Describe(ctx, id)
}

func (a *storeAccess) Submit(ctx context.Context, req api.JobRequest) (*api.QueueItem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	item, err := a.store.NewJob(ctx, req.ToQueueRequest())
	if err != nil {
		return nil, err
	}
	converted := api.FromQueueItem(item)
	return &converted, nil
}

func (a *storeAccess) RetryJob(ctx context.Context, id int64) (int64, error) {
	item, err := a.store.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if item == nil {
		return 0, notFoundError(id)
	}
	return a.store.RetryFailed(ctx, id)
}

func (a *storeAccess) RemoveJob(ctx context.Context, id int64) error {
	item, err := a.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return notFoundError(id)
	}
	if item.IsProcessing() {
		return &api.StatusError{
			StatusCode: http.StatusConflict,
			Message:    fmt.Sprintf("job %d is marked processing; start the daemon to reset interrupted jobs", id),
		}
	}
	removed, err := a.store.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return notFoundError(id)
	}
	return nil
}

func (a *storeAccess) RetryAll(ctx context.Context) (int64, error) {
	return a.store.RetryFailed(ctx)
}

func (a *storeAccess) Clear(ctx context.Context, scope string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case "completed":
		return a.store.ClearCompleted(ctx)
	case "failed":
		return a.store.ClearFailed(ctx)
	case "", "all":
		return a.store.Clear(ctx)
	default:
		return 0, fmt.Errorf("unknown clear scope %q; use completed, failed, or all", scope)
	}
}

// notFoundError matches the daemon's HTTP error contract so outcome helpers
// treat direct database access the same as API responses.
func notFoundError(id int64) error {
	return &api.StatusError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("job %d not found", id)}
}
