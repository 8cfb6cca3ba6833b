package api

import "context"

// QueueRemoveService captures the per-item remove operation the outcome
// helpers drive.
type QueueRemoveService interface {
	RemoveJob(ctx context.Context, id int64) error
}

type RemoveItemOutcome string

const (
	RemoveItemRemoved    RemoveItemOutcome = "removed"
	RemoveItemNotFound   RemoveItemOutcome = "not_found"
	RemoveItemProcessing RemoveItemOutcome = "processing"
)

type RemoveItemResult struct {
	ID      int64             `json:"id"`
	Outcome RemoveItemOutcome `json:"outcome"`
}

type RemoveItemsResult struct {
	RemovedCount int64              `json:"removedCount"`
	Items        []RemoveItemResult `json:"items"`
}

// RemoveItemsByID removes queue items one-by-one so each ID can report its
// outcome. Items currently being processed are left alone.
func RemoveItemsByID(ctx context.Context, service QueueRemoveService, ids []int64) (RemoveItemsResult, error) {
	result := RemoveItemsResult{Items: make([]RemoveItemResult, 0, len(ids))}
	for _, id := range ids {
		err := service.RemoveJob(ctx, id)
		switch {
		case err == nil:
			result.RemovedCount++
			result.Items = append(result.Items, RemoveItemResult{ID: id, Outcome: RemoveItemRemoved})
		case IsNotFound(err):
			result.Items = append(result.Items, RemoveItemResult{ID: id, Outcome: RemoveItemNotFound})
		case IsConflict(err):
			result.Items = append(result.Items, RemoveItemResult{ID: id, Outcome: RemoveItemProcessing})
		default:
			return RemoveItemsResult{}, err
		}
	}
	return result, nil
}
