package api

import "context"

// QueueRetryService captures the per-item retry operation the outcome
// helpers drive. Implementations report zero updates for items that are
// not in a retryable state.
type QueueRetryService interface {
	RetryJob(ctx context.Context, id int64) (int64, error)
}

type RetryItemOutcome string

const (
	RetryItemUpdated      RetryItemOutcome = "retried"
	RetryItemNotFound     RetryItemOutcome = "not_found"
	RetryItemNotRetryable RetryItemOutcome = "not_retryable"
)

type RetryItemResult struct {
	ID      int64            `json:"id"`
	Outcome RetryItemOutcome `json:"outcome"`
}

type RetryItemsResult struct {
	UpdatedCount int64             `json:"updatedCount"`
	Items        []RetryItemResult `json:"items"`
}

// RetryItemsByID retries items one-by-one so each ID can report its outcome.
// Only failed and review items reset to pending.
func RetryItemsByID(ctx context.Context, service QueueRetryService, ids []int64) (RetryItemsResult, error) {
	result := RetryItemsResult{Items: make([]RetryItemResult, 0, len(ids))}
	for _, id := range ids {
		updated, err := service.RetryJob(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFound})
				continue
			}
			return RetryItemsResult{}, err
		}
		if updated > 0 {
			result.UpdatedCount += updated
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemUpdated})
			continue
		}
		result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotRetryable})
	}
	return result, nil
}
