package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type retryStub struct {
	updated  map[int64]int64
	missing  map[int64]struct{}
	failWith error
}

func (s *retryStub) RetryJob(_ context.Context, id int64) (int64, error) {
	if s.failWith != nil {
		return 0, s.failWith
	}
	if _, ok := s.missing[id]; ok {
		return 0, &StatusError{StatusCode: http.StatusNotFound, Message: "job 3 not found"}
	}
	return s.updated[id], nil
}

func TestRetryItemsByID(t *testing.T) {
	stub := &retryStub{
		updated: map[int64]int64{1: 1, 2: 0},
		missing: map[int64]struct{}{3: {}},
	}

	result, err := RetryItemsByID(context.Background(), stub, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("RetryItemsByID: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Fatalf("UpdatedCount = %d, want 1", result.UpdatedCount)
	}
	if len(result.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(result.Items))
	}
	if result.Items[0].Outcome != RetryItemUpdated {
		t.Fatalf("item 1 outcome = %s, want %s", result.Items[0].Outcome, RetryItemUpdated)
	}
	if result.Items[1].Outcome != RetryItemNotRetryable {
		t.Fatalf("item 2 outcome = %s, want %s", result.Items[1].Outcome, RetryItemNotRetryable)
	}
	if result.Items[2].Outcome != RetryItemNotFound {
		t.Fatalf("item 3 outcome = %s, want %s", result.Items[2].Outcome, RetryItemNotFound)
	}
}

func TestRetryItemsByIDAbortsOnError(t *testing.T) {
	errSentinel := errors.New("daemon unreachable")
	stub := &retryStub{failWith: errSentinel}

	_, err := RetryItemsByID(context.Background(), stub, []int64{1, 2})
	if !errors.Is(err, errSentinel) {
		t.Fatalf("expected %v, got %v", errSentinel, err)
	}
}
