package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type removeStub struct {
	errs     map[int64]error
	failWith error
}

func (s *removeStub) RemoveJob(_ context.Context, id int64) error {
	if s.failWith != nil {
		return s.failWith
	}
	return s.errs[id]
}

func TestRemoveItemsByID(t *testing.T) {
	stub := &removeStub{errs: map[int64]error{
		2: &StatusError{StatusCode: http.StatusNotFound, Message: "job 2 not found"},
		3: &StatusError{StatusCode: http.StatusConflict, Message: "job 3 is processing"},
	}}

	result, err := RemoveItemsByID(context.Background(), stub, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("RemoveItemsByID: %v", err)
	}
	if result.RemovedCount != 1 {
		t.Fatalf("RemovedCount = %d, want 1", result.RemovedCount)
	}
	if len(result.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(result.Items))
	}
	if result.Items[0].Outcome != RemoveItemRemoved {
		t.Fatalf("item 1 outcome = %s, want %s", result.Items[0].Outcome, RemoveItemRemoved)
	}
	if result.Items[1].Outcome != RemoveItemNotFound {
		t.Fatalf("item 2 outcome = %s, want %s", result.Items[1].Outcome, RemoveItemNotFound)
	}
	if result.Items[2].Outcome != RemoveItemProcessing {
		t.Fatalf("item 3 outcome = %s, want %s", result.Items[2].Outcome, RemoveItemProcessing)
	}
}

func TestRemoveItemsByIDAbortsOnError(t *testing.T) {
	errSentinel := errors.New("daemon unreachable")
	stub := &removeStub{failWith: errSentinel}

	_, err := RemoveItemsByID(context.Background(), stub, []int64{1, 2})
	if !errors.Is(err, errSentinel) {
		t.Fatalf("expected %v, got %v", errSentinel, err)
	}
}
