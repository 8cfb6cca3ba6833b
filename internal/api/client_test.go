package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientNormalizesBareAddress(t *testing.T) {
	client := NewClient("127.0.0.1:7613", "")
	if client.BaseURL() != "http://127.0.0.1:7613" {
		t.Fatalf("unexpected base url: %q", client.BaseURL())
	}
	client = NewClient("https://upscale.internal/", "")
	if client.BaseURL() != "https://upscale.internal" {
		t.Fatalf("unexpected base url: %q", client.BaseURL())
	}
}

func TestClientStatusSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Fatalf("unexpected authorization header: %q", auth)
		}
		_ = json.NewEncoder(w).Encode(DaemonStatus{Running: true, PID: 42})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if !status.Running || status.PID != 42 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestClientSubmitJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req JobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SourceURL != "https://example.com/clip.mp4" {
			t.Fatalf("unexpected source url: %q", req.SourceURL)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(QueueItemResponse{Item: QueueItem{ID: 5, Status: "pending"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	item, err := client.SubmitJob(context.Background(), JobRequest{SourceURL: "https://example.com/clip.mp4"})
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	if item.ID != 5 || item.Status != "pending" {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestClientSubmitJobValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "a source url or source path is required"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.SubmitJob(context.Background(), JobRequest{})
	if err == nil {
		t.Fatal("expected error for rejected submission")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status code: %d", statusErr.StatusCode)
	}
	if !strings.Contains(statusErr.Message, "source url or source path") {
		t.Fatalf("server message lost: %q", statusErr.Message)
	}
}

func TestClientListJobsFiltersByStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "failed,review" {
			t.Fatalf("unexpected status filter: %q", got)
		}
		_ = json.NewEncoder(w).Encode(QueueListResponse{Items: []QueueItem{{ID: 1}, {ID: 2}}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	items, err := client.ListJobs(context.Background(), "failed", "review")
	if err != nil {
		t.Fatalf("ListJobs returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("unexpected item count: %d", len(items))
	}
}

func TestClientGetJobNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "job 99 not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.GetJob(context.Background(), 99)
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestClientRemoveJobConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/jobs/3" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "job 3 is processing"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	err := client.RemoveJob(context.Background(), 3)
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestClientRemoveJobNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if err := client.RemoveJob(context.Background(), 3); err != nil {
		t.Fatalf("RemoveJob returned error: %v", err)
	}
}

func TestClientRetryJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs/6/retry" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(RetryResponse{Updated: 1})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	updated, err := client.RetryJob(context.Background(), 6)
	if err != nil {
		t.Fatalf("RetryJob returned error: %v", err)
	}
	if updated != 1 {
		t.Fatalf("unexpected updated count: %d", updated)
	}
}

func TestClientClearQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/queue/clear" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req ClearRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Scope != "failed" {
			t.Fatalf("unexpected scope: %q", req.Scope)
		}
		_ = json.NewEncoder(w).Encode(ClearResponse{Removed: 4})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	removed, err := client.ClearQueue(context.Background(), "failed")
	if err != nil {
		t.Fatalf("ClearQueue returned error: %v", err)
	}
	if removed != 4 {
		t.Fatalf("unexpected removed count: %d", removed)
	}
}

func TestClientDownloadResult(t *testing.T) {
	payload := []byte("encoded video bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs/8/result" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="Concert.mkv"`)
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	var buf bytes.Buffer
	name, err := client.DownloadResult(context.Background(), 8, &buf)
	if err != nil {
		t.Fatalf("DownloadResult returned error: %v", err)
	}
	if name != "Concert.mkv" {
		t.Fatalf("unexpected filename: %q", name)
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Fatalf("payload mismatch: %q", buf.String())
	}
}

func TestClientDownloadResultNotReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "job 8 is not completed"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	var buf bytes.Buffer
	_, err := client.DownloadResult(context.Background(), 8, &buf)
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("error body should not be copied, got %q", buf.String())
	}
}
