package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/703deuce/upscale/internal/api"
	"github.com/703deuce/upscale/internal/logging"
	"github.com/703deuce/upscale/internal/queue"
	"github.com/703deuce/upscale/internal/testsupport"
	"github.com/703deuce/upscale/internal/workflow"
)

type queueStoreStub struct {
	items    []*queue.Item
	statuses []queue.Status
}

func (s *queueStoreStub) List(_ context.Context, statuses ...queue.Status) ([]*queue.Item, error) {
	s.statuses = statuses
	return s.items, nil
}

func (s *queueStoreStub) Stats(context.Context) (map[queue.Status]int, error) {
	return map[queue.Status]int{queue.StatusPending: len(s.items)}, nil
}

func (s *queueStoreStub) GetByID(context.Context, int64) (*queue.Item, error) {
	if len(s.items) == 0 {
		return nil, nil
	}
	return s.items[0], nil
}

func newTestServer(t *testing.T) (*apiServer, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)
	d, err := New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d.api, store
}

func seedJob(t *testing.T, store *queue.Store, status queue.Status) *queue.Item {
	t.Helper()
	item, err := store.NewJob(context.Background(), queue.JobRequest{SourcePath: "/videos/clip.mp4", Title: "Clip"})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if status != queue.StatusPending {
		item.Status = status
		if err := store.Update(context.Background(), item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	return item
}

func TestAPIServerListJobsSplitsStatusFilter(t *testing.T) {
	stub := &queueStoreStub{items: []*queue.Item{{ID: 1, Title: "Example", Status: queue.StatusPending}}}
	srv := &apiServer{queueSvc: api.NewQueueService(stub)}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?status=failed,review", nil)
	w := httptest.NewRecorder()
	srv.handleJobs(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.QueueListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	if resp.Items[0].Title != "Example" {
		t.Fatalf("unexpected title: %q", resp.Items[0].Title)
	}
	want := []queue.Status{queue.StatusFailed, queue.StatusReview}
	if len(stub.statuses) != len(want) || stub.statuses[0] != want[0] || stub.statuses[1] != want[1] {
		t.Fatalf("unexpected status filter: %v", stub.statuses)
	}
}

func TestAPIServerStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.Running {
		t.Fatal("expected stopped daemon in status")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("unexpected pid %d", status.PID)
	}
	if status.QueueDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("expected paths in status, got %+v", status)
	}
	if len(status.Dependencies) == 0 {
		t.Fatal("expected dependency statuses")
	}
}

func TestAPIServerSubmitAndDescribeJob(t *testing.T) {
	srv, _ := newTestServer(t)

	body, err := json.Marshal(api.JobRequest{SourcePath: "/videos/in.mp4", Title: "In"})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleJobs(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 Accepted, got %d: %s", w.Code, w.Body.String())
	}
	var created api.QueueItemResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Item.ID <= 0 {
		t.Fatalf("expected assigned id, got %d", created.Item.ID)
	}
	if created.Item.Status != string(queue.StatusPending) {
		t.Fatalf("expected pending status, got %q", created.Item.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+itoa(created.Item.ID), nil)
	w = httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var fetched api.QueueItemResponse
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if fetched.Item.Title != "In" {
		t.Fatalf("unexpected title: %q", fetched.Item.Title)
	}
}

func TestAPIServerSubmitJobRejectsInvalid(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"title":"x"}`))
	w := httptest.NewRecorder()
	srv.handleJobs(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.Contains(resp.Error, "source url or source path") {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}
}

func TestAPIServerDescribeJobNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/42", nil)
	w := httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAPIServerInvalidJobID(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil)
	w := httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPIServerRemoveJob(t *testing.T) {
	srv, store := newTestServer(t)
	item := seedJob(t, store, queue.StatusPending)

	path := "/api/jobs/" + itoa(item.ID)
	req := httptest.NewRequest(http.MethodDelete, path, nil)
	w := httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, path, nil)
	w = httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for removed job, got %d", w.Code)
	}
}

func TestAPIServerRemoveJobProcessingConflict(t *testing.T) {
	srv, store := newTestServer(t)
	item := seedJob(t, store, queue.StatusUpscaling)

	req := httptest.NewRequest(http.MethodDelete, "/api/jobs/"+itoa(item.ID), nil)
	w := httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.Contains(resp.Error, "processing") {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}
}

func TestAPIServerRetryJob(t *testing.T) {
	srv, store := newTestServer(t)
	failed := seedJob(t, store, queue.StatusFailed)
	pending := seedJob(t, store, queue.StatusPending)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+itoa(failed.ID)+"/retry", nil)
	w := httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.RetryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Updated != 1 {
		t.Fatalf("expected 1 updated, got %d", resp.Updated)
	}

	// Pending jobs are not retryable; the endpoint reports zero updates.
	req = httptest.NewRequest(http.MethodPost, "/api/jobs/"+itoa(pending.ID)+"/retry", nil)
	w = httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp = api.RetryResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Updated != 0 {
		t.Fatalf("expected 0 updated for pending job, got %d", resp.Updated)
	}
}

func TestAPIServerRetryJobNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/99/retry", nil)
	w := httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAPIServerServeResult(t *testing.T) {
	srv, store := newTestServer(t)

	final := filepath.Join(t.TempDir(), "Clip.mp4")
	if err := os.WriteFile(final, []byte("finished video"), 0o644); err != nil {
		t.Fatalf("write final file: %v", err)
	}
	item := seedJob(t, store, queue.StatusPending)
	item.Status = queue.StatusCompleted
	item.FinalFile = final
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+itoa(item.ID)+"/result", nil)
	w := httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "finished video" {
		t.Fatalf("unexpected body: %q", got)
	}
	disposition := w.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, `filename="Clip.mp4"`) {
		t.Fatalf("unexpected content disposition: %q", disposition)
	}
}

func TestAPIServerServeResultNotCompleted(t *testing.T) {
	srv, store := newTestServer(t)
	item := seedJob(t, store, queue.StatusUpscaling)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+itoa(item.ID)+"/result", nil)
	w := httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestAPIServerServeResultMissingFile(t *testing.T) {
	srv, store := newTestServer(t)
	item := seedJob(t, store, queue.StatusPending)
	item.Status = queue.StatusCompleted
	item.FinalFile = filepath.Join(t.TempDir(), "gone.mp4")
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+itoa(item.ID)+"/result", nil)
	w := httptest.NewRecorder()
	srv.handleJobByID(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAPIServerQueueClear(t *testing.T) {
	srv, store := newTestServer(t)
	seedJob(t, store, queue.StatusCompleted)
	seedJob(t, store, queue.StatusFailed)

	req := httptest.NewRequest(http.MethodPost, "/api/queue/clear", strings.NewReader(`{"scope":"failed"}`))
	w := httptest.NewRecorder()
	srv.handleQueueClear(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.ClearResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Removed != 1 {
		t.Fatalf("expected 1 removed, got %d", resp.Removed)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/queue/clear", strings.NewReader(`{"scope":"weird"}`))
	w = httptest.NewRecorder()
	srv.handleQueueClear(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown scope, got %d", w.Code)
	}
}

func TestAPIServerMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/jobs", nil)
	w := httptest.NewRecorder()
	srv.handleJobs(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for PUT /api/jobs, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/status", nil)
	w = httptest.NewRecorder()
	srv.handleStatus(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for DELETE /api/status, got %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	next := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}

	open := authMiddleware("", next)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	open(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected empty token to pass through, got %d", w.Code)
	}

	guarded := authMiddleware("secret", next)

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w = httptest.NewRecorder()
	guarded(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	guarded(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	guarded(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with correct token, got %d", w.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
