package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StatusError reports a non-success response from the daemon API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a daemon response with status 404.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a daemon response with status 409.
func IsConflict(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict
}

// Client provides access to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	stream  *http.Client
}

// NewClient returns a client for the daemon listening at addr. Bare host:port
// values are treated as http. The token is sent as a bearer credential when
// non-empty.
func NewClient(addr, token string) *Client {
	base := strings.TrimSpace(addr)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
		// Result downloads can outlive any fixed timeout; cancellation is
		// left to the request context.
		stream: &http.Client{},
	}
}

// BaseURL returns the normalized daemon address the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Status returns the daemon's status report.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var status DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SubmitJob enqueues a new upscale job and returns the created queue item.
func (c *Client) SubmitJob(ctx context.Context, req JobRequest) (*QueueItem, error) {
	var resp QueueItemResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// ListJobs returns queue items, optionally filtered by status names.
func (c *Client) ListJobs(ctx context.Context, statuses ...string) ([]QueueItem, error) {
	path := "/api/jobs"
	if len(statuses) > 0 {
		path += "?status=" + url.QueryEscape(strings.Join(statuses, ","))
	}
	var resp QueueListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// GetJob returns a single queue item by ID.
func (c *Client) GetJob(ctx context.Context, id int64) (*QueueItem, error) {
	var resp QueueItemResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/jobs/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// RemoveJob deletes a queue item. The daemon refuses with a conflict while
// the item is being processed.
func (c *Client) RemoveJob(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/jobs/%d", id), nil, nil)
}

// RetryJob resets a failed or review item back to pending and returns the
// number of items updated. Zero means the item was not in a retryable state.
func (c *Client) RetryJob(ctx context.Context, id int64) (int64, error) {
	var resp RetryResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/jobs/%d/retry", id), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// ClearQueue removes items by scope ("completed", "failed", or "all") and
// returns how many were deleted.
func (c *Client) ClearQueue(ctx context.Context, scope string) (int64, error) {
	var resp ClearResponse
	if err := c.do(ctx, http.MethodPost, "/api/queue/clear", ClearRequest{Scope: scope}, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// DownloadResult streams a completed job's output file into w and returns the
// filename the daemon advertises for it.
func (c *Client) DownloadResult(ctx context.Context, id int64, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/jobs/%d/result", c.baseURL, id), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)
	resp, err := c.stream.Do(req)
	if err != nil {
		return "", fmt.Errorf("contact daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", decodeStatusError(resp)
	}
	name := resultFilename(resp.Header.Get("Content-Disposition"))
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("download result: %w", err)
	}
	return name, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeStatusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func decodeStatusError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr ErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Error != "" {
		return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(payload))}
}

func resultFilename(disposition string) string {
	if disposition == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		return params["filename"]
	}
	return ""
}
