package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/703deuce/upscale/internal/config"
)

const userAgent = "Upscale-Go/0.1.0"

// Event identifies a workflow milestone worth surfacing to the user.
type Event string

const (
	EventJobQueued           Event = "job_queued"
	EventFetchCompleted      Event = "fetch_completed"
	EventUpscaleCompleted    Event = "upscale_completed"
	EventEncodingCompleted   Event = "encoding_completed"
	EventProcessingCompleted Event = "processing_completed"
	EventQueueStarted        Event = "queue_started"
	EventQueueCompleted      Event = "queue_completed"
	EventReviewRequired      Event = "review_required"
	EventError               Event = "error"
	EventTest                Event = "test"
)

// Payload carries event-specific values. Keys are documented per event in the
// render table below; unknown keys are ignored.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		settings: cfg.Notifications,
	}
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	settings config.Notifications
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

// Publish renders and delivers the event. Suppressed events return nil without
// touching the network.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventJobQueued, EventQueueStarted, EventQueueCompleted:
		return n.settings.Queue
	case EventProcessingCompleted:
		return n.settings.Completion
	case EventReviewRequired:
		return n.settings.Review
	case EventError:
		return n.settings.Errors
	case EventTest:
		return true
	default:
		// Per-stage completions are log material, not push material.
		return false
	}
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobQueued:
		return message{
			title: "Upscale - Queued",
			body:  fmt.Sprintf("Queued: %s", payloadString(payload, "title")),
			tags:  []string{"upscale", "queue", "added"},
		}, true
	case EventProcessingCompleted:
		body := fmt.Sprintf("✅ Ready to watch: %s", payloadString(payload, "title"))
		if finalFile := payloadString(payload, "finalFile"); finalFile != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, finalFile)
		}
		return message{
			title:    "Upscale - Complete",
			body:     body,
			tags:     []string{"upscale", "workflow", "completed"},
			priority: "high",
		}, true
	case EventQueueStarted:
		return message{
			title: "Upscale - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %s items", payloadString(payload, "count")),
			tags:  []string{"upscale", "queue", "started"},
		}, true
	case EventQueueCompleted:
		return message{
			title: "Upscale - Queue Complete",
			body:  queueCompletedBody(payload),
			tags:  []string{"upscale", "queue", "completed"},
		}, true
	case EventReviewRequired:
		body := fmt.Sprintf("⚠️ Needs review: %s", payloadString(payload, "title"))
		if reason := payloadString(payload, "reason"); reason != "" {
			body = fmt.Sprintf("%s\nReason: %s", body, reason)
		}
		return message{
			title: "Upscale - Review Required",
			body:  body,
			tags:  []string{"upscale", "review"},
		}, true
	case EventError:
		body := "❌ Error"
		if contextLabel := payloadString(payload, "context"); contextLabel != "" {
			body = fmt.Sprintf("%s with %s", body, contextLabel)
		}
		detail := payloadString(payload, "error")
		if detail == "" {
			detail = "unknown"
		}
		return message{
			title:    "Upscale - Error",
			body:     fmt.Sprintf("%s: %s", body, detail),
			tags:     []string{"upscale", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Upscale - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"upscale", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func queueCompletedBody(payload Payload) string {
	processed := payloadString(payload, "processed")
	failed := payloadString(payload, "failed")
	duration := payloadString(payload, "duration")
	if duration == "" {
		duration = "0s"
	}
	if failed == "" || failed == "0" {
		return fmt.Sprintf("Queue processing complete: %s items processed in %s", processed, duration)
	}
	return fmt.Sprintf("Queue processing complete: %s succeeded, %s failed in %s", processed, failed, duration)
}

func payloadString(payload Payload, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case time.Duration:
		return v.Round(time.Second).String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %s", resp.Status)
	}
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
