package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/703deuce/upscale/internal/config"
	"github.com/703deuce/upscale/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventProcessingCompleted, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "job queued",
			event: notifications.EventJobQueued,
			payload: notifications.Payload{
				"title": "episode-01",
			},
			expectTitle:   "Upscale - Queued",
			expectMessage: "Queued: episode-01",
			expectTags:    "upscale,queue,added",
		},
		{
			name:  "processing completed",
			event: notifications.EventProcessingCompleted,
			payload: notifications.Payload{
				"title":     "episode-01",
				"finalFile": "/library/episode-01.mp4",
			},
			expectTitle:    "Upscale - Complete",
			expectMessage:  "✅ Ready to watch: episode-01\nFile: /library/episode-01.mp4",
			expectTags:     "upscale,workflow,completed",
			expectPriority: "high",
		},
		{
			name:  "review required",
			event: notifications.EventReviewRequired,
			payload: notifications.Payload{
				"title":  "broken-clip",
				"reason": "unknown model requested",
			},
			expectTitle:   "Upscale - Review Required",
			expectMessage: "⚠️ Needs review: broken-clip\nReason: unknown model requested",
			expectTags:    "upscale,review",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "extraction (item #4)",
				"error":   errors.New("ffmpeg exited with status 1"),
			},
			expectTitle:    "Upscale - Error",
			expectMessage:  "❌ Error with extraction (item #4): ffmpeg exited with status 1",
			expectTags:     "upscale,error,alert",
			expectPriority: "high",
		},
		{
			name:  "queue completed with failures",
			event: notifications.EventQueueCompleted,
			payload: notifications.Payload{
				"processed": 3,
				"failed":    1,
				"duration":  95 * time.Second,
			},
			expectTitle:   "Upscale - Queue Complete",
			expectMessage: "Queue processing complete: 3 succeeded, 1 failed in 1m35s",
			expectTags:    "upscale,queue,completed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	suppressed := []notifications.Event{
		notifications.EventFetchCompleted,
		notifications.EventUpscaleCompleted,
		notifications.EventEncodingCompleted,
	}

	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Errors = false
	cfg.Notifications.Completion = false

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventError, notifications.Payload{"error": "boom"}); err != nil {
		t.Fatalf("expected disabled error event to return nil, got %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.EventProcessingCompleted, notifications.Payload{"title": "x"}); err != nil {
		t.Fatalf("expected disabled completion event to return nil, got %v", err)
	}
}
