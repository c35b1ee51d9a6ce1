package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediafactory/internal/config"
)

const userAgent = "mediafactory/0.1.0"

// Event names a workflow milestone worth telling a human about.
type Event string

const (
	EventJobSucceeded Event = "job_succeeded"
	EventJobFailed    Event = "job_failed"
	EventJobPublished Event = "job_published"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event specific values keyed by name.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		succeeded: cfg.Notifications.JobSucceeded,
		failed:    cfg.Notifications.JobFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	succeeded bool
	failed    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	msg, ok := n.render(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) render(event Event, data Payload) (payload, bool) {
	switch event {
	case EventJobSucceeded:
		if !n.succeeded {
			return payload{}, false
		}
		return payload{
			title:   "mediafactory - Video Ready",
			message: fmt.Sprintf("Video ready: %s\nJob: %s", stringValue(data, "topic"), stringValue(data, "job_id")),
			tags:    []string{"mediafactory", "job", "succeeded"},
		}, true
	case EventJobPublished:
		if !n.succeeded {
			return payload{}, false
		}
		message := fmt.Sprintf("Published: %s", stringValue(data, "title"))
		if url := stringValue(data, "url"); url != "" {
			message = fmt.Sprintf("%s\n%s", message, url)
		}
		return payload{
			title:    "mediafactory - Published",
			message:  message,
			tags:     []string{"mediafactory", "publish", "completed"},
			priority: "high",
		}, true
	case EventJobFailed:
		if !n.failed {
			return payload{}, false
		}
		return payload{
			title: "mediafactory - Job Failed",
			message: fmt.Sprintf("Job %s failed at %s: %s",
				stringValue(data, "job_id"), stringValue(data, "stage"), stringValue(data, "error")),
			tags:     []string{"mediafactory", "job", "failed"},
			priority: "high",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if label := stringValue(data, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if detail := stringValue(data, "error"); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "mediafactory - Error",
			message:  builder.String(),
			tags:     []string{"mediafactory", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "mediafactory - Test",
			message:  "Notification system test",
			tags:     []string{"mediafactory", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func stringValue(data Payload, key string) string {
	value, ok := data[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
