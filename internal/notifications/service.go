package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"reelforge/internal/config"
)

const userAgent = "reelforge/0.1"

// Event identifies the kind of notification.
type Event string

const (
	EventAssemblyCompleted Event = "assembly_completed"
	EventAssemblyFailed    Event = "assembly_failed"
	EventTest              Event = "test"
)

// Payload carries event fields. Recognized keys: projectID, outputPath,
// sizeBytes (int64), elapsed (time.Duration), error, errorKind.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy publisher, or a no-op when no topic is configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		onSuccess: cfg.Notifications.OnSuccess,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	onSuccess bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if event == EventAssemblyCompleted && !n.onSuccess {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("notifications: unknown event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	id := payload.text("projectID")
	switch event {
	case EventAssemblyCompleted:
		body := fmt.Sprintf("Rendered project %s", id)
		if out := payload.text("outputPath"); out != "" {
			body += "\nFile: " + out
		}
		var details []string
		if size, ok := payload["sizeBytes"].(int64); ok && size > 0 {
			details = append(details, humanize.IBytes(uint64(size)))
		}
		if elapsed, ok := payload["elapsed"].(time.Duration); ok && elapsed > 0 {
			details = append(details, "took "+elapsed.Round(time.Second).String())
		}
		if len(details) > 0 {
			body += "\n" + strings.Join(details, ", ")
		}
		return message{
			title: "reelforge - Render Complete",
			body:  body,
			tags:  []string{"reelforge", "render", "completed"},
		}, true
	case EventAssemblyFailed:
		body := fmt.Sprintf("Project %s failed to render", id)
		if kind := payload.text("errorKind"); kind != "" {
			body += " (" + kind + ")"
		}
		if errText := payload.text("error"); errText != "" {
			body += ": " + errText
		}
		return message{
			title:    "reelforge - Render Failed",
			body:     body,
			tags:     []string{"reelforge", "render", "error"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "reelforge - Test",
			body:     "Notification system test",
			tags:     []string{"reelforge", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return ""
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
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
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
