package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"framebroker/internal/config"
	"framebroker/internal/history"
)

const userAgent = "framebroker/0.1.0"

// Service sends notifications for finished jobs.
type Service interface {
	RecordJob(ctx context.Context, rec history.Record) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopService{}
	}
	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  strings.TrimSpace(cfg.Notifications.NtfyTopic),
		client:    &http.Client{Timeout: timeout},
		delivered: cfg.Notifications.NotifyDelivered,
		abandoned: cfg.Notifications.NotifyAbandoned,
	}
}

// Enabled reports whether svc actually sends anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
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
	delivered bool
	abandoned bool
}

// RecordJob notifies about one finished session. Failures always notify;
// delivered and abandoned jobs follow the configuration switches.
func (n *ntfyService) RecordJob(ctx context.Context, rec history.Record) error {
	data, ok := n.jobPayload(rec)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) jobPayload(rec history.Record) (payload, bool) {
	frames := fmt.Sprintf("%d/%d frames", rec.CompletedFrames, rec.TotalFrames)
	elapsed := rec.Duration().Round(time.Second)
	switch rec.Outcome {
	case history.OutcomeDelivered:
		if !n.delivered {
			return payload{}, false
		}
		return payload{
			title:   "framebroker - Job Delivered",
			message: fmt.Sprintf("Delivered %s to %s: %s, %d bytes of %s in %s", shortJob(rec.JobID), rec.SessionID, frames, rec.ResultBytes, rec.Format, elapsed),
			tags:    []string{"framebroker", "job", "delivered"},
		}, true
	case history.OutcomeFailed:
		message := fmt.Sprintf("Job %s for %s failed after %s", shortJob(rec.JobID), rec.SessionID, frames)
		if detail := strings.TrimSpace(rec.Detail); detail != "" {
			message += ": " + detail
		}
		return payload{
			title:    "framebroker - Job Failed",
			message:  message,
			tags:     []string{"framebroker", "job", "error"},
			priority: "high",
		}, true
	case history.OutcomeAbandoned:
		if !n.abandoned {
			return payload{}, false
		}
		return payload{
			title:   "framebroker - Job Abandoned",
			message: fmt.Sprintf("Producer %s left job %s at %s", rec.SessionID, shortJob(rec.JobID), frames),
			tags:    []string{"framebroker", "job", "abandoned"},
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "framebroker - Test",
		message:  "Notification system test",
		tags:     []string{"framebroker", "test"},
		priority: "low",
	})
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

func shortJob(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) RecordJob(context.Context, history.Record) error { return nil }
func (noopService) TestNotification(context.Context) error          { return nil }
