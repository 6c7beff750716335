package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"murmur/internal/config"
)

const userAgent = "Murmur/0.1.0"

// Service defines the notification surface exposed to the worker pool.
type Service interface {
	NotifyJobCompleted(ctx context.Context, jobID int64, mediaID, title string) error
	NotifyJobFailed(ctx context.Context, jobID int64, url, reason string) error
	NotifyDaemonStarted(ctx context.Context, workers int) error
	TestNotification(ctx context.Context) error
}

// NewService builds a webhook-backed notification service. When no webhook
// URL is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	endpoint := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &webhookService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type webhookService struct {
	endpoint string
	client   *http.Client
}

type event struct {
	Event   string `json:"event"`
	JobID   int64  `json:"job_id,omitempty"`
	MediaID string `json:"media_id,omitempty"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Workers int    `json:"workers,omitempty"`
}

func (w *webhookService) NotifyJobCompleted(ctx context.Context, jobID int64, mediaID, title string) error {
	return w.send(ctx, event{Event: "job_completed", JobID: jobID, MediaID: mediaID, Title: title})
}

func (w *webhookService) NotifyJobFailed(ctx context.Context, jobID int64, url, reason string) error {
	return w.send(ctx, event{Event: "job_failed", JobID: jobID, URL: url, Reason: reason})
}

func (w *webhookService) NotifyDaemonStarted(ctx context.Context, workers int) error {
	return w.send(ctx, event{Event: "daemon_started", Workers: workers})
}

func (w *webhookService) TestNotification(ctx context.Context) error {
	return w.send(ctx, event{Event: "test"})
}

func (w *webhookService) send(ctx context.Context, data event) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %s", resp.Status)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, int64, string, string) error { return nil }
func (noopService) NotifyJobFailed(context.Context, int64, string, string) error    { return nil }
func (noopService) NotifyDaemonStarted(context.Context, int) error                  { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }

// NewNop returns a notification service that does nothing.
func NewNop() Service {
	return noopService{}
}
