// Package webhook notifies an external endpoint when an analysis run
// finishes.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event is the run-completed payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"` // "run.completed" or "run.failed"
	Namespace string `json:"namespace"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`

	// SectionCount and SkippedCount describe the produced crops; both
	// are zero on failure.
	SectionCount int `json:"section_count"`
	SkippedCount int `json:"skipped_count"`

	DurationMs int64 `json:"duration_ms"`

	// ErrorCode is set on run.failed events only.
	ErrorCode string `json:"error_code,omitempty"`
}

// Notifier delivers run events. A nil *Notifier is a no-op, so callers
// never need to branch on whether webhooks are configured.
type Notifier struct {
	url         string
	secret      string
	timeout     time.Duration
	maxAttempts int
	client      *http.Client
	log         *slog.Logger
}

// New creates a Notifier, or nil when no URL is configured.
func New(url, secret string, timeout time.Duration, maxAttempts int, log *slog.Logger) *Notifier {
	if url == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Notifier{
		url:         url,
		secret:      secret,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		client:      &http.Client{Timeout: timeout},
		log:         log.With("component", "webhook"),
	}
}

// Deliver sends one event synchronously. The request body is signed
// with HMAC-SHA256 when a secret is configured, via the
// X-Screenshot-Signature header.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Screenshot-Webhook/1.0")

	if n.secret != "" {
		mac := hmac.New(sha256.New, []byte(n.secret))
		mac.Write(body)
		req.Header.Set("X-Screenshot-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends an event in the background with retries and
// backoff (1s, 5s, 30s between attempts). Fire-and-forget: the run's
// result never depends on delivery.
func (n *Notifier) DeliverAsync(event *Event) {
	if n == nil {
		return
	}
	go func() {
		delays := []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second}
		for attempt := 0; attempt < n.maxAttempts && attempt < len(delays); attempt++ {
			if delays[attempt] > 0 {
				time.Sleep(delays[attempt])
			}
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				n.log.Info("webhook delivered",
					"event", event.Type,
					"namespace", event.Namespace,
					"attempt", attempt+1,
				)
				return
			}
			n.log.Warn("webhook delivery failed",
				"event", event.Type,
				"namespace", event.Namespace,
				"attempt", attempt+1,
				"error", err,
			)
		}
		n.log.Error("webhook delivery exhausted all retries",
			"event", event.Type,
			"namespace", event.Namespace,
		)
	}()
}
