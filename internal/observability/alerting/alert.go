// Package alerting delivers operator notifications for safety-critical
// vault transitions: circuit breaker trips, de-peg detections and storage
// or publish failures that need human attention.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	xerrors "AegisVault/internal/errors"
	"AegisVault/pkg/logger"
)

// Channel identifies a notification transport.
type Channel string

const (
	ChannelWebhook Channel = "webhook"
	ChannelLog     Channel = "log"
)

// Event describes one condition worth alerting on.
type Event struct {
	Code       xerrors.Code
	Message    string
	Severity   xerrors.Severity
	Vault      string
	Metadata   map[string]string
	OccurredAt time.Time
}

// Notifier delivers events over one channel.
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, event Event) error
}

// Dispatcher broadcasts events to every configured notifier.
type Dispatcher interface {
	Notify(ctx context.Context, event Event) error
}

// FanoutDispatcher delivers to all registered notifiers and joins their
// failures.
type FanoutDispatcher struct {
	notifiers map[Channel]Notifier
}

// NewFanout builds a dispatcher over the given notifiers; nils are skipped.
func NewFanout(notifiers ...Notifier) *FanoutDispatcher {
	set := make(map[Channel]Notifier, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		set[n.Channel()] = n
	}
	return &FanoutDispatcher{notifiers: set}
}

// Notify broadcasts the event to every channel.
func (d *FanoutDispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, notifier := range d.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", notifier.Channel(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// WebhookNotifier posts events as JSON to an operator-supplied endpoint
// (Slack-compatible webhooks work out of the box via the text field).
type WebhookNotifier struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// Channel returns the webhook channel.
func (n *WebhookNotifier) Channel() Channel { return ChannelWebhook }

// Notify posts the event.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.URL == "" {
		logger.L().Warn("webhook notifier not configured, dropping alert",
			slog.String("code", string(event.Code)))
		return nil
	}
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := map[string]any{
		"text":     fmt.Sprintf("[%s] %s: %s", event.Severity, event.Code, event.Message),
		"code":     event.Code,
		"severity": event.Severity,
		"vault":    event.Vault,
		"at":       event.OccurredAt.Format(time.RFC3339),
		"metadata": event.Metadata,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes events to the audit logger. It is the always-on
// fallback channel.
type LogNotifier struct{}

// Channel returns the log channel.
func (LogNotifier) Channel() Channel { return ChannelLog }

// Notify records the event.
func (LogNotifier) Notify(_ context.Context, event Event) error {
	logger.Audit().Warn("alert",
		slog.String("code", string(event.Code)),
		slog.String("severity", string(event.Severity)),
		slog.String("vault", event.Vault),
		slog.String("message", event.Message),
		slog.Any("metadata", event.Metadata),
	)
	return nil
}
