package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
)

// Sink accepts analytics events for delivery.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// WebhookConfig configures a WebhookSink.
type WebhookConfig struct {
	URL        string
	Source     string
	AppVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// WebhookSink delivers events to an HTTP endpoint as JSON.
type WebhookSink struct {
	cfg    WebhookConfig
	client *http.Client
}

// NewWebhookSink validates the config and returns a sink.
func NewWebhookSink(cfg WebhookConfig) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if cfg.Source == "" {
		cfg.Source = "meditation-pipeline"
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = "dev"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &WebhookSink{cfg: cfg, client: client}, nil
}

// Publish posts one event. The receiver's response body is discarded.
func (s *WebhookSink) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(envelope{
		Event:      event,
		Source:     s.cfg.Source,
		AppVersion: s.cfg.AppVersion,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := ValidatePayload(body); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fault.FromNetwork("webhook", err)
	}
	defer resp.Body.Close()
	sample, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fault.FromStatus("webhook", resp.StatusCode, sample)
	}
	return nil
}
