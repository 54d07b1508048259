// Package webhook delivers scan lifecycle events to configured HTTP
// endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/sydlexius/walkup/internal/event"
	"github.com/sydlexius/walkup/internal/version"
)

const (
	maxRetries     = 3
	requestTimeout = 10 * time.Second
)

// Target is one webhook endpoint. An empty Events list subscribes it to
// every event type.
type Target struct {
	Name   string
	URL    string
	Events []string
}

// Dispatcher sends bus events to matching targets.
type Dispatcher struct {
	targets    []Target
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDispatcher creates a webhook dispatcher.
func NewDispatcher(targets []Target, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		targets:    targets,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.With(slog.String("component", "webhook")),
	}
}

// NewDispatcherWithHTTPClient creates a dispatcher with a custom HTTP
// client (for testing).
func NewDispatcherWithHTTPClient(targets []Target, httpClient *http.Client, logger *slog.Logger) *Dispatcher {
	d := NewDispatcher(targets, logger)
	d.httpClient = httpClient
	return d
}

// HandleEvent is an event.Handler that delivers the event to all matching
// targets.
func (d *Dispatcher) HandleEvent(e event.Event) {
	for i := range d.targets {
		t := d.targets[i]
		if len(t.Events) > 0 && !slices.Contains(t.Events, string(e.Type)) {
			continue
		}
		go d.deliver(t, e)
	}
}

func (d *Dispatcher) deliver(t Target, e event.Event) {
	body, err := json.Marshal(e)
	if err != nil {
		d.logger.Error("encoding webhook payload", "error", err)
		return
	}

	var lastErr error
	for attempt := range maxRetries {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		lastErr = d.send(t.URL, body)
		if lastErr == nil {
			d.logger.Debug("webhook delivered",
				"webhook", t.Name,
				"event", string(e.Type),
				"attempt", attempt+1,
			)
			return
		}

		d.logger.Warn("webhook delivery failed",
			"webhook", t.Name,
			"event", string(e.Type),
			"attempt", attempt+1,
			"error", lastErr,
		)
	}

	d.logger.Error("webhook delivery exhausted retries",
		"webhook", t.Name,
		"event", string(e.Type),
		"error", lastErr,
	)
}

func (d *Dispatcher) send(url string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Walkup-Webhook/"+version.Version)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()       //nolint:errcheck
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
