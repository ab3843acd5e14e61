// Package webhooks notifies HTTP endpoints when a plan has been executed.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultTimeout     = 500 * time.Millisecond
	defaultConcurrency = 4
)

// Payload is the body posted after a plan run.
type Payload struct {
	PlanID    string `json:"plan_id"`
	Namespace string `json:"namespace"`
	PlanRev   string `json:"plan_rev"`
	Actor     string `json:"actor"`
	DryRun    bool   `json:"dry_run"`
	Moved     int    `json:"moved"`
	Resumed   int    `json:"resumed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// Dispatcher posts payloads to a fixed set of endpoints
type Dispatcher struct {
	urls    []string
	client  *http.Client
	workers int
	logger  *slog.Logger
}

// New creates a dispatcher for the raw URLs. Invalid URLs are dropped at
// dispatch time, after templating.
func New(urls []string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		urls:    urls,
		client:  &http.Client{Timeout: defaultTimeout},
		workers: defaultConcurrency,
		logger:  logger,
	}
}

// Targets returns the templated, normalized and de-duplicated endpoints for payload.
func (d *Dispatcher) Targets(payload Payload) []string {
	return d.normalize(d.urls, payload)
}

// Dispatch posts payload to every target. Delivery failures are logged and
// never returned; the number of successful deliveries is.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) int {
	urls := d.Targets(payload)
	if len(urls) == 0 {
		return 0
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("failed to encode webhook payload", "error", err)
		return 0
	}

	workers := d.workers
	if len(urls) < workers {
		workers = len(urls)
	}

	var (
		mu        sync.Mutex
		delivered int
	)
	jobs := make(chan string)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for endpoint := range jobs {
				if err := d.send(ctx, endpoint, body); err != nil {
					d.logger.Warn("webhook delivery failed", "url", endpoint, "error", err)
					continue
				}
				mu.Lock()
				delivered++
				mu.Unlock()
			}
		}()
	}

	for _, endpoint := range urls {
		jobs <- endpoint
	}
	close(jobs)
	wg.Wait()

	return delivered
}

func (d *Dispatcher) normalize(urls []string, payload Payload) []string {
	if len(urls) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(urls))
	var normalized []string

	for _, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		templated := strings.TrimSpace(applyTemplate(trimmed, payload))
		templated = strings.TrimRight(templated, "/")
		if templated == "" {
			continue
		}
		if !isValidWebhookURL(templated) {
			d.logger.Warn("skipping invalid webhook url", "url", templated)
			continue
		}
		if _, ok := seen[templated]; ok {
			continue
		}
		seen[templated] = struct{}{}
		normalized = append(normalized, templated)
	}

	return normalized
}

func applyTemplate(raw string, payload Payload) string {
	result := strings.ReplaceAll(raw, "{plan_id}", payload.PlanID)
	result = strings.ReplaceAll(result, "{namespace}", url.PathEscape(payload.Namespace))
	return result
}

func isValidWebhookURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

func (d *Dispatcher) send(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
