// Package webhook implements an HTTP webhook notifier
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/perftrack/internal/notifier"
)

// Webhook implements the Notifier interface for HTTP webhooks
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New creates a new Webhook notifier
func New(url string, headers map[string]string) *Webhook {
	return &Webhook{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Init(cfg notifier.Config) error {
	if url := cfg.StringParam("url"); url != "" {
		w.url = url
	}
	if headers := cfg.StringMapParam("headers"); headers != nil {
		w.headers = headers
	}

	if w.url == "" {
		return fmt.Errorf("webhook: url is required")
	}

	if w.client == nil {
		w.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

// Notify posts one JSON document carrying every event of the run.
func (w *Webhook) Notify(ctx context.Context, events []notifier.Event) error {
	if len(events) == 0 {
		return nil
	}

	payloads := make([]map[string]any, len(events))
	for i, ev := range events {
		payloads[i] = eventToPayload(ev)
	}

	return w.post(ctx, map[string]any{
		"type":   "transitions",
		"run_id": events[0].RunID,
		"count":  len(events),
		"events": payloads,
	})
}

func eventToPayload(ev notifier.Event) map[string]any {
	sig := ev.Signal
	p := map[string]any{
		"id":          sig.ID,
		"ticker":      sig.Ticker,
		"universe":    sig.Universe,
		"strategy":    sig.Strategy,
		"date_signal": sig.DateSignal,
		"from":        ev.From,
		"to":          sig.Status(),
		"entry_price": sig.Execution.EntryPrice,
		"entry_date":  sig.Execution.EntryDate,
	}
	if ev.Closed() {
		p["exit_price"] = sig.Execution.ExitPrice
		p["exit_date"] = sig.Execution.ExitDate
		p["exit_reason"] = sig.Execution.ExitReason
		p["perf_pct"] = ev.PerfPct
		p["r"] = ev.R
	}
	return p
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode)
	}

	return nil
}
