// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// Delivery constants
const (
	MaxResponseLen = 4 * 1024
	UserAgent      = "agentblog-webhook/1.0"
)

// DeliveryResult describes a single delivery attempt.
type DeliveryResult struct {
	DeliveryID string
	StatusCode int
	Error      error
}

// deliver POSTs ev once. There are no retries.
func (d *Dispatcher) deliver(ctx context.Context, ev *Event) DeliveryResult {
	res := DeliveryResult{DeliveryID: uuid.NewString()}

	payload, err := json.Marshal(ev)
	if err != nil {
		res.Error = fmt.Errorf("marshaling event: %w", err)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		res.Error = fmt.Errorf("creating request: %w", err)
		return res
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Webhook-Event", ev.Type)
	req.Header.Set("X-Webhook-Delivery-ID", res.DeliveryID)
	if d.cfg.Secret != "" {
		req.Header.Set("X-Webhook-Signature", GenerateSignature(payload, d.cfg.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		res.Error = fmt.Errorf("request failed: %w", err)
		return res
	}
	defer func() { _ = resp.Body.Close() }()

	// drain a bounded amount so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseLen))

	res.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return res
}
