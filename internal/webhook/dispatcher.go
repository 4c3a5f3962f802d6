// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/olegiv/agentblog/internal/util"
)

// Dispatcher defaults
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 100
	DefaultTimeout   = 10 * time.Second
)

// Config holds dispatcher configuration. An empty URL disables delivery.
type Config struct {
	URL       string
	Secret    string
	Timeout   time.Duration
	Workers   int
	QueueSize int

	// BlockPrivate refuses connections to loopback, private and link-local
	// addresses at dial time.
	BlockPrivate bool
}

// Dispatcher delivers events from a bounded queue with a fixed worker pool.
// Dispatch never blocks the caller and never reports delivery failures.
type Dispatcher struct {
	cfg     Config
	client  *http.Client
	logger  *slog.Logger
	queue   chan *Event
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool
}

// NewDispatcher creates a dispatcher. Call Start before dispatching.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.BlockPrivate {
		transport.DialContext = util.PublicDialContext(&net.Dialer{Timeout: cfg.Timeout})
	}

	return &Dispatcher{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: logger,
		queue:  make(chan *Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

// Enabled reports whether an endpoint is configured.
func (d *Dispatcher) Enabled() bool {
	return d.cfg.URL != ""
}

// Start starts the workers. It is a no-op when delivery is disabled.
func (d *Dispatcher) Start(ctx context.Context) {
	if !d.Enabled() {
		d.logger.Info("webhook delivery disabled")
		return
	}

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher", "workers", d.cfg.Workers)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop delivers what is already queued and waits for the workers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.done)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			// drain
			for {
				select {
				case ev := <-d.queue:
					d.process(ctx, ev)
				default:
					return
				}
			}
		case ev := <-d.queue:
			d.logger.Debug("webhook worker processing event", "worker_id", id, "event", ev.Type)
			d.process(ctx, ev)
		}
	}
}

// process delivers ev and logs the outcome. Panics stay inside the worker.
func (d *Dispatcher) process(ctx context.Context, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("webhook delivery panicked", "event", ev.Type, "slug", ev.Data.Slug, "panic", r)
		}
	}()

	res := d.deliver(ctx, ev)
	if res.Error != nil {
		d.logger.Warn("webhook delivery failed",
			"event", ev.Type,
			"slug", ev.Data.Slug,
			"delivery_id", res.DeliveryID,
			"status_code", res.StatusCode,
			"error", res.Error)
		return
	}
	d.logger.Info("webhook delivered",
		"event", ev.Type,
		"slug", ev.Data.Slug,
		"delivery_id", res.DeliveryID,
		"status_code", res.StatusCode)
}

// Dispatch queues ev for delivery. Events are dropped when delivery is
// disabled, the dispatcher is stopped or the queue is full.
func (d *Dispatcher) Dispatch(ev *Event) {
	if !d.Enabled() {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		d.logger.Warn("dispatcher not running, dropping event", "event", ev.Type, "slug", ev.Data.Slug)
		return
	}

	select {
	case d.queue <- ev:
	default:
		d.logger.Warn("webhook queue full, dropping event", "event", ev.Type, "slug", ev.Data.Slug)
	}
}

// Notify builds and queues an event.
func (d *Dispatcher) Notify(eventType string, data PostEventData) {
	d.Dispatch(NewEvent(eventType, data))
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature.
func VerifySignature(payload []byte, signature, secret string) bool {
	expectedSig := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
