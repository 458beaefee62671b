// Package notify delivers appointment events to the notification relay on a
// best-effort basis: one attempt, bounded by a timeout, failures logged and
// dropped. Attempts run one at a time in emit order. Callers never learn
// whether delivery worked.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Emitter hands an event to the relay without blocking the caller on the
// outcome.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload any)
}

// Envelope is the body posted to the relay's /notifications endpoint.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	Source  string `json:"source"`
}

type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, string, any) {}

// DefaultQueueSize bounds how many encoded notifications may wait for the
// delivery worker before Emit starts dropping.
const DefaultQueueSize = 1024

type outbound struct {
	ctx       context.Context
	eventType string
	body      []byte
}

// HTTPEmitter posts notifications from a single worker in the order Emit
// accepted them. The queue is bounded; when it is full, or after Close, the
// notification is logged and dropped.
type HTTPEmitter struct {
	endpoint string
	source   string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan outbound
	done   chan struct{}
}

func NewHTTPEmitter(baseURL, source string, timeout time.Duration, logger *slog.Logger) *HTTPEmitter {
	return newHTTPEmitter(baseURL, source, timeout, DefaultQueueSize, logger)
}

func newHTTPEmitter(baseURL, source string, timeout time.Duration, queueSize int, logger *slog.Logger) *HTTPEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &HTTPEmitter{
		endpoint: baseURL + "/notifications",
		source:   source,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		queue:    make(chan outbound, queueSize),
		done:     make(chan struct{}),
	}
	go e.run()
	return e
}

// Emit encodes the envelope immediately and queues it for the delivery
// worker without waiting. Request cancellation does not abort the attempt;
// only the emitter timeout does.
func (e *HTTPEmitter) Emit(ctx context.Context, eventType string, payload any) {
	body, err := json.Marshal(Envelope{Type: eventType, Payload: payload, Source: e.source})
	if err != nil {
		e.logger.Error("failed to encode notification", "type", eventType, "error", err)
		return
	}

	msg := outbound{ctx: context.WithoutCancel(ctx), eventType: eventType, body: body}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.logger.Warn("emitter closed, dropping notification", "type", eventType)
		return
	}
	select {
	case e.queue <- msg:
	default:
		e.logger.Warn("notification queue full, dropping notification",
			"type", eventType,
			"capacity", cap(e.queue),
		)
	}
}

func (e *HTTPEmitter) run() {
	defer close(e.done)
	for msg := range e.queue {
		e.deliver(msg)
	}
}

func (e *HTTPEmitter) deliver(msg outbound) {
	start := time.Now()
	if err := e.send(msg.ctx, msg.body); err != nil {
		e.logger.Warn("failed to emit notification",
			"type", msg.eventType,
			"duration", time.Since(start),
			"error", err,
		)
		return
	}
	e.logger.Debug("notification emitted", "type", msg.eventType, "duration", time.Since(start))
}

func (e *HTTPEmitter) send(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("relay responded with status %d", resp.StatusCode)
	}
	return nil
}

// Close stops accepting notifications and waits for the worker to drain the
// queue or for ctx to expire. Calling it more than once is safe.
func (e *HTTPEmitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
