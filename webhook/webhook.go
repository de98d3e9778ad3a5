// Package webhook mirrors a viewer's bus events to an HTTP endpoint, for
// headless deployments that want to observe viewer lifecycles remotely.
//
// Delivery follows the events' own semantics: lifecycle events (loaded,
// loadError, passwordRequired, destroyed) are retried until the configured
// ladder is exhausted, while high-frequency viewport traffic (pageChange,
// scaleChange, progress, ...) is sent at most once and dropped when the
// sender falls behind — a slow endpoint must never stall the render path.
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
	"sync"
	"time"

	"github.com/use-agent/pdfview/config"
	"github.com/use-agent/pdfview/events"
)

// sendQueueDepth bounds how many undelivered payloads may pile up before
// transient events start being dropped.
const sendQueueDepth = 64

// Payload is the JSON body posted for each forwarded event.
type Payload struct {
	Event      string    `json:"event"`
	InstanceID string    `json:"instance_id"`
	EmittedAt  time.Time `json:"emitted_at"`
	Detail     any       `json:"detail,omitempty"`
}

// Subscribable is the slice of an event bus the forwarder needs; both the
// bus itself and the viewer's events facade satisfy it.
type Subscribable interface {
	On(t events.Type, h events.Handler) int
	Off(t events.Type, id int)
}

// lifecycleEvents are the must-not-miss kinds that earn retries.
var lifecycleEvents = map[events.Type]bool{
	events.TypeLoaded:           true,
	events.TypeLoadError:        true,
	events.TypePasswordRequired: true,
	events.TypeDestroyed:        true,
}

// transientEvents are the remaining kinds, forwarded only when the config
// asks for them.
var transientEvents = []events.Type{
	events.TypeProgress, events.TypePageChange, events.TypeScaleChange,
	events.TypeRotationChange, events.TypeDrawingStarted,
	events.TypeDrawingFinished, events.TypeAnnotationCreated,
	events.TypeAnnotationUpdated, events.TypeAnnotationDeleted,
	events.TypeAnnotationSelected, events.TypeInteractiveModeChanged,
}

type queued struct {
	payload   Payload
	lifecycle bool
}

// Forwarder posts bus events to one endpoint from a single background
// sender, so deliveries never run on an emitting goroutine.
type Forwarder struct {
	cfg    config.WebhookConfig
	client *http.Client

	sendQ chan queued
	done  chan struct{}
	stop  sync.Once
	wg    sync.WaitGroup
}

// NewForwarder creates a forwarder for the configured endpoint and starts
// its sender.
func NewForwarder(cfg config.WebhookConfig) *Forwarder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	f := &Forwarder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sendQ:  make(chan queued, sendQueueDepth),
		done:   make(chan struct{}),
	}
	f.wg.Add(1)
	go f.sender()
	return f
}

// Attach subscribes the forwarder to a bus. It returns a function that
// removes the subscriptions; the forwarder itself keeps running and can be
// attached to several buses at once.
func (f *Forwarder) Attach(bus Subscribable) func() {
	kinds := make([]events.Type, 0, len(lifecycleEvents)+len(transientEvents))
	for t := range lifecycleEvents {
		kinds = append(kinds, t)
	}
	if f.cfg.TransientEvents {
		kinds = append(kinds, transientEvents...)
	}

	ids := make(map[events.Type]int, len(kinds))
	for _, t := range kinds {
		ids[t] = bus.On(t, f.enqueue)
	}
	return func() {
		for t, id := range ids {
			bus.Off(t, id)
		}
	}
}

// enqueue hands one event to the sender. Transient events are shed when
// the queue is full; lifecycle events wait for room.
func (f *Forwarder) enqueue(e events.Event) {
	meta := e.EventMeta()
	q := queued{
		payload: Payload{
			Event:      string(e.EventType()),
			InstanceID: meta.InstanceID,
			EmittedAt:  meta.Timestamp,
			Detail:     e,
		},
		lifecycle: lifecycleEvents[e.EventType()],
	}

	if q.lifecycle {
		select {
		case f.sendQ <- q:
		case <-f.done:
		}
		return
	}
	select {
	case f.sendQ <- q:
	default:
		// Shed rather than block: the caller is the viewer's own
		// emit path.
	}
}

func (f *Forwarder) sender() {
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return
		case q := <-f.sendQ:
			f.deliver(q)
		}
	}
}

// deliver posts one payload, walking the retry ladder for lifecycle
// events. Transient failures are logged and forgotten.
func (f *Forwarder) deliver(q queued) {
	err := f.post(q.payload)
	if err == nil {
		return
	}
	if !q.lifecycle {
		slog.Debug("transient webhook event dropped",
			"event", q.payload.Event, "instance", q.payload.InstanceID, "error", err)
		return
	}

	for attempt, delay := range f.cfg.RetryDelays {
		select {
		case <-f.done:
			return
		case <-time.After(delay):
		}
		if err = f.post(q.payload); err == nil {
			return
		}
		slog.Warn("webhook retry failed",
			"event", q.payload.Event, "instance", q.payload.InstanceID,
			"attempt", attempt+1, "error", err)
	}
	slog.Error("webhook event lost after retries",
		"event", q.payload.Event, "instance", q.payload.InstanceID, "error", err)
}

// post performs a single signed delivery attempt.
func (f *Forwarder) post(p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.cfg.Secret != "" {
		req.Header.Set("X-PDFView-Signature", Signature(f.cfg.Secret, body))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint replied %d", resp.StatusCode)
	}
	return nil
}

// Signature computes the HMAC-SHA256 header value receivers verify
// payloads against.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Close stops the sender. Queued payloads that have not been posted yet
// are discarded. It is idempotent.
func (f *Forwarder) Close() {
	f.stop.Do(func() { close(f.done) })
	f.wg.Wait()
}
