package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/pdfview/config"
	"github.com/use-agent/pdfview/events"
)

type capture struct {
	mu     sync.Mutex
	bodies [][]byte
	sigs   []string
	fail   int // number of initial requests to reject
}

func (c *capture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.fail > 0 {
			c.fail--
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		c.bodies = append(c.bodies, body)
		c.sigs = append(c.sigs, r.Header.Get("X-PDFView-Signature"))
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func waitForDeliveries(t *testing.T, c *capture, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d deliveries (got %d)", n, c.count())
}

func forwarderConfig(url string) config.WebhookConfig {
	return config.WebhookConfig{
		URL:             url,
		Secret:          "hunter2",
		Timeout:         time.Second,
		RetryDelays:     []time.Duration{5 * time.Millisecond, 10 * time.Millisecond},
		TransientEvents: true,
	}
}

func TestForwarderDeliversSignedLifecycleEvent(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	f := NewForwarder(forwarderConfig(srv.URL))
	defer f.Close()

	bus := events.NewBus("pv-1")
	detach := f.Attach(bus)
	defer detach()

	bus.Emit(&events.Loaded{PageCount: 12})
	waitForDeliveries(t, c, 1)

	c.mu.Lock()
	body, sig := c.bodies[0], c.sigs[0]
	c.mu.Unlock()

	if want := Signature("hunter2", body); sig != want {
		t.Errorf("signature = %q, want %q", sig, want)
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if p.Event != "loaded" || p.InstanceID != "pv-1" || p.EmittedAt.IsZero() {
		t.Errorf("payload = %+v", p)
	}
}

func TestForwarderRetriesLifecycleEvents(t *testing.T) {
	c := &capture{fail: 1}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	f := NewForwarder(forwarderConfig(srv.URL))
	defer f.Close()

	bus := events.NewBus("pv-1")
	defer f.Attach(bus)()

	bus.Emit(&events.Destroyed{})
	waitForDeliveries(t, c, 1)
}

func TestForwarderSendsTransientOnce(t *testing.T) {
	c := &capture{fail: 1}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	f := NewForwarder(forwarderConfig(srv.URL))
	defer f.Close()

	bus := events.NewBus("pv-1")
	defer f.Attach(bus)()

	// The first pageChange hits the failing attempt and must not retry;
	// the second gets through.
	bus.Emit(&events.PageChange{Page: 2})
	bus.Emit(&events.PageChange{Page: 3})
	waitForDeliveries(t, c, 1)

	time.Sleep(50 * time.Millisecond)
	if c.count() != 1 {
		t.Errorf("transient event was retried: %d deliveries", c.count())
	}
}

func TestForwarderSkipsTransientWhenDisabled(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	cfg := forwarderConfig(srv.URL)
	cfg.TransientEvents = false
	f := NewForwarder(cfg)
	defer f.Close()

	bus := events.NewBus("pv-1")
	defer f.Attach(bus)()

	bus.Emit(&events.ScaleChange{Scale: 2})
	bus.Emit(&events.Loaded{PageCount: 1})
	waitForDeliveries(t, c, 1)

	var p Payload
	c.mu.Lock()
	json.Unmarshal(c.bodies[0], &p)
	c.mu.Unlock()
	if p.Event != "loaded" {
		t.Errorf("delivered %q, want only the lifecycle event", p.Event)
	}
}

func TestForwarderUnsignedWithoutSecret(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	cfg := forwarderConfig(srv.URL)
	cfg.Secret = ""
	f := NewForwarder(cfg)
	defer f.Close()

	bus := events.NewBus("pv-1")
	defer f.Attach(bus)()

	bus.Emit(&events.Loaded{})
	waitForDeliveries(t, c, 1)

	c.mu.Lock()
	sig := c.sigs[0]
	c.mu.Unlock()
	if sig != "" {
		t.Errorf("unexpected signature header %q", sig)
	}
}

func TestSignature(t *testing.T) {
	body := []byte(`{"event":"loaded"}`)
	mac := hmac.New(sha256.New, []byte("k"))
	mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if got := Signature("k", body); got != want {
		t.Errorf("Signature = %q, want %q", got, want)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	f := NewForwarder(forwarderConfig("http://127.0.0.1:0"))
	f.Close()
	f.Close()
}
