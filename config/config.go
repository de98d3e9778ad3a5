// Package config holds the per-load viewer options and the process-wide
// configuration read from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/pdfview/dom"
)

// Toolbar is the replacement-toolbar contract. A custom toolbar is mounted
// into the viewer scaffold and destroyed with the instance.
type Toolbar interface {
	Render(host *dom.Element) error
	Destroy()
}

// Options are the per-load viewer options.
type Options struct {
	// ContainerID is the id of the host element inside Tree. Required;
	// at most one viewer may occupy a container.
	ContainerID string

	// Tree is the host document tree the viewer builds its subtree in.
	// Required.
	Tree *dom.Tree

	// Source locates the document: a file path or an http(s) URL.
	// Ignored when SourceData or Document is set.
	Source string

	// SourceData is the raw document bytes, taking precedence over Source.
	SourceData []byte

	// Password decrypts protected documents. When empty and the document
	// is encrypted, PasswordPrompt is consulted; without either the load
	// fails with PASSWORD_REQUIRED.
	Password string

	// PasswordPrompt is invoked once when a document needs a password.
	// Returning ok=false rejects the load.
	PasswordPrompt func() (password string, ok bool)

	DisableToolbar       bool
	DisableTextSelection bool

	// OnlyPage renders exactly one page when > 0 (mini-viewer mode).
	OnlyPage int

	// ToolbarOptions toggles toolbar sub-features by name.
	ToolbarOptions map[string]bool

	// CustomToolbar replaces the toolbar implementation.
	CustomToolbar Toolbar

	InitialScale float64 // default: 1.0
	MinScale     float64 // default: 0.25
	MaxScale     float64 // default: 5.0
	ZoomStep     float64 // default: 0.25

	// PageBuffer is the window radius around the current page.
	PageBuffer int // default: 3

	// ViewportWidth/Height are the visible scroll viewport in CSS pixels.
	ViewportWidth  float64 // default: 1280
	ViewportHeight float64 // default: 900

	// DevicePixelRatio scales raster surfaces relative to CSS pixels.
	DevicePixelRatio float64 // default: 1.0

	// WorkerSrc overrides the document-provider worker location. It is a
	// process-wide singleton: the first non-empty value wins.
	WorkerSrc string

	// CanvasPoolMax / BitmapPoolMax bound the per-instance raster pools.
	CanvasPoolMax int // default: 16
	BitmapPoolMax int // default: 8
}

// Defaults fills unset option fields in place.
func (o *Options) Defaults() {
	if o.InitialScale == 0 {
		o.InitialScale = 1.0
	}
	if o.MinScale == 0 {
		o.MinScale = 0.25
	}
	if o.MaxScale == 0 {
		o.MaxScale = 5.0
	}
	if o.ZoomStep == 0 {
		o.ZoomStep = 0.25
	}
	if o.PageBuffer == 0 {
		o.PageBuffer = 3
	}
	if o.ViewportWidth == 0 {
		o.ViewportWidth = 1280
	}
	if o.ViewportHeight == 0 {
		o.ViewportHeight = 900
	}
	if o.DevicePixelRatio == 0 {
		o.DevicePixelRatio = 1.0
	}
	if o.CanvasPoolMax == 0 {
		o.CanvasPoolMax = 16
	}
	if o.BitmapPoolMax == 0 {
		o.BitmapPoolMax = 8
	}
}

// Config holds the process configuration for the headless daemon.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Webhook WebhookConfig
	Viewer  ViewerConfig
}

// ServerConfig controls the diagnostics HTTP server.
type ServerConfig struct {
	Host string // default: "127.0.0.1"
	Port int    // default: 8087
	Mode string // "debug", "release", "test"; default: "release"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// WebhookConfig controls optional event forwarding.
type WebhookConfig struct {
	// URL receives bus events when non-empty.
	URL string

	// Secret signs webhook payloads with HMAC-SHA256 when non-empty.
	Secret string

	// Timeout bounds each delivery attempt.
	Timeout time.Duration // default: 10s

	// RetryDelays is the wait ladder for lifecycle events that failed to
	// deliver; transient events are never retried.
	RetryDelays []time.Duration // default: [1s, 5s, 30s]

	// TransientEvents forwards the high-frequency viewport events
	// (pageChange, scaleChange, progress, ...) in addition to lifecycle
	// events.
	TransientEvents bool // default: true
}

// ViewerConfig carries process-level viewer defaults applied to every
// manifest entry that does not override them.
type ViewerConfig struct {
	Scale      float64 // default: 1.0
	PageBuffer int     // default: 3
	WorkerSrc  string

	// ManifestPath is the YAML document manifest the daemon hosts.
	ManifestPath string // default: "pdfviewd.yaml"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PDFVIEW_HOST", "127.0.0.1"),
			Port: envIntOr("PDFVIEW_PORT", 8087),
			Mode: envOr("PDFVIEW_MODE", "release"),
		},
		Log: LogConfig{
			Level:  envOr("PDFVIEW_LOG_LEVEL", "info"),
			Format: envOr("PDFVIEW_LOG_FORMAT", "json"),
		},
		Webhook: WebhookConfig{
			URL:     os.Getenv("PDFVIEW_WEBHOOK_URL"),
			Secret:  os.Getenv("PDFVIEW_WEBHOOK_SECRET"),
			Timeout: envDurationOr("PDFVIEW_WEBHOOK_TIMEOUT", 10*time.Second),
			RetryDelays: parseDelays(
				envSliceOr("PDFVIEW_WEBHOOK_RETRIES", nil),
				[]time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
			),
			TransientEvents: envBoolOr("PDFVIEW_WEBHOOK_TRANSIENT", true),
		},
		Viewer: ViewerConfig{
			Scale:        envFloatOr("PDFVIEW_SCALE", 1.0),
			PageBuffer:   envIntOr("PDFVIEW_PAGE_BUFFER", 3),
			WorkerSrc:    os.Getenv("PDFVIEW_WORKER_SRC"),
			ManifestPath: envOr("PDFVIEW_MANIFEST", "pdfviewd.yaml"),
		},
	}
}

// parseDelays turns env-provided duration strings into the retry ladder,
// keeping the fallback when nothing parses.
func parseDelays(raw []string, fallback []time.Duration) []time.Duration {
	out := make([]time.Duration, 0, len(raw))
	for _, s := range raw {
		if d, err := time.ParseDuration(s); err == nil && d >= 0 {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
