// Command pdfviewd hosts viewer instances headlessly from a YAML manifest
// and serves the diagnostics API. The manifest is watched: edits unload
// and reload the hosted viewers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/use-agent/pdfview/api"
	"github.com/use-agent/pdfview/config"
	"github.com/use-agent/pdfview/dom"
	"github.com/use-agent/pdfview/viewer"
	"github.com/use-agent/pdfview/webhook"
)

// manifest is the on-disk description of the hosted viewers.
type manifest struct {
	Viewers []manifestEntry `yaml:"viewers"`
}

type manifestEntry struct {
	Container  string  `yaml:"container"`
	Source     string  `yaml:"source"`
	Scale      float64 `yaml:"scale"`
	PageBuffer int     `yaml:"pageBuffer"`
	OnlyPage   int     `yaml:"onlyPage"`
	Password   string  `yaml:"password"`
}

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pdfviewd starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"manifest", cfg.Viewer.ManifestPath,
	)

	// ── 3. Load the manifest and host its viewers ───────────────────
	reg := viewer.NewRegistry()
	defer reg.Destroy()

	var fw *webhook.Forwarder
	if cfg.Webhook.URL != "" {
		fw = webhook.NewForwarder(cfg.Webhook)
		defer fw.Close()
		slog.Info("webhook forwarding enabled",
			"url", cfg.Webhook.URL, "transient", cfg.Webhook.TransientEvents)
	}

	host := newHost(reg, cfg, fw)
	if err := host.reload(); err != nil {
		slog.Error("initial manifest load failed", "error", err)
		os.Exit(1)
	}

	// ── 4. Watch the manifest for edits ─────────────────────────────
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("failed to create manifest watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Close()
	if err := watcher.Add(cfg.Viewer.ManifestPath); err != nil {
		slog.Warn("manifest not watchable, live reload disabled", "error", err)
	} else {
		go host.watch(watcher)
	}

	// ── 5. Start the diagnostics server ─────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(reg, cfg, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		slog.Info("diagnostics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("diagnostics server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("diagnostics server forced shutdown", "error", err)
	}

	reg.Destroy()
	slog.Info("pdfviewd stopped")
}

// host owns the tree the daemon's viewers live in and reconciles it with
// the manifest.
type host struct {
	reg  *viewer.Registry
	cfg  *config.Config
	fw   *webhook.Forwarder
	tree *dom.Tree
}

func newHost(reg *viewer.Registry, cfg *config.Config, fw *webhook.Forwarder) *host {
	return &host{reg: reg, cfg: cfg, fw: fw, tree: dom.NewTree()}
}

// reload unloads everything and loads the manifest from scratch.
func (h *host) reload() error {
	raw, err := os.ReadFile(h.cfg.Viewer.ManifestPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	h.reg.UnloadAll()
	h.tree = dom.NewTree()

	for _, entry := range m.Viewers {
		if err := h.loadEntry(entry); err != nil {
			slog.Error("viewer load failed",
				"container", entry.Container, "source", entry.Source, "error", err)
			continue
		}
	}
	slog.Info("manifest loaded", "viewers", h.reg.Stats().Instances)
	return nil
}

func (h *host) loadEntry(entry manifestEntry) error {
	container := h.tree.CreateElement("div")
	container.SetID(entry.Container)
	h.tree.Body().AppendChild(container)

	scale := entry.Scale
	if scale == 0 {
		scale = h.cfg.Viewer.Scale
	}
	buffer := entry.PageBuffer
	if buffer == 0 {
		buffer = h.cfg.Viewer.PageBuffer
	}

	handle, err := h.reg.Load(viewer.Options{
		Options: config.Options{
			ContainerID:  entry.Container,
			Tree:         h.tree,
			Source:       entry.Source,
			Password:     entry.Password,
			InitialScale: scale,
			PageBuffer:   buffer,
			OnlyPage:     entry.OnlyPage,
			WorkerSrc:    h.cfg.Viewer.WorkerSrc,
		},
	})
	if err != nil {
		container.Remove()
		return err
	}

	if h.fw != nil {
		h.fw.Attach(handle.Events())
	}
	return nil
}

// watch reloads the manifest on write events, debounced slightly since
// editors fire several events per save.
func (h *host) watch(watcher *fsnotify.Watcher) {
	var pending *time.Timer
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(250*time.Millisecond, func() {
				slog.Info("manifest changed, reloading")
				if err := h.reload(); err != nil {
					slog.Error("manifest reload failed", "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("manifest watcher error", "error", err)
		}
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
