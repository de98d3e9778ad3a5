// Package provider defines the document-provider boundary: opaque document
// and page handles plus cancellable render tasks. The core never sees the
// decoder itself, only these interfaces. Two backends ship with the module:
// a MuPDF-backed one (go-fitz) and a synthetic one for placeholders and
// mini-viewer demos.
package provider

import (
	"context"
	"log/slog"
	"sync"

	"github.com/use-agent/pdfview/models"
)

// Document is an opaque reference to a decoded document. Exactly one
// Document exists per viewer instance; Close releases all decoder state.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// Page returns the handle for a 1-based page number.
	Page(ctx context.Context, n int) (Page, error)

	// Metadata returns decoder-reported document information.
	Metadata() map[string]string

	// Close releases the document. Pages obtained from it become invalid.
	Close() error
}

// Page is an opaque reference to a single page. Pages are cacheable and may
// be released when they leave the virtualization window.
type Page interface {
	// Number returns the 1-based page number.
	Number() int

	// Size returns the page dimensions in CSS pixels at scale 1, rotation 0.
	Size() (w, h float64)

	// Render starts rasterizing the page at the viewport's scale and
	// rotation. It returns immediately; the returned task completes or is
	// cancelled asynchronously.
	Render(ctx context.Context, vp models.Viewport) *RenderTask

	// TextContent returns positioned text runs for the page.
	TextContent(ctx context.Context) ([]TextItem, error)

	// HTML returns the page content as HTML markup, when the backend
	// supports it.
	HTML(ctx context.Context) (string, error)

	// Annotations returns the page's annotations.
	Annotations(ctx context.Context) ([]Annotation, error)

	// Links returns the page's link targets.
	Links(ctx context.Context) ([]Link, error)

	// Close releases the page handle.
	Close() error
}

// TextItem is one positioned text run in CSS pixels at scale 1.
type TextItem struct {
	Str    string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Annotation is a decoder-level page annotation.
type Annotation struct {
	ID       string
	Page     int
	Kind     string
	Rect     [4]float64
	Contents string
}

// Link is a link target on a page.
type Link struct {
	URI  string
	Page int
}

// passwordError builds the distinguished encrypted-document error.
func passwordError(err error) error {
	return models.NewViewerError(models.ErrCodePasswordRequired, "document is encrypted", err)
}

// The worker source is a process-wide constant: the first non-empty value
// wins and later writes are ignored, matching how the browser original
// treats its worker URL.
var (
	workerSrcMu  sync.Mutex
	workerSrcVal string
	workerSrcSet bool
)

// SetWorkerSource configures the provider worker location once per process.
func SetWorkerSource(src string) {
	if src == "" {
		return
	}
	workerSrcMu.Lock()
	defer workerSrcMu.Unlock()
	if workerSrcSet {
		if src != workerSrcVal {
			slog.Debug("worker source already configured, ignoring override",
				"configured", workerSrcVal, "ignored", src)
		}
		return
	}
	workerSrcVal = src
	workerSrcSet = true
}

// WorkerSource returns the configured worker location ("" when unset).
func WorkerSource() string {
	workerSrcMu.Lock()
	defer workerSrcMu.Unlock()
	return workerSrcVal
}
