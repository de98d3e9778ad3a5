package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/use-agent/pdfview/config"
	"github.com/use-agent/pdfview/dom"
	"github.com/use-agent/pdfview/events"
	"github.com/use-agent/pdfview/models"
	"github.com/use-agent/pdfview/pool"
	"github.com/use-agent/pdfview/provider"
	"github.com/use-agent/pdfview/textextract"
	"github.com/use-agent/pdfview/virtualizer"
)

// Options extends the per-load configuration with the collaborator hooks a
// caller may inject. A pre-opened Document takes precedence over Source.
type Options struct {
	config.Options

	// Document overrides source fetching with an already-open provider
	// document. The instance takes ownership and closes it on destroy.
	Document provider.Document

	// OpenDocument overrides how raw bytes become a document; the default
	// opens them with the MuPDF backend. Called again with the prompted
	// password when the first attempt reports an encrypted document.
	OpenDocument func(data []byte, password string) (provider.Document, error)

	Annotations AnnotationService
	Search      SearchService
	Download    DownloadService
}

// Instance is one viewer: a document, its pools, its event bus, and its
// virtualizer, bound to one host container.
type Instance struct {
	id          string
	containerID string
	opts        Options

	bus       *events.Bus
	canvases  *pool.CanvasPool
	bitmaps   *pool.BitmapPool
	doc       provider.Document
	virt      *virtualizer.Virtualizer
	search    SearchService
	extractor *textextract.Service
	toolbar   config.Toolbar

	ready     atomic.Bool
	destroyed atomic.Bool
}

// annotationBridge adapts an AnnotationService to the virtualizer's
// overlay-builder contract.
type annotationBridge struct {
	svc AnnotationService
}

func (b annotationBridge) Attach(page int, host *dom.Element) (func(), error) {
	return b.svc.Attach(page, host)
}

// textSearchAdapter exposes the extractor as the viewer's search
// capability.
type textSearchAdapter struct {
	svc *textextract.Service
}

func (a textSearchAdapter) Search(ctx context.Context, query string) ([]SearchMatch, error) {
	ms, err := a.svc.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]SearchMatch, 0, len(ms))
	for _, m := range ms {
		out = append(out, SearchMatch{Page: m.Page, Index: m.Index, Excerpt: m.Excerpt})
	}
	return out, nil
}

// newInstance runs the initialization sequence: pools, document, scaffold,
// virtualizer, observer, loaded event. Any failure tears down the partial
// construction and surfaces a distinguished error.
func newInstance(id string, opts Options) (*Instance, error) {
	opts.Defaults()
	if opts.Tree == nil {
		return nil, models.NewViewerError(models.ErrCodeInvalidInput, "options.Tree is required", nil)
	}
	container := opts.Tree.GetByID(opts.ContainerID)
	if container == nil {
		return nil, models.NewViewerError(models.ErrCodeInvalidInput,
			fmt.Sprintf("container element %q not found", opts.ContainerID), nil)
	}

	provider.SetWorkerSource(opts.WorkerSrc)

	inst := &Instance{
		id:          id,
		containerID: opts.ContainerID,
		opts:        opts,
		bus:         events.NewBus(id),
		canvases:    pool.NewCanvasPool(opts.CanvasPoolMax, opts.DevicePixelRatio),
		bitmaps:     pool.NewBitmapPool(opts.BitmapPoolMax),
	}

	doc, err := inst.openDocument()
	if err != nil {
		inst.failLoad(err)
		return nil, err
	}
	inst.doc = doc

	if opts.Search != nil {
		inst.search = opts.Search
	} else if !opts.DisableTextSelection {
		inst.extractor = textextract.New(doc)
		inst.search = textSearchAdapter{svc: inst.extractor}
	}

	var annotations virtualizer.OverlayBuilder
	if opts.Annotations != nil {
		annotations = annotationBridge{svc: opts.Annotations}
	}

	virt, err := virtualizer.New(virtualizer.Config{
		InstanceID:  id,
		Document:    doc,
		Tree:        opts.Tree,
		Container:   container,
		Bus:         inst.bus,
		Canvases:    inst.canvases,
		Bitmaps:     inst.bitmaps,
		Options:     opts.Options,
		Annotations: annotations,
	})
	if err != nil {
		inst.failLoad(err)
		return nil, err
	}
	inst.virt = virt

	if err := inst.mountToolbar(container); err != nil {
		inst.failLoad(err)
		return nil, err
	}

	inst.ready.Store(true)
	inst.bus.Emit(&events.Loaded{PageCount: doc.PageCount()})
	slog.Info("viewer loaded",
		"instance", id, "container", opts.ContainerID, "pages", doc.PageCount())
	return inst, nil
}

// openDocument resolves bytes and decodes them, running the password retry
// hook when the document turns out to be encrypted.
func (i *Instance) openDocument() (provider.Document, error) {
	if i.opts.Document != nil {
		return i.opts.Document, nil
	}

	data, err := provider.FetchSource(context.Background(), i.opts.Source, i.opts.SourceData,
		func(loaded, total int64) {
			i.bus.Emit(&events.Progress{LoadedBytes: loaded, TotalBytes: total})
		})
	if err != nil {
		return nil, models.NewViewerError(models.ErrCodeDocumentLoad, "fetch document source", err)
	}

	open := i.opts.OpenDocument
	if open == nil {
		open = func(b []byte, _ string) (provider.Document, error) {
			return provider.OpenFitz(b)
		}
	}

	doc, err := open(data, i.opts.Password)
	if err == nil {
		return doc, nil
	}
	if models.CodeOf(err) != models.ErrCodePasswordRequired {
		return nil, err
	}

	i.bus.Emit(&events.PasswordRequired{})
	if i.opts.PasswordPrompt != nil {
		if pw, ok := i.opts.PasswordPrompt(); ok {
			if doc, retryErr := open(data, pw); retryErr == nil {
				return doc, nil
			} else {
				err = retryErr
			}
		}
	}
	return nil, err
}

func (i *Instance) mountToolbar(container *dom.Element) error {
	if i.opts.DisableToolbar || i.opts.CustomToolbar == nil {
		return nil
	}
	host := i.opts.Tree.CreateElement("div")
	host.SetID("toolbar-" + i.id)
	container.AppendChild(host)
	if err := i.opts.CustomToolbar.Render(host); err != nil {
		host.Remove()
		return models.NewViewerError(models.ErrCodeDocumentLoad, "mount toolbar", err)
	}
	i.toolbar = i.opts.CustomToolbar
	return nil
}

// failLoad emits loadError, tears down whatever was built, and leaves the
// instance unusable.
func (i *Instance) failLoad(err error) {
	var ve *models.ViewerError
	kind := models.ErrCodeDocumentLoad
	if errors.As(err, &ve) {
		kind = ve.Code
	}
	i.bus.Emit(&events.LoadError{Kind: kind, Message: err.Error()})
	i.teardown()
}

// teardown releases everything the instance owns. Safe to call on a
// partially constructed instance.
func (i *Instance) teardown() {
	if i.virt != nil {
		i.virt.Destroy()
	}
	if i.toolbar != nil {
		i.toolbar.Destroy()
		i.toolbar = nil
	}
	if i.extractor != nil {
		i.extractor.Stop()
		i.extractor = nil
	}
	if i.doc != nil {
		if err := i.doc.Close(); err != nil {
			slog.Warn("document close failed", "instance", i.id, "error", err)
		}
		i.doc = nil
	}
	i.canvases.Close()
	i.bitmaps.Destroy()
}

// Destroy tears the instance down and emits the final destroyed event.
// It is idempotent.
func (i *Instance) Destroy() {
	if !i.destroyed.CompareAndSwap(false, true) {
		return
	}
	i.ready.Store(false)
	i.teardown()
	i.bus.Emit(&events.Destroyed{})
	i.bus.Destroy()
	slog.Info("viewer destroyed", "instance", i.id)
}

// --- accessors used by the facade --------------------------------------

func (i *Instance) InstanceID() string { return i.id }
func (i *Instance) ContainerID() string { return i.containerID }
func (i *Instance) IsReady() bool { return i.ready.Load() }
func (i *Instance) IsDestroyed() bool { return i.destroyed.Load() }

func (i *Instance) TotalPages() int {
	if i.doc == nil {
		return 0
	}
	return i.doc.PageCount()
}

func (i *Instance) Metadata() map[string]string {
	if i.doc == nil {
		return nil
	}
	return i.doc.Metadata()
}

func (i *Instance) guard() error {
	if i.destroyed.Load() || i.virt == nil {
		return models.NewViewerError(models.ErrCodeNotFound, "viewer instance destroyed", nil)
	}
	return nil
}

func (i *Instance) CurrentPage() int {
	if i.guard() != nil {
		return 0
	}
	return i.virt.CurrentPage()
}

func (i *Instance) CurrentScale() float64 {
	if i.guard() != nil {
		return 0
	}
	return i.virt.Scale()
}

func (i *Instance) GoToPage(n int) error {
	if err := i.guard(); err != nil {
		return err
	}
	return i.virt.GoToPage(n)
}

func (i *Instance) NextPage() error { return i.GoToPage(i.CurrentPage() + 1) }
func (i *Instance) PreviousPage() error { return i.GoToPage(i.CurrentPage() - 1) }
func (i *Instance) FirstPage() error { return i.GoToPage(1) }
func (i *Instance) LastPage() error { return i.GoToPage(i.TotalPages()) }

func (i *Instance) ZoomIn() float64 {
	if i.guard() != nil {
		return 0
	}
	return i.virt.ZoomIn()
}

func (i *Instance) ZoomOut() float64 {
	if i.guard() != nil {
		return 0
	}
	return i.virt.ZoomOut()
}

func (i *Instance) SetZoom(s float64) float64 {
	if i.guard() != nil {
		return 0
	}
	return i.virt.SetZoom(s)
}

func (i *Instance) FitWidth() float64 {
	if i.guard() != nil {
		return 0
	}
	return i.virt.FitWidth()
}

func (i *Instance) FitPage() float64 {
	if i.guard() != nil {
		return 0
	}
	return i.virt.FitPage()
}

func (i *Instance) Rotate(deg int) {
	if i.guard() == nil {
		i.virt.Rotate(deg)
	}
}

func (i *Instance) SetScrollTop(y float64) {
	if i.guard() == nil {
		i.virt.SetScrollTop(y)
	}
}

// InstanceStats summarizes one instance for diagnostics.
type InstanceStats struct {
	InstanceID  string     `json:"instance_id"`
	ContainerID string     `json:"container_id"`
	CurrentPage int        `json:"current_page"`
	Scale       float64    `json:"scale"`
	TotalPages  int        `json:"total_pages"`
	QueueDepth  int        `json:"queue_depth"`
	Canvases    pool.Stats `json:"canvases"`
	Bitmaps     pool.Stats `json:"bitmaps"`
}

// Stats returns the instance diagnostics snapshot.
func (i *Instance) Stats() InstanceStats {
	s := InstanceStats{
		InstanceID:  i.id,
		ContainerID: i.containerID,
		TotalPages:  i.TotalPages(),
		Canvases:    i.canvases.Stats(),
		Bitmaps:     i.bitmaps.Stats(),
	}
	if i.guard() == nil {
		snap := i.virt.Snapshot()
		s.CurrentPage = snap.CurrentPage
		s.Scale = snap.Scale
		s.QueueDepth = snap.QueueDepth
	}
	return s
}
