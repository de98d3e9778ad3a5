// Package virtualizer maintains the set of materialized pages for one
// viewer instance: it derives the visible window from scroll state, drives
// the two-tier progressive render through a serialized priority queue, and
// aggressively cancels work that scrolling or zooming has made stale.
package virtualizer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/use-agent/pdfview/config"
	"github.com/use-agent/pdfview/dom"
	"github.com/use-agent/pdfview/events"
	"github.com/use-agent/pdfview/models"
	"github.com/use-agent/pdfview/pool"
	"github.com/use-agent/pdfview/provider"
)

const (
	// defaultGap separates pages vertically, in CSS pixels.
	defaultGap = 15.0

	// hardCancelLimit is the distance beyond which work is always killed.
	hardCancelLimit = 8

	// rapidScrollWindow: consecutive scroll events closer than this mark
	// the session as rapid scrolling; the state auto-clears after twice
	// the window without scrolling.
	rapidScrollWindow = 500 * time.Millisecond

	// scrollThrottle bounds how often scrolling recomputes the window.
	// Cancellation still runs on every event.
	scrollThrottle = 100 * time.Millisecond

	// queueYield is the cooperative pause between render jobs.
	queueYield = 5 * time.Millisecond

	// sweepInterval drives the periodic cancellation pass.
	sweepInterval = 2 * time.Second

	// heapPressureRatio and poolPressureMB define memory pressure.
	heapPressureRatio = 0.75
	poolPressureMB    = 50.0
)

// OverlayBuilder attaches a collaborator-owned overlay (annotations) to a
// page host element and returns its detach function.
type OverlayBuilder interface {
	Attach(pageNumber int, host *dom.Element) (detach func(), err error)
}

// Config wires a Virtualizer to the resources its instance owns.
type Config struct {
	InstanceID  string
	Document    provider.Document
	Tree        *dom.Tree
	Container   *dom.Element
	Bus         *events.Bus
	Canvases    *pool.CanvasPool
	Bitmaps     *pool.BitmapPool
	Options     config.Options
	Annotations OverlayBuilder
}

// Virtualizer is the render orchestrator for one viewer instance.
type Virtualizer struct {
	cfg   Config
	doc   provider.Document
	tree  *dom.Tree
	bus   *events.Bus
	gap   float64
	buf   int

	viewerEl *dom.Element

	mu            sync.Mutex
	slots         map[int]*slot
	pages         map[int]provider.Page
	baseSizes     []pageSize
	layout        layoutMap
	scale         float64
	rotation      int
	scrollTop     float64
	currentPage   int
	notifiedPage  int
	lastScroll    time.Time
	rapidUntil    time.Time
	fitWidthCache map[int]float64

	wrappers *wrapperPool
	queue    *renderQueue

	throttle      *rate.Limiter
	trailingTimer *time.Timer
	pageFlight    singleflight.Group

	// memProbe overrides the heap-ratio probe; the test suite injects
	// synthetic pressure through it.
	memProbe func() float64

	zoomMu        sync.Mutex
	scaleChanging atomic.Bool
	destroyed     atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// New builds the virtualizer, materializes the initial buffer, and starts
// the queue runner and the periodic sweep. When New returns, placeholders
// for the initial window exist and their renders are queued.
func New(cfg Config) (*Virtualizer, error) {
	n := cfg.Document.PageCount()
	if n < 1 {
		return nil, models.NewViewerError(models.ErrCodeDocumentLoad, "document has no pages", nil)
	}
	if cfg.Options.OnlyPage != 0 && (cfg.Options.OnlyPage < 1 || cfg.Options.OnlyPage > n) {
		return nil, models.NewViewerError(models.ErrCodeInvalidInput,
			fmt.Sprintf("page %d out of range [1, %d]", cfg.Options.OnlyPage, n), nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &Virtualizer{
		cfg:           cfg,
		doc:           cfg.Document,
		tree:          cfg.Tree,
		bus:           cfg.Bus,
		gap:           defaultGap,
		buf:           cfg.Options.PageBuffer,
		slots:         make(map[int]*slot),
		pages:         make(map[int]provider.Page),
		queue:         newRenderQueue(),
		throttle:      rate.NewLimiter(rate.Every(scrollThrottle), 1),
		fitWidthCache: make(map[int]float64),
		scale:         cfg.Options.InitialScale,
		currentPage:   1,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	if err := v.loadPageSizes(ctx, n); err != nil {
		cancel()
		return nil, err
	}
	v.layout = computeLayout(v.baseSizes, v.scale, v.rotation, v.gap)

	initialVisible := int(math.Ceil(cfg.Options.ViewportHeight / (v.layout.heights[1] + v.gap)))
	if initialVisible < 1 {
		initialVisible = 1
	}
	maxWrappers := 2*initialVisible + 5
	if n < maxWrappers {
		maxWrappers = n
	}
	v.wrappers = newWrapperPool(cfg.Tree, maxWrappers)

	v.buildScaffold()

	v.mu.Lock()
	if cfg.Options.OnlyPage > 0 {
		v.currentPage = cfg.Options.OnlyPage
		v.scrollTop = v.layout.top(cfg.Options.OnlyPage) - v.gap
	}
	v.updateWindowLocked()
	v.mu.Unlock()

	v.wg.Add(2)
	go v.runQueue()
	go v.sweepLoop()

	return v, nil
}

// loadPageSizes reads every page's base geometry once. Handles are opened
// only for measurement and closed immediately.
func (v *Virtualizer) loadPageSizes(ctx context.Context, n int) error {
	v.baseSizes = make([]pageSize, n)
	for i := 1; i <= n; i++ {
		p, err := v.doc.Page(ctx, i)
		if err != nil {
			return models.NewViewerError(models.ErrCodeDocumentLoad,
				fmt.Sprintf("measure page %d", i), err)
		}
		w, h := p.Size()
		v.baseSizes[i-1] = pageSize{w: w, h: h}
		p.Close()
	}
	return nil
}

// buildScaffold creates the isolated viewer subtree inside the container.
func (v *Virtualizer) buildScaffold() {
	el := v.tree.CreateElement("div")
	el.SetID("viewer-" + v.cfg.InstanceID)
	el.SetAttr("class", "pdfViewer")
	v.resizeScaffold(el)
	v.cfg.Container.AppendChild(el)
	v.viewerEl = el
}

func (v *Virtualizer) resizeScaffold(el *dom.Element) {
	el.SetStyles(map[string]string{
		"position": "relative",
		"width":    px(v.layout.containerWidth(v.gap)),
		"height":   px(v.layout.totalHeight),
	})
}

func px(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64) + "px"
}

// --- scroll path -------------------------------------------------------

// SetScrollTop records a scroll event. Cancellation runs immediately on
// every event; windowing is throttled, with a trailing update so the final
// position always settles.
func (v *Virtualizer) SetScrollTop(y float64) {
	if v.destroyed.Load() {
		return
	}

	v.mu.Lock()
	now := time.Now()
	if !v.lastScroll.IsZero() && now.Sub(v.lastScroll) < rapidScrollWindow {
		v.rapidUntil = now.Add(2 * rapidScrollWindow)
	}
	v.lastScroll = now
	maxScroll := v.layout.totalHeight - v.cfg.Options.ViewportHeight
	if maxScroll < 0 {
		maxScroll = 0
	}
	v.scrollTop = clampF(y, 0, maxScroll)
	v.mu.Unlock()

	// In-flight work for pages the scroll left behind dies now, not at
	// the next throttled window update.
	v.CancellationPass()

	if v.scaleChanging.Load() {
		return
	}
	if v.throttle.Allow() {
		v.updateWindow()
		return
	}
	v.scheduleTrailingUpdate()
}

func (v *Virtualizer) scheduleTrailingUpdate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.trailingTimer != nil {
		return
	}
	v.trailingTimer = time.AfterFunc(scrollThrottle, func() {
		v.mu.Lock()
		v.trailingTimer = nil
		v.mu.Unlock()
		if !v.destroyed.Load() && !v.scaleChanging.Load() {
			v.updateWindow()
		}
	})
}

// ScrollTop returns the current scroll offset.
func (v *Virtualizer) ScrollTop() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scrollTop
}

// GoToPage scrolls so the page's top sits one inter-page gap below the
// viewport top and refreshes the window immediately.
func (v *Virtualizer) GoToPage(n int) error {
	if v.destroyed.Load() {
		return models.NewViewerError(models.ErrCodeNotFound, "viewer destroyed", nil)
	}
	v.mu.Lock()
	if n < 1 || n > v.layout.pageCount() {
		v.mu.Unlock()
		return models.NewViewerError(models.ErrCodeInvalidInput,
			fmt.Sprintf("page %d out of range [1, %d]", n, v.layout.pageCount()), nil)
	}
	maxScroll := v.layout.totalHeight - v.cfg.Options.ViewportHeight
	if maxScroll < 0 {
		maxScroll = 0
	}
	v.scrollTop = clampF(v.layout.top(n)-v.gap, 0, maxScroll)
	v.mu.Unlock()

	v.CancellationPass()
	v.updateWindow()
	return nil
}

// --- windowing ---------------------------------------------------------

// updateWindow recomputes the materialized window from the current scroll
// position and reconciles slots against it.
func (v *Virtualizer) updateWindow() {
	if v.destroyed.Load() {
		return
	}
	v.mu.Lock()
	v.updateWindowLocked()
	page := v.currentPage
	v.mu.Unlock()
	v.notifyPageChange(page)
}

func (v *Virtualizer) updateWindowLocked() {
	n := v.layout.pageCount()
	mid := v.scrollTop + v.cfg.Options.ViewportHeight/2
	center := v.layout.pageAt(mid)
	v.currentPage = center

	lo, hi := center-v.buf, center+v.buf
	if only := v.cfg.Options.OnlyPage; only > 0 {
		lo, hi = only, only
		v.currentPage = only
	}
	if lo < 1 {
		lo = 1
	}
	if hi > n {
		hi = n
	}

	for page, s := range v.slots {
		if page < lo || page > hi {
			v.teardownSlotLocked(s)
		}
	}

	for page := lo; page <= hi; page++ {
		s := v.slots[page]
		if s == nil {
			s = v.materializeLocked(page)
		}
		if v.needsRenderLocked(s) {
			v.queue.enqueue(page, s.distance(v.currentPage))
		}
	}
}

func (v *Virtualizer) needsRenderLocked(s *slot) bool {
	if s.transitioning {
		return false
	}
	return !(s.fullyRendered && s.renderedScale == v.scale && s.renderedRot == v.rotation)
}

// materializeLocked runs the placeholder pass: size a wrapper to the page's
// viewport and attach it. No raster is drawn.
func (v *Virtualizer) materializeLocked(page int) *slot {
	wrapper, pooled := v.wrappers.get()
	wrapper.SetID(fmt.Sprintf("pageContainer-%s-%d", v.cfg.InstanceID, page))
	wrapper.SetAttr("data-page-number", strconv.Itoa(page))
	wrapper.SetAttr("class", "pageWrapper")
	v.styleWrapperLocked(wrapper, page)
	v.viewerEl.AppendChild(wrapper)

	s := &slot{
		pageNumber:    page,
		wrapper:       wrapper,
		wrapperPooled: pooled,
		visible:       true,
		state:         models.StatePlaceholder,
	}
	v.slots[page] = s
	return s
}

func (v *Virtualizer) styleWrapperLocked(wrapper *dom.Element, page int) {
	left := (v.layout.containerWidth(v.gap) - v.layout.widths[page]) / 2
	wrapper.SetStyles(map[string]string{
		"position":   "absolute",
		"top":        px(v.layout.top(page)),
		"left":       px(left),
		"width":      px(v.layout.widths[page]),
		"height":     px(v.layout.heights[page]),
		"background": "#fff",
	})
}

// teardownSlotLocked returns every borrowed resource and removes the slot.
func (v *Virtualizer) teardownSlotLocked(s *slot) {
	s.visible = false
	v.queue.remove(s.pageNumber)
	v.cancelBaseLocked(s)
	v.clearHiResLocked(s)
	v.destroyOverlaysLocked(s)
	if s.baseCanvas != nil {
		v.cfg.Canvases.Release(s.baseCanvas)
		s.baseCanvas = nil
	}
	if s.baseCanvasEl != nil {
		s.baseCanvasEl.Remove()
		s.baseCanvasEl = nil
	}
	v.wrappers.release(s.wrapper, s.wrapperPooled)
	if s.page != nil {
		s.page.Close()
		s.page = nil
		delete(v.pages, s.pageNumber)
	}
	s.state = models.StateAbsent
	delete(v.slots, s.pageNumber)
}

func (v *Virtualizer) notifyPageChange(page int) {
	v.mu.Lock()
	changed := page != 0 && page != v.notifiedPage
	if changed {
		v.notifiedPage = page
	}
	v.mu.Unlock()
	if changed {
		v.bus.Emit(&events.PageChange{Page: page})
	}
}

// --- render pipeline ---------------------------------------------------

func (v *Virtualizer) runQueue() {
	defer v.wg.Done()
	for {
		// Policy runs before each dequeue so a job enqueued under old
		// scroll state dies here instead of rendering.
		v.CancellationPass()

		job := v.queue.next(v.done)
		if job == nil {
			return
		}
		v.processJob(job)

		select {
		case <-v.done:
			return
		case <-time.After(queueYield):
		}
	}
}

// processJob runs the base pass (and, above scale 1, the hi-res pass) for
// one page. The queue is strictly serialized: this is the only goroutine
// that renders.
func (v *Virtualizer) processJob(job *renderJob) {
	v.mu.Lock()
	s := v.slots[job.page]
	if s == nil || !s.visible || s.transitioning || !s.wrapper.Attached() ||
		(s.fullyRendered && s.renderedScale == v.scale && s.renderedRot == v.rotation) {
		v.mu.Unlock()
		return
	}
	s.renderFailed = false
	s.transitioning = true
	s.state = models.StateBaseRendering
	scale, rotation := v.scale, v.rotation
	base := v.baseSizes[job.page-1]
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		s.transitioning = false
		// A render that went stale mid-flight (zoom, rotation) leaves the
		// slot unfinished with no queued job; put it back. Failed slots
		// wait for the next windowing pass instead.
		if s.visible && !s.renderFailed && v.needsRenderLocked(s) && !v.destroyed.Load() {
			v.queue.enqueue(s.pageNumber, s.distance(v.currentPage))
		}
		v.mu.Unlock()
	}()

	page, err := v.pageFor(job.page)
	if err != nil {
		v.markFailed(s, "fetch page handle", err)
		return
	}

	full := models.NewViewport(base.w, base.h, scale, rotation)
	baseScale := scale
	if scale > 1 {
		baseScale = math.Min(1.0, scale/2)
	}
	baseVp := models.NewViewport(base.w, base.h, baseScale, rotation)

	// The pooled raster holds base-scale pixels; CSS stretches it to the
	// full viewport, which is what makes zoom look instant-but-blurry.
	dpr := v.cfg.Canvases.DPR()
	canvas := v.cfg.Canvases.Acquire(baseVp.Width/dpr, baseVp.Height/dpr)

	task := page.Render(v.ctx, baseVp)
	v.mu.Lock()
	s.baseTask = task
	v.mu.Unlock()

	img, err := task.Wait(context.Background())

	v.mu.Lock()
	s.baseTask = nil
	stale := v.scale != scale || v.rotation != rotation || !s.visible || v.destroyed.Load()
	v.mu.Unlock()

	if err != nil {
		v.cfg.Canvases.Release(canvas)
		if provider.IsCancelled(err) {
			v.setState(s, models.StatePlaceholder)
			return
		}
		v.markFailed(s, "base render", err)
		return
	}
	if stale {
		v.cfg.Canvases.Release(canvas)
		v.setState(s, models.StatePlaceholder)
		return
	}

	// Raster pixels arrive exactly at the canvas's physical size; draw
	// them 1:1, bypassing the dpr transform.
	canvas.GC.Push()
	canvas.GC.Identity()
	canvas.GC.DrawImage(img, 0, 0)
	canvas.GC.Pop()

	v.mu.Lock()
	if !s.visible {
		v.mu.Unlock()
		v.cfg.Canvases.Release(canvas)
		return
	}
	if old := s.baseCanvas; old != nil {
		v.cfg.Canvases.Release(old)
	}
	if s.baseCanvasEl != nil {
		s.baseCanvasEl.Remove()
	}
	s.baseCanvas = canvas
	s.baseCanvasEl = v.attachBaseCanvasLocked(s, full)
	s.renderedScale = scale
	s.renderedRot = rotation
	s.state = models.StateBaseRendered
	v.mu.Unlock()

	if err := v.buildOverlays(s, page, full); err != nil {
		if !isOverlayDestroyed(err) {
			slog.Warn("overlay construction failed",
				"instance", v.cfg.InstanceID, "page", job.page, "error", err)
		}
		return
	}

	v.mu.Lock()
	s.fullyRendered = s.visible
	v.mu.Unlock()

	if scale > 1 {
		v.renderHiRes(s, page, full)
	} else {
		v.setState(s, models.StateFullyRendered)
	}
}

// attachBaseCanvasLocked mounts the base canvas element, CSS-sized to the
// full viewport.
func (v *Virtualizer) attachBaseCanvasLocked(s *slot, full models.Viewport) *dom.Element {
	el := v.tree.CreateElement("canvas")
	el.SetAttr("data-layer", "base")
	el.SetStyles(map[string]string{
		"position": "absolute",
		"top":      "0",
		"left":     "0",
		"width":    px(full.Width),
		"height":   px(full.Height),
	})
	s.wrapper.AppendChild(el)
	return el
}

// renderHiRes rasterizes at the true scale, snapshots the raster into the
// bitmap pool, and composites it into a dpr-sized display canvas layered
// above the base.
func (v *Virtualizer) renderHiRes(s *slot, page provider.Page, full models.Viewport) {
	task := page.Render(v.ctx, full)
	v.mu.Lock()
	s.hiResTask = task
	s.state = models.StateHiResRendering
	v.mu.Unlock()

	img, err := task.Wait(context.Background())

	v.mu.Lock()
	s.hiResTask = nil
	stale := v.scale != full.Scale || v.rotation != full.Rotation || !s.visible || v.destroyed.Load()
	v.mu.Unlock()

	if err != nil {
		if !provider.IsCancelled(err) {
			slog.Warn("hi-res render failed",
				"instance", v.cfg.InstanceID, "page", s.pageNumber, "error", err)
		}
		v.setState(s, models.StateBaseRendered)
		return
	}
	if stale {
		v.setState(s, models.StateBaseRendered)
		return
	}

	bmp := v.cfg.Bitmaps.Acquire(toRGBA(img), 0, 0)
	display := v.cfg.Canvases.Acquire(full.Width, full.Height)
	// The snapshot holds CSS-sized pixels; the context's dpr scale maps
	// them onto the physical raster.
	display.GC.DrawImage(bmp.RGBA, 0, 0)

	v.mu.Lock()
	if !s.visible {
		v.mu.Unlock()
		v.cfg.Bitmaps.Close(bmp)
		v.cfg.Canvases.Release(display)
		return
	}
	v.clearHiResLocked(s)
	container := v.tree.CreateElement("div")
	container.SetAttr("data-layer", "hires")
	container.SetStyles(map[string]string{
		"position": "absolute",
		"top":      "0",
		"left":     "0",
		"width":    px(full.Width),
		"height":   px(full.Height),
	})
	canvasEl := v.tree.CreateElement("canvas")
	canvasEl.SetStyles(map[string]string{
		"width":  px(full.Width),
		"height": px(full.Height),
	})
	container.AppendChild(canvasEl)
	s.wrapper.AppendChild(container)
	s.hiResContainer = container
	s.hiResBitmap = bmp
	s.hiResCanvas = display
	s.state = models.StateFullyRendered
	v.mu.Unlock()
}

func (v *Virtualizer) setState(s *slot, st models.SlotState) {
	v.mu.Lock()
	s.state = st
	v.mu.Unlock()
}

func (v *Virtualizer) markFailed(s *slot, stage string, err error) {
	v.mu.Lock()
	s.renderFailed = true
	s.state = models.StateFailed
	v.mu.Unlock()
	slog.Warn("page render failed",
		"instance", v.cfg.InstanceID, "page", s.pageNumber, "stage", stage, "error", err)
}

// pageFor returns the cached page handle, fetching it at most once even
// under concurrent demand.
func (v *Virtualizer) pageFor(n int) (provider.Page, error) {
	v.mu.Lock()
	if p, ok := v.pages[n]; ok {
		v.mu.Unlock()
		return p, nil
	}
	v.mu.Unlock()

	res, err, _ := v.pageFlight.Do(strconv.Itoa(n), func() (any, error) {
		p, err := v.doc.Page(v.ctx, n)
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		v.pages[n] = p
		if s := v.slots[n]; s != nil {
			s.page = p
		}
		v.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(provider.Page), nil
}

// --- maintenance -------------------------------------------------------

func (v *Virtualizer) sweepLoop() {
	defer v.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-v.done:
			return
		case <-ticker.C:
			v.CancellationPass()
			if v.memoryPressure() {
				v.EmergencyCancel()
			}
			v.cfg.Bitmaps.Cleanup(0)
		}
	}
}

// SetMemoryProbe overrides the heap-usage probe (returns the used/limit
// ratio). Passing nil restores the runtime probe.
func (v *Virtualizer) SetMemoryProbe(probe func() float64) {
	v.mu.Lock()
	v.memProbe = probe
	v.mu.Unlock()
}

// Stats is a point-in-time virtualizer summary.
type Stats struct {
	CurrentPage    int
	Scale          float64
	Rotation       int
	Materialized   int
	QueueDepth     int
	RapidScrolling bool
}

// Snapshot returns current virtualizer counters.
func (v *Virtualizer) Snapshot() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Stats{
		CurrentPage:    v.currentPage,
		Scale:          v.scale,
		Rotation:       v.rotation,
		Materialized:   len(v.slots),
		QueueDepth:     v.queue.length(),
		RapidScrolling: time.Now().Before(v.rapidUntil),
	}
}

// CurrentPage returns the observed current page.
func (v *Virtualizer) CurrentPage() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentPage
}

// Scale returns the current scale.
func (v *Virtualizer) Scale() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scale
}

// Rotation returns the current rotation in degrees.
func (v *Virtualizer) Rotation() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rotation
}

// Window returns the materialized page range.
func (v *Virtualizer) Window() (lo, hi int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for page := range v.slots {
		if lo == 0 || page < lo {
			lo = page
		}
		if page > hi {
			hi = page
		}
	}
	return lo, hi
}

// SlotState exposes a page's state for collaborators and tests.
func (v *Virtualizer) SlotState(page int) models.SlotState {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s := v.slots[page]; s != nil {
		return s.state
	}
	return models.StateAbsent
}

// Destroy cancels all work, tears down every slot, and removes the viewer
// subtree. It is idempotent.
func (v *Virtualizer) Destroy() {
	if !v.destroyed.CompareAndSwap(false, true) {
		return
	}
	v.cancel()
	v.queue.close()
	close(v.done)
	v.wg.Wait()

	v.mu.Lock()
	if v.trailingTimer != nil {
		v.trailingTimer.Stop()
		v.trailingTimer = nil
	}
	for _, s := range v.slots {
		v.teardownSlotLocked(s)
	}
	v.mu.Unlock()

	v.viewerEl.Remove()
}

func clampF(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
