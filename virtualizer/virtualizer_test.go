package virtualizer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/pdfview/config"
	"github.com/use-agent/pdfview/dom"
	"github.com/use-agent/pdfview/events"
	"github.com/use-agent/pdfview/models"
	"github.com/use-agent/pdfview/pool"
	"github.com/use-agent/pdfview/provider"
)

// recordingDocument wraps a provider document and records the order in
// which base renders complete.
type recordingDocument struct {
	provider.Document

	mu    sync.Mutex
	order []int
}

func (d *recordingDocument) Page(ctx context.Context, n int) (provider.Page, error) {
	p, err := d.Document.Page(ctx, n)
	if err != nil {
		return nil, err
	}
	return &recordingPage{Page: p, doc: d}, nil
}

func (d *recordingDocument) renderOrder() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.order...)
}

type recordingPage struct {
	provider.Page
	doc *recordingDocument
}

func (p *recordingPage) Render(ctx context.Context, vp models.Viewport) *provider.RenderTask {
	task := p.Page.Render(ctx, vp)
	go func() {
		if _, err := task.Wait(context.Background()); err == nil {
			p.doc.mu.Lock()
			p.doc.order = append(p.doc.order, p.Page.Number())
			p.doc.mu.Unlock()
		}
	}()
	return task
}

type testEnv struct {
	v    *Virtualizer
	bus  *events.Bus
	tree *dom.Tree
	cv   *pool.CanvasPool
	bm   *pool.BitmapPool
}

func newTestEnv(t *testing.T, doc provider.Document, mutate func(*config.Options)) *testEnv {
	t.Helper()
	tree := dom.NewTree()
	container := tree.CreateElement("div")
	container.SetID("host")
	tree.Body().AppendChild(container)

	opts := config.Options{ContainerID: "host", Tree: tree}
	opts.Defaults()
	if mutate != nil {
		mutate(&opts)
	}

	bus := events.NewBus("pv-test")
	cv := pool.NewCanvasPool(opts.CanvasPoolMax, opts.DevicePixelRatio)
	bm := pool.NewBitmapPool(opts.BitmapPoolMax)

	v, err := New(Config{
		InstanceID: "pv-test",
		Document:   doc,
		Tree:       tree,
		Container:  container,
		Bus:        bus,
		Canvases:   cv,
		Bitmaps:    bm,
		Options:    opts,
	})
	if err != nil {
		t.Fatalf("virtualizer: %v", err)
	}
	env := &testEnv{v: v, bus: bus, tree: tree, cv: cv, bm: bm}
	t.Cleanup(func() {
		env.v.Destroy()
		env.cv.Close()
		env.bm.Destroy()
		doc.Close()
	})
	return env
}

func staticDoc(t *testing.T, pages int, delay time.Duration) provider.Document {
	t.Helper()
	doc, err := provider.OpenStatic(provider.StaticConfig{
		Pages:       pages,
		PageWidth:   600,
		PageHeight:  800,
		RenderDelay: delay,
	}, "")
	if err != nil {
		t.Fatalf("static doc: %v", err)
	}
	return doc
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestInitialWindow(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 120, 0), nil)

	lo, hi := env.v.Window()
	if lo != 1 || hi != 4 {
		t.Errorf("initial window = [%d, %d], want [1, 4]", lo, hi)
	}
	if s := env.v.Snapshot(); s.CurrentPage != 1 {
		t.Errorf("current page = %d, want 1", s.CurrentPage)
	}
	if s := env.v.Snapshot(); s.Materialized > 2*3+1 {
		t.Errorf("materialized %d pages, want <= 7", s.Materialized)
	}
}

func TestCurrentPageRendersFirst(t *testing.T) {
	rec := &recordingDocument{Document: staticDoc(t, 50, 2*time.Millisecond)}
	env := newTestEnv(t, rec, nil)

	waitFor(t, "page 1 base render", func() bool {
		return env.v.SlotState(1) == models.StateFullyRendered && len(rec.renderOrder()) > 0
	})
	order := rec.renderOrder()
	if len(order) == 0 || order[0] != 1 {
		t.Errorf("render completion order = %v, want page 1 first", order)
	}
}

func TestScrollMovesWindowAndTearsDown(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 120, 0), nil)

	if err := env.v.GoToPage(50); err != nil {
		t.Fatalf("GoToPage: %v", err)
	}

	lo, hi := env.v.Window()
	if lo < 47 || hi > 53 {
		t.Errorf("window after jump = [%d, %d], want within [47, 53]", lo, hi)
	}
	if env.v.SlotState(1) != models.StateAbsent {
		t.Error("page 1 still materialized after scrolling away")
	}
	if s := env.v.Snapshot(); s.Materialized > 7 {
		t.Errorf("materialized %d pages, want <= 7", s.Materialized)
	}
}

func TestRapidScrollCancelsAndSettles(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 120, 3*time.Millisecond), nil)

	target := env.v.layoutTopForTest(100)
	for i := 1; i <= 20; i++ {
		env.v.SetScrollTop(target * float64(i) / 20)
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, "window settles at page 100", func() bool {
		lo, hi := env.v.Window()
		return lo >= 97 && hi <= 103 && lo > 0
	})
	waitFor(t, "queue drains", func() bool {
		return env.v.Snapshot().QueueDepth == 0 && env.v.SlotState(env.v.CurrentPage()) == models.StateFullyRendered
	})

	if s := env.v.Snapshot(); s.Materialized > 7 {
		t.Errorf("materialized %d pages after rapid scroll, want <= 7", s.Materialized)
	}
	if st := env.cv.Stats(); st.InUse > 7 {
		t.Errorf("canvas pool has %d in use after rapid scroll, want <= 7", st.InUse)
	}
}

func TestZoomApproachesTargetInSteps(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 10, 0), nil)

	var got []float64
	for i := 0; i < 3; i++ {
		got = append(got, env.v.SetZoom(2.0))
	}
	want := []float64{1.25, 1.5, 2.0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scale transitions = %v, want %v", got, want)
		}
	}
}

func TestZoomEmitsScaleChange(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 10, 0), nil)

	var scales []float64
	env.bus.On(events.TypeScaleChange, func(e events.Event) {
		scales = append(scales, e.(*events.ScaleChange).Scale)
	})

	env.v.ZoomIn()
	env.v.ZoomIn()
	env.v.ZoomOut()

	if len(scales) != 3 || scales[0] != 1.25 || scales[1] != 1.5 || scales[2] != 1.25 {
		t.Errorf("scaleChange events = %v", scales)
	}

	// A no-op zoom emits nothing.
	before := len(scales)
	env.v.SetZoom(env.v.Scale())
	if len(scales) != before {
		t.Error("no-op zoom emitted scaleChange")
	}
}

func TestZoomClampAndSnap(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 10, 0), nil)

	for i := 0; i < 40; i++ {
		env.v.SetZoom(99)
	}
	if got := env.v.Scale(); got != 5.0 {
		t.Errorf("scale after zooming far in = %g, want max 5.0", got)
	}
	for i := 0; i < 40; i++ {
		env.v.SetZoom(0)
	}
	if got := env.v.Scale(); got != 0.25 {
		t.Errorf("scale after zooming far out = %g, want min 0.25", got)
	}
}

func TestZoomAnchorsScrollPosition(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 120, 0), nil)

	if err := env.v.GoToPage(40); err != nil {
		t.Fatal(err)
	}
	page := env.v.CurrentPage()
	oldDelta := env.v.ScrollTop() - env.v.layoutTopForTest(page)
	oldScale := env.v.Scale()

	newScale := env.v.SetZoom(2.0)

	if env.v.CurrentPage() != page {
		t.Errorf("current page drifted from %d to %d across zoom", page, env.v.CurrentPage())
	}
	newDelta := env.v.ScrollTop() - env.v.layoutTopForTest(page)
	want := oldDelta * (newScale / oldScale)
	if diff := newDelta - want; diff > 1 || diff < -1 {
		t.Errorf("offset within page = %g, want %g (±1px)", newDelta, want)
	}
}

func TestHiResOnlyAboveScaleOne(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 10, 0), nil)

	waitFor(t, "base render at scale 1", func() bool {
		return env.v.SlotState(1) == models.StateFullyRendered
	})
	if els, _ := env.tree.Query(`div[data-layer="hires"]`); len(els) != 0 {
		t.Errorf("hi-res containers at scale 1: %d", len(els))
	}

	env.v.SetZoom(1.25)
	waitFor(t, "hi-res render at scale 1.25", func() bool {
		return env.v.SlotState(env.v.CurrentPage()) == models.StateFullyRendered
	})
	if els, _ := env.tree.Query(`div[data-layer="hires"]`); len(els) == 0 {
		t.Error("no hi-res containers above scale 1")
	}
}

func TestOnlyPageMode(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 30, 0), func(o *config.Options) {
		o.OnlyPage = 7
	})

	lo, hi := env.v.Window()
	if lo != 7 || hi != 7 {
		t.Errorf("mini-viewer window = [%d, %d], want [7, 7]", lo, hi)
	}
	waitFor(t, "page 7 render", func() bool {
		return env.v.SlotState(7) == models.StateFullyRendered
	})
}

func TestPageChangeEmittedOnStrictChange(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 120, 0), nil)

	var pages []int
	env.bus.On(events.TypePageChange, func(e events.Event) {
		pages = append(pages, e.(*events.PageChange).Page)
	})

	env.v.GoToPage(30)
	env.v.GoToPage(30) // no strict change
	env.v.GoToPage(31)

	if len(pages) != 2 || pages[0] != 30 || pages[1] != 31 {
		t.Errorf("pageChange sequence = %v, want [30 31]", pages)
	}
}

func TestMemoryPressureShrinksPools(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 120, 0), nil)
	waitFor(t, "initial renders", func() bool {
		return env.v.Snapshot().QueueDepth == 0
	})

	env.v.SetMemoryProbe(func() float64 { return 0.9 })
	env.v.EmergencyCancel()

	max := 16
	if st := env.cv.Stats(); st.Total > max*3/10+1 {
		t.Errorf("canvas pool kept %d entries under pressure", st.Total)
	}
	if s := env.v.Snapshot(); s.QueueDepth > 3 {
		t.Errorf("queue depth after emergency = %d", s.QueueDepth)
	}
}

func TestDomContract(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 20, 0), nil)

	el := env.tree.GetByID("pageContainer-pv-test-1")
	if el == nil {
		t.Fatal("page container id missing")
	}
	if got, _ := el.Attr("data-page-number"); got != "1" {
		t.Errorf("data-page-number = %q", got)
	}
	if env.tree.GetByID("viewer-pv-test") == nil {
		t.Error("viewer subtree root missing")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	doc := staticDoc(t, 10, 0)
	env := newTestEnv(t, doc, nil)

	env.v.Destroy()
	env.v.Destroy() // second call is a no-op

	if env.tree.GetByID("viewer-pv-test") != nil {
		t.Error("viewer subtree survived destroy")
	}
	if err := env.v.GoToPage(2); err == nil {
		t.Error("GoToPage succeeded on a destroyed virtualizer")
	}
}

func TestRotateRelayouts(t *testing.T) {
	env := newTestEnv(t, staticDoc(t, 10, 0), nil)

	var degs []int
	env.bus.On(events.TypeRotationChange, func(e events.Event) {
		degs = append(degs, e.(*events.RotationChange).Degrees)
	})

	env.v.Rotate(90)
	if env.v.Rotation() != 90 {
		t.Errorf("rotation = %d, want 90", env.v.Rotation())
	}
	if len(degs) != 1 || degs[0] != 90 {
		t.Errorf("rotationChange events = %v", degs)
	}

	// Rotated pages are landscape now.
	wrapper := env.tree.GetByID(fmt.Sprintf("pageContainer-%s-%d", "pv-test", 1))
	if wrapper == nil {
		t.Fatal("wrapper missing after rotate")
	}
	if wrapper.Style("width") != "800px" || wrapper.Style("height") != "600px" {
		t.Errorf("rotated wrapper = %s x %s, want 800px x 600px",
			wrapper.Style("width"), wrapper.Style("height"))
	}
}

// layoutTopForTest exposes page offsets to tests in this package.
func (v *Virtualizer) layoutTopForTest(page int) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.layout.top(page)
}
