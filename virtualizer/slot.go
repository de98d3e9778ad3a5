package virtualizer

import (
	"github.com/use-agent/pdfview/dom"
	"github.com/use-agent/pdfview/models"
	"github.com/use-agent/pdfview/pool"
	"github.com/use-agent/pdfview/provider"
)

// slot is the materialized record for one page currently (or recently) in
// the window. Slots borrow pooled surfaces; they never own them.
type slot struct {
	pageNumber int
	page       provider.Page

	wrapper        *dom.Element
	wrapperPooled  bool
	baseCanvasEl   *dom.Element
	hiResContainer *dom.Element

	baseCanvas *pool.Canvas
	baseTask   *provider.RenderTask

	hiResCanvas *pool.Canvas
	hiResBitmap *pool.Bitmap
	hiResTask   *provider.RenderTask

	textOverlay  *dom.Element
	annotOverlay *dom.Element
	annotDetach  func()

	visible       bool
	fullyRendered bool
	renderedScale float64
	renderedRot   int
	renderFailed  bool
	transitioning bool

	state models.SlotState
}

// distance returns |pageNumber - current|.
func (s *slot) distance(current int) int {
	d := s.pageNumber - current
	if d < 0 {
		d = -d
	}
	return d
}

// wrapperPool is a fixed ring of reusable page container elements. When the
// ring is exhausted a transient element is created outside the pool and
// simply detached on release.
type wrapperPool struct {
	tree    *dom.Tree
	entries []*wrapperEntry
	max     int
}

type wrapperEntry struct {
	el    *dom.Element
	inUse bool
}

func newWrapperPool(tree *dom.Tree, max int) *wrapperPool {
	if max < 1 {
		max = 1
	}
	return &wrapperPool{tree: tree, max: max}
}

// get returns a pooled element when one is free or the ring has room;
// otherwise it creates a transient element. The second return value
// reports whether the element belongs to the ring.
func (p *wrapperPool) get() (*dom.Element, bool) {
	for _, e := range p.entries {
		if !e.inUse {
			e.inUse = true
			return e.el, true
		}
	}
	if len(p.entries) < p.max {
		e := &wrapperEntry{el: p.tree.CreateElement("div"), inUse: true}
		p.entries = append(p.entries, e)
		return e.el, true
	}
	return p.tree.CreateElement("div"), false
}

// release clears the element and, for ring members, marks it reusable.
// Transient elements are just detached.
func (p *wrapperPool) release(el *dom.Element, pooled bool) {
	el.Clear()
	el.ClearAttrs()
	el.Remove()
	if !pooled {
		return
	}
	for _, e := range p.entries {
		if e.el.Same(el) {
			e.inUse = false
			return
		}
	}
}

// size returns the current ring size.
func (p *wrapperPool) size() int { return len(p.entries) }
