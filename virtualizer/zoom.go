package virtualizer

import (
	"math"

	"github.com/use-agent/pdfview/events"
	"github.com/use-agent/pdfview/models"
)

// zoomFactor bounds how far a single SetZoom call may move the scale
// multiplicatively; large targets are approached over successive calls so
// every intermediate step gets its instant CSS reflow.
const zoomFactor = 1.25

// fitWidthSample caps how many pages FitWidth measures on large documents.
const fitWidthSample = 25

// ZoomIn raises the scale by one zoom step.
func (v *Virtualizer) ZoomIn() float64 {
	v.mu.Lock()
	target := v.scale + v.cfg.Options.ZoomStep
	v.mu.Unlock()
	return v.applyScale(v.snapClamp(target))
}

// ZoomOut lowers the scale by one zoom step.
func (v *Virtualizer) ZoomOut() float64 {
	v.mu.Lock()
	target := v.scale - v.cfg.Options.ZoomStep
	v.mu.Unlock()
	return v.applyScale(v.snapClamp(target))
}

// SetZoom moves the scale toward target, at most one zoom factor per call,
// snapped to the zoom step and clamped to the scale range. It returns the
// applied scale.
func (v *Virtualizer) SetZoom(target float64) float64 {
	target = v.clampScale(target)
	v.mu.Lock()
	cur := v.scale
	v.mu.Unlock()

	next := target
	if target > cur {
		next = math.Min(target, cur*zoomFactor)
	} else if target < cur {
		next = math.Max(target, cur/zoomFactor)
	}
	snapped := v.snapClamp(next)
	// Snapping must not stall the approach short of the target.
	if snapped == cur && target != cur {
		step := v.cfg.Options.ZoomStep
		if target > cur {
			snapped = v.clampScale(cur + step)
		} else {
			snapped = v.clampScale(cur - step)
		}
	}
	return v.applyScale(snapped)
}

// FitWidth scales so the widest page fills the viewport width. Documents
// beyond the sample bound are measured over their first pages only, with
// the result cached per rotation.
func (v *Virtualizer) FitWidth() float64 {
	v.mu.Lock()
	maxW := v.fitWidthBaseLocked()
	avail := v.cfg.Options.ViewportWidth - 2*v.gap
	v.mu.Unlock()
	if maxW <= 0 || avail <= 0 {
		return v.Scale()
	}
	return v.applyScale(v.clampScale(avail / maxW))
}

// FitPage scales so the current page fits the viewport entirely.
func (v *Virtualizer) FitPage() float64 {
	v.mu.Lock()
	base := v.baseSizes[v.currentPage-1]
	vp := models.NewViewport(base.w, base.h, 1.0, v.rotation)
	availW := v.cfg.Options.ViewportWidth - 2*v.gap
	availH := v.cfg.Options.ViewportHeight - 2*v.gap
	v.mu.Unlock()
	if vp.Width <= 0 || vp.Height <= 0 {
		return v.Scale()
	}
	return v.applyScale(v.clampScale(math.Min(availW/vp.Width, availH/vp.Height)))
}

// Rotate turns the document to the given absolute rotation (degrees) and
// re-renders the window.
func (v *Virtualizer) Rotate(deg int) {
	if v.destroyed.Load() {
		return
	}
	v.zoomMu.Lock()
	v.scaleChanging.Store(true)
	defer func() {
		v.scaleChanging.Store(false)
		v.zoomMu.Unlock()
	}()

	v.mu.Lock()
	vp := models.NewViewport(1, 1, 1, deg)
	if vp.Rotation == v.rotation {
		v.mu.Unlock()
		return
	}
	v.rotation = vp.Rotation
	deg = vp.Rotation
	v.relayoutLocked(v.currentPage, 0)
	v.mu.Unlock()

	v.updateWindow()
	v.bus.Emit(&events.RotationChange{Degrees: deg})
}

func (v *Virtualizer) fitWidthBaseLocked() float64 {
	if w, ok := v.fitWidthCache[v.rotation]; ok {
		return w
	}
	limit := len(v.baseSizes)
	if limit > fitWidthSample {
		limit = fitWidthSample
	}
	var maxW float64
	for _, s := range v.baseSizes[:limit] {
		vp := models.NewViewport(s.w, s.h, 1.0, v.rotation)
		if vp.Width > maxW {
			maxW = vp.Width
		}
	}
	v.fitWidthCache[v.rotation] = maxW
	return maxW
}

func (v *Virtualizer) clampScale(s float64) float64 {
	return clampF(s, v.cfg.Options.MinScale, v.cfg.Options.MaxScale)
}

func (v *Virtualizer) snapClamp(s float64) float64 {
	step := v.cfg.Options.ZoomStep
	return v.clampScale(math.Round(s/step) * step)
}

// applyScale runs the eight-step scale transition. It returns the scale in
// effect afterwards.
func (v *Virtualizer) applyScale(newScale float64) float64 {
	if v.destroyed.Load() {
		return newScale
	}

	// Zoom operations serialize; scroll-driven window updates are
	// suppressed while the flag is set.
	v.zoomMu.Lock()
	v.scaleChanging.Store(true)
	defer func() {
		v.scaleChanging.Store(false)
		v.zoomMu.Unlock()
	}()

	v.mu.Lock()
	oldScale := v.scale
	if newScale == oldScale {
		v.mu.Unlock()
		return oldScale
	}

	// 1. Anchor: current page and the offset into it, under the old scale.
	anchor := v.currentPage
	delta := v.scrollTop - v.layout.top(anchor)

	v.scale = newScale
	v.relayoutLocked(anchor, delta*(newScale/oldScale))
	v.mu.Unlock()

	// 7. Requeue visible pages; the queue repaints them by distance.
	v.updateWindow()

	// 8. Announce the transition.
	v.bus.Emit(&events.ScaleChange{Scale: newScale})
	return newScale
}

// relayoutLocked performs steps 2-6 of the scale transition for the
// current scale/rotation: kill stale work, recompute the position map,
// resize everything visible immediately, drop stale hi-res imagery, and
// restore the scroll anchor.
func (v *Virtualizer) relayoutLocked(anchor int, newDelta float64) {
	// 2. Stale work dies before anything new is queued.
	for _, s := range v.slots {
		v.cancelBaseLocked(s)
		v.clearHiResLocked(s)
	}
	v.queue.clear()

	// 3. Position map under the new geometry.
	v.layout = computeLayout(v.baseSizes, v.scale, v.rotation, v.gap)
	v.resizeScaffold(v.viewerEl)

	// 4./5. Instant CSS reflow of every visible slot; hi-res containers
	// were already cleared above.
	for page, s := range v.slots {
		v.styleWrapperLocked(s.wrapper, page)
		if s.baseCanvasEl != nil {
			s.baseCanvasEl.SetStyles(map[string]string{
				"width":  px(v.layout.widths[page]),
				"height": px(v.layout.heights[page]),
			})
		}
		if s.textOverlay != nil {
			s.textOverlay.SetStyles(map[string]string{
				"width":  px(v.layout.widths[page]),
				"height": px(v.layout.heights[page]),
			})
		}
		if s.annotOverlay != nil {
			s.annotOverlay.SetStyles(map[string]string{
				"width":  px(v.layout.widths[page]),
				"height": px(v.layout.heights[page]),
			})
		}
	}

	// 6. Keep the anchor page under the viewport midpoint.
	maxScroll := v.layout.totalHeight - v.cfg.Options.ViewportHeight
	if maxScroll < 0 {
		maxScroll = 0
	}
	v.scrollTop = clampF(v.layout.top(anchor)+newDelta, 0, maxScroll)
}
