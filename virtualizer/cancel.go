package virtualizer

import (
	"image"
	"image/draw"
	"runtime"
	"time"
)

// cancelDecision says which of the three independent actions apply to a
// slot during a cancellation pass.
type cancelDecision struct {
	dropJob     bool
	cancelBase  bool
	cancelHiRes bool
}

func (d cancelDecision) any() bool {
	return d.dropJob || d.cancelBase || d.cancelHiRes
}

// decideCancel classifies one slot. The current page is never cancelled.
// When rapid scrolling and memory pressure hold at once, the stricter
// hi-res threshold (distance > 1) wins.
func decideCancel(distance, buffer int, visible, rapid, pressure bool) cancelDecision {
	if distance == 0 && visible {
		return cancelDecision{}
	}

	var d cancelDecision
	if !visible || distance > hardCancelLimit {
		return cancelDecision{dropJob: true, cancelBase: true, cancelHiRes: true}
	}
	if rapid && distance > buffer {
		d.dropJob = true
		d.cancelBase = true
		d.cancelHiRes = true
	}
	if pressure {
		if distance > 1 {
			d.dropJob = true
			d.cancelHiRes = true
		}
		if distance > buffer {
			d.cancelBase = true
		}
	}
	return d
}

// CancellationPass classifies every slot and kills work the current scroll
// state has made stale. It runs on every scroll event, before each queue
// dequeue, periodically, and under memory pressure.
func (v *Virtualizer) CancellationPass() {
	if v.destroyed.Load() {
		return
	}
	v.mu.Lock()
	rapid := v.rapidScrollingLocked()
	pressure := v.memoryPressureLocked()
	// Classify against the live scroll position, not the throttled
	// currentPage, so work dies on the same tick the scroll happened.
	cur := v.layout.pageAt(v.scrollTop + v.cfg.Options.ViewportHeight/2)
	for _, s := range v.slots {
		d := decideCancel(s.distance(cur), v.buf, s.visible, rapid, pressure)
		if !d.any() {
			continue
		}
		if d.dropJob {
			v.queue.remove(s.pageNumber)
		}
		if d.cancelBase {
			v.cancelBaseLocked(s)
		}
		if d.cancelHiRes {
			v.clearHiResLocked(s)
		}
	}
	v.mu.Unlock()

	if pressure {
		v.cfg.Canvases.HandleMemoryPressure()
		v.cfg.Bitmaps.HandleMemoryPressure()
	}
}

// EmergencyCancel is the pressure-triggered hard pass: every slot beyond
// the immediate neighbors loses its work, only priority 0/1 jobs survive,
// and the pools shrink hard.
func (v *Virtualizer) EmergencyCancel() {
	if v.destroyed.Load() {
		return
	}
	v.mu.Lock()
	cur := v.currentPage
	for _, s := range v.slots {
		if s.distance(cur) <= 1 {
			continue
		}
		v.cancelBaseLocked(s)
		v.clearHiResLocked(s)
	}
	v.queue.retain(1)
	v.mu.Unlock()

	v.cfg.Canvases.HandleMemoryPressure()
	v.cfg.Bitmaps.HandleMemoryPressure()
}

// cancelBaseLocked kills an in-flight base task. An already-rendered base
// surface is left alone; surfaces are reclaimed on slot teardown.
func (v *Virtualizer) cancelBaseLocked(s *slot) {
	if s.baseTask != nil {
		// The queue goroutine observes the rejection, swallows the
		// sentinel, and releases the canvas it acquired.
		s.baseTask.Cancel()
	}
}

// clearHiResLocked cancels any hi-res task and reclaims the rendered
// hi-res surfaces: pooled canvas released, bitmap closed, DOM cleared.
func (v *Virtualizer) clearHiResLocked(s *slot) {
	if s.hiResTask != nil {
		s.hiResTask.Cancel()
	}
	if s.hiResCanvas != nil {
		v.cfg.Canvases.Release(s.hiResCanvas)
		s.hiResCanvas = nil
	}
	if s.hiResBitmap != nil {
		v.cfg.Bitmaps.Close(s.hiResBitmap)
		s.hiResBitmap = nil
	}
	if s.hiResContainer != nil {
		s.hiResContainer.Remove()
		s.hiResContainer = nil
	}
}

func (v *Virtualizer) rapidScrollingLocked() bool {
	return time.Now().Before(v.rapidUntil)
}

// memoryPressure samples the heap and the canvas pool.
func (v *Virtualizer) memoryPressure() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.memoryPressureLocked()
}

func (v *Virtualizer) memoryPressureLocked() bool {
	var ratio float64
	if v.memProbe != nil {
		ratio = v.memProbe()
	} else {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		if m.HeapSys > 0 {
			ratio = float64(m.HeapInuse) / float64(m.HeapSys)
		}
	}
	if ratio > heapPressureRatio {
		return true
	}
	return v.cfg.Canvases.Stats().EstMB > poolPressureMB
}

// toRGBA converts a raster to RGBA without copying when possible.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}
