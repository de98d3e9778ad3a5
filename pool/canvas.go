// Package pool provides the per-instance raster pools: reusable canvas
// surfaces bucketed by power-of-two sizes and reusable bitmap snapshots.
// Pools are owned by exactly one viewer instance and never shared.
package pool

import (
	"image"
	"image/color"
	"log/slog"
	"math"
	"sync"
	"time"

	"git.sr.ht/~sbinet/gg"
)

const (
	// minBucket is the smallest bucketed dimension.
	minBucket = 64

	// cleanupInterval drives the fallback idle shrink.
	cleanupInterval = 30 * time.Second

	// idleShrinkRatio triggers the periodic shrink when at least this
	// fraction of the pool is unused.
	idleShrinkRatio = 0.7

	// pressureKeepRatio is the fraction of max retained under memory
	// pressure.
	pressureKeepRatio = 0.3
)

// Canvas is one pooled raster surface. The backing store is allocated at
// the bucketed size; Image is the exact-size view the current borrower
// draws through. Borrowers draw via GC, which is reset to a known state on
// every acquire.
type Canvas struct {
	backing *image.RGBA
	Image   *image.RGBA
	GC      *gg.Context

	bucketW int
	bucketH int
	physW   int
	physH   int
	cssW    float64
	cssH    float64

	inUse    bool
	lastUsed time.Time

	// adHoc canvases are created when the pool is full; they are handed
	// to the garbage collector on release instead of returning to the
	// pool.
	adHoc bool
}

// PhysicalSize returns the exact raster dimensions in device pixels.
func (c *Canvas) PhysicalSize() (w, h int) { return c.physW, c.physH }

// CSSSize returns the CSS dimensions the canvas was acquired for.
func (c *Canvas) CSSSize() (w, h float64) { return c.cssW, c.cssH }

// Stats is a point-in-time pool summary.
type Stats struct {
	Total int
	InUse int
	Free  int
	EstMB float64
}

// CanvasPool amortizes canvas allocation across page renders. Matching is
// by bucketed capacity: any free canvas whose buckets cover the request is
// resized to the exact physical dimensions and handed out.
type CanvasPool struct {
	mu      sync.Mutex
	entries []*Canvas
	max     int
	dpr     float64
	done    chan struct{}
	closed  bool
}

// NewCanvasPool creates a pool bounded at max canvases and starts the
// periodic idle shrink.
func NewCanvasPool(max int, dpr float64) *CanvasPool {
	if max < 1 {
		max = 1
	}
	if dpr <= 0 {
		dpr = 1.0
	}
	p := &CanvasPool{max: max, dpr: dpr, done: make(chan struct{})}
	go p.cleanupLoop()
	return p
}

// DPR returns the device pixel ratio applied to acquired contexts.
func (p *CanvasPool) DPR() float64 { return p.dpr }

// bucket rounds n up to the next power of two, at least minBucket.
func bucket(n int) int {
	b := minBucket
	for b < n {
		b <<= 1
	}
	return b
}

// Acquire returns a canvas whose physical size is ceil(css * dpr). The
// drawing context comes back in a clean state: identity transform with the
// dpr scale applied, default styles, empty path, transparent pixels.
func (p *CanvasPool) Acquire(cssW, cssH float64) *Canvas {
	reqW := int(math.Ceil(cssW * p.dpr))
	reqH := int(math.Ceil(cssH * p.dpr))
	if reqW < 1 {
		reqW = 1
	}
	if reqH < 1 {
		reqH = 1
	}

	p.mu.Lock()
	var best *Canvas
	for _, c := range p.entries {
		if c.inUse || c.bucketW < reqW || c.bucketH < reqH {
			continue
		}
		if best == nil ||
			c.bucketW*c.bucketH < best.bucketW*best.bucketH ||
			(c.bucketW*c.bucketH == best.bucketW*best.bucketH && c.lastUsed.Before(best.lastUsed)) {
			best = c
		}
	}
	if best != nil {
		best.inUse = true
		best.lastUsed = time.Now()
		p.mu.Unlock()
		p.fit(best, reqW, reqH, cssW, cssH)
		return best
	}

	c := &Canvas{
		bucketW:  bucket(reqW),
		bucketH:  bucket(reqH),
		inUse:    true,
		lastUsed: time.Now(),
	}
	c.backing = image.NewRGBA(image.Rect(0, 0, c.bucketW, c.bucketH))
	if len(p.entries) < p.max {
		p.entries = append(p.entries, c)
	} else {
		c.adHoc = true
		slog.Debug("canvas pool full, creating ad-hoc canvas", "w", reqW, "h", reqH)
	}
	p.mu.Unlock()
	p.fit(c, reqW, reqH, cssW, cssH)
	return c
}

// fit points the canvas at an exact-size view of its backing store and
// resets the drawing context.
func (p *CanvasPool) fit(c *Canvas, reqW, reqH int, cssW, cssH float64) {
	c.physW, c.physH = reqW, reqH
	c.cssW, c.cssH = cssW, cssH
	c.Image = c.backing.SubImage(image.Rect(0, 0, reqW, reqH)).(*image.RGBA)
	c.GC = gg.NewContextForRGBA(c.Image)
	p.resetContext(c)
}

// resetContext restores the context to the state every borrower expects.
func (p *CanvasPool) resetContext(c *Canvas) {
	gc := c.GC
	gc.Identity()
	gc.ResetClip()
	gc.ClearPath()
	gc.SetRGBA(0, 0, 0, 0)
	gc.Clear() // wipe pixels left by the previous borrower
	gc.Scale(p.dpr, p.dpr)
	gc.SetColor(color.Black)
	gc.SetLineWidth(1)
	gc.SetLineCap(gg.LineCapButt)
	gc.SetLineJoin(gg.LineJoinBevel)
	gc.SetDash()
}

// Release returns a canvas to the pool. Ad-hoc canvases are dropped.
func (p *CanvasPool) Release(c *Canvas) {
	if c == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.adHoc {
		return
	}
	c.inUse = false
	c.lastUsed = time.Now()
}

// Shrink evicts least-recently-used free canvases until at most target
// entries remain. It returns the number evicted.
func (p *CanvasPool) Shrink(target int) int {
	if target < 0 {
		target = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shrinkLocked(target)
}

func (p *CanvasPool) shrinkLocked(target int) int {
	evicted := 0
	for len(p.entries) > target {
		oldest := -1
		for i, c := range p.entries {
			if c.inUse {
				continue
			}
			if oldest == -1 || c.lastUsed.Before(p.entries[oldest].lastUsed) {
				oldest = i
			}
		}
		if oldest == -1 {
			break
		}
		p.entries = append(p.entries[:oldest], p.entries[oldest+1:]...)
		evicted++
	}
	if evicted > 0 {
		slog.Debug("canvas pool shrank", "evicted", evicted, "remaining", len(p.entries))
	}
	return evicted
}

// HandleMemoryPressure shrinks the pool aggressively.
func (p *CanvasPool) HandleMemoryPressure() {
	p.Shrink(int(math.Ceil(float64(p.max) * pressureKeepRatio)))
}

// Stats returns current pool counters.
func (p *CanvasPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{Total: len(p.entries)}
	var bytes int
	for _, c := range p.entries {
		if c.inUse {
			s.InUse++
		}
		bytes += c.bucketW * c.bucketH * 4
	}
	s.Free = s.Total - s.InUse
	s.EstMB = float64(bytes) / (1024 * 1024)
	return s
}

// Close stops the cleanup loop and drops every entry.
func (p *CanvasPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
	p.entries = nil
}

// cleanupLoop is the fallback for runtimes without memory-warning signals:
// when most of the pool sits idle, give half of it back.
func (p *CanvasPool) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			s := p.Stats()
			if s.Total > 0 && float64(s.Free)/float64(s.Total) >= idleShrinkRatio {
				p.Shrink(s.Total / 2)
			}
		}
	}
}
