package pool

import (
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"
)

const (
	// smallBitmapSide is the size under which fuzzy matching applies.
	smallBitmapSide = 128

	// smallBitmapSlack is the tolerated dimension delta for small bitmaps.
	smallBitmapSlack = 32

	// bitmapMaxAge is the default Cleanup age bound.
	bitmapMaxAge = 30 * time.Second
)

// Bitmap is a pooled snapshot of a rendered surface. Closed bitmaps must
// never be drawn.
type Bitmap struct {
	RGBA *image.RGBA
	W    int
	H    int

	backing   *image.RGBA
	capW      int
	capH      int
	inUse     bool
	lastUsed  time.Time
	createdAt time.Time
	closed    bool
}

// Closed reports whether the bitmap's pixels have been released.
func (b *Bitmap) Closed() bool { return b.closed }

// BitmapPool reuses snapshot buffers for the hi-res overlay pass.
type BitmapPool struct {
	mu      sync.Mutex
	entries []*Bitmap
	max     int
	done    chan struct{}
	closed  bool
}

// NewBitmapPool creates a pool bounded at max bitmaps.
func NewBitmapPool(max int) *BitmapPool {
	if max < 1 {
		max = 1
	}
	return &BitmapPool{max: max, done: make(chan struct{})}
}

// matches reports whether an entry's capacity can serve a w x h request:
// exact match, or within the small-size slack when every involved side is
// small.
func matches(capW, capH, w, h int) bool {
	if capW == w && capH == h {
		return true
	}
	small := capW <= smallBitmapSide && capH <= smallBitmapSide &&
		w <= smallBitmapSide && h <= smallBitmapSide
	if !small {
		return false
	}
	dw, dh := capW-w, capH-h
	return dw >= 0 && dh >= 0 && dw <= smallBitmapSlack && dh <= smallBitmapSlack
}

// Acquire snapshots src into a pooled bitmap of the given size. A zero
// size snapshots at the source dimensions. When the source and target
// sizes differ the pixels are rescaled.
func (p *BitmapPool) Acquire(src *image.RGBA, w, h int) *Bitmap {
	sb := src.Bounds()
	if w <= 0 {
		w = sb.Dx()
	}
	if h <= 0 {
		h = sb.Dy()
	}

	p.mu.Lock()
	var found *Bitmap
	for _, b := range p.entries {
		if !b.inUse && !b.closed && matches(b.capW, b.capH, w, h) {
			if found == nil || b.lastUsed.Before(found.lastUsed) {
				found = b
			}
		}
	}
	if found == nil {
		if len(p.entries) >= p.max {
			// Evict the least-recently-used free entry, closing its
			// pixels, and reuse the slot.
			oldest := -1
			for i, b := range p.entries {
				if b.inUse {
					continue
				}
				if oldest == -1 || b.lastUsed.Before(p.entries[oldest].lastUsed) {
					oldest = i
				}
			}
			if oldest >= 0 {
				p.entries[oldest].close()
				p.entries = append(p.entries[:oldest], p.entries[oldest+1:]...)
			}
		}
		found = &Bitmap{
			backing:   image.NewRGBA(image.Rect(0, 0, w, h)),
			capW:      w,
			capH:      h,
			createdAt: time.Now(),
		}
		if len(p.entries) < p.max {
			p.entries = append(p.entries, found)
		}
	}
	found.inUse = true
	found.lastUsed = time.Now()
	found.W, found.H = w, h
	p.mu.Unlock()

	dst := found.backing.SubImage(image.Rect(0, 0, w, h)).(*image.RGBA)
	if sb.Dx() == w && sb.Dy() == h {
		xdraw.Draw(dst, dst.Bounds(), src, sb.Min, xdraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)
	}
	found.RGBA = dst
	return found
}

// Release returns a bitmap to the pool.
func (p *BitmapPool) Release(b *Bitmap) {
	if b == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	b.inUse = false
	b.lastUsed = time.Now()
}

// Close releases a bitmap's pixels immediately, pooled or not.
func (p *BitmapPool) Close(b *Bitmap) {
	if b == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.entries {
		if e == b {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			break
		}
	}
	b.close()
}

func (b *Bitmap) close() {
	b.closed = true
	b.RGBA = nil
	b.backing = nil
}

// Cleanup closes free bitmaps older than maxAge. Zero means the default
// 30 s bound.
func (p *BitmapPool) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = bitmapMaxAge
	}
	cutoff := time.Now().Add(-maxAge)
	p.mu.Lock()
	defer p.mu.Unlock()
	closed := 0
	kept := p.entries[:0]
	for _, b := range p.entries {
		if !b.inUse && b.createdAt.Before(cutoff) {
			b.close()
			closed++
			continue
		}
		kept = append(kept, b)
	}
	p.entries = kept
	if closed > 0 {
		slog.Debug("bitmap pool cleanup", "closed", closed, "remaining", len(p.entries))
	}
	return closed
}

// Shrink evicts LRU free bitmaps until at most target remain.
func (p *BitmapPool) Shrink(target int) int {
	if target < 0 {
		target = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	evicted := 0
	for len(p.entries) > target {
		oldest := -1
		for i, b := range p.entries {
			if b.inUse {
				continue
			}
			if oldest == -1 || b.lastUsed.Before(p.entries[oldest].lastUsed) {
				oldest = i
			}
		}
		if oldest == -1 {
			break
		}
		p.entries[oldest].close()
		p.entries = append(p.entries[:oldest], p.entries[oldest+1:]...)
		evicted++
	}
	return evicted
}

// HandleMemoryPressure shrinks the pool aggressively.
func (p *BitmapPool) HandleMemoryPressure() {
	p.Shrink(int(math.Ceil(float64(p.max) * pressureKeepRatio)))
}

// Stats returns current pool counters.
func (p *BitmapPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{Total: len(p.entries)}
	var bytes int
	for _, b := range p.entries {
		if b.inUse {
			s.InUse++
		}
		bytes += b.capW * b.capH * 4
	}
	s.Free = s.Total - s.InUse
	s.EstMB = float64(bytes) / (1024 * 1024)
	return s
}

// Destroy closes every bitmap and empties the pool.
func (p *BitmapPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
	for _, b := range p.entries {
		b.close()
	}
	p.entries = nil
}
