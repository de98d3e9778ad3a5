package pool

import (
	"math"
	"testing"
)

func TestBucket(t *testing.T) {
	tests := []struct{ in, want int }{
		{1, 64},
		{64, 64},
		{65, 128},
		{300, 512},
		{512, 512},
		{513, 1024},
	}
	for _, tt := range tests {
		if got := bucket(tt.in); got != tt.want {
			t.Errorf("bucket(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAcquireReuse(t *testing.T) {
	p := NewCanvasPool(4, 1.0)
	defer p.Close()

	c1 := p.Acquire(300, 400)
	if w, h := c1.PhysicalSize(); w != 300 || h != 400 {
		t.Fatalf("physical size %dx%d, want 300x400", w, h)
	}
	p.Release(c1)

	// A smaller request fits the same bucketed backing store.
	c2 := p.Acquire(280, 350)
	if c2 != c1 {
		t.Error("free compatible canvas was not reused")
	}
	if w, h := c2.PhysicalSize(); w != 280 || h != 350 {
		t.Errorf("physical size %dx%d, want exact 280x350", w, h)
	}
	if s := p.Stats(); s.Total != 1 {
		t.Errorf("pool grew to %d entries on a reusable request", s.Total)
	}
}

func TestAcquireBeyondMaxIsAdHoc(t *testing.T) {
	p := NewCanvasPool(2, 1.0)
	defer p.Close()

	a := p.Acquire(100, 100)
	b := p.Acquire(100, 100)
	c := p.Acquire(100, 100) // over capacity

	if s := p.Stats(); s.Total != 2 || s.InUse != 2 {
		t.Errorf("stats = %+v, want 2 pooled in use", s)
	}

	p.Release(a)
	p.Release(b)
	p.Release(c) // ad-hoc: dropped, not pooled
	if s := p.Stats(); s.Total != 2 || s.Free != 2 {
		t.Errorf("stats after release = %+v", s)
	}
}

// Scroll-through reuse: many sequential acquire/release cycles never grow
// the pool past its bound.
func TestScrollThroughPoolBound(t *testing.T) {
	const maxPool = 4
	p := NewCanvasPool(maxPool, 1.0)
	defer p.Close()

	for page := 0; page < 50; page++ {
		c := p.Acquire(612, 792)
		p.Release(c)
	}
	if s := p.Stats(); s.Total > maxPool {
		t.Errorf("pool grew to %d canvases over %d pages", s.Total, 50)
	}
	// All cycles after the first should have reused one backing store.
	if s := p.Stats(); s.Total != 1 {
		t.Errorf("sequential same-size traffic used %d canvases, want 1", s.Total)
	}
}

func TestContextHygiene(t *testing.T) {
	p := NewCanvasPool(2, 2.0)
	defer p.Close()

	// Dirty a canvas thoroughly.
	c := p.Acquire(100, 100)
	c.GC.Scale(3, 3)
	c.GC.SetRGBA(1, 0, 0, 1)
	c.GC.DrawRectangle(0, 0, 50, 50)
	c.GC.Fill()
	c.GC.SetLineWidth(12)
	p.Release(c)

	c2 := p.Acquire(100, 100)
	if c2 != c {
		t.Fatal("expected same canvas back")
	}

	// Transform is identity followed by the dpr scale.
	x, y := c2.GC.TransformPoint(1, 1)
	if math.Abs(x-2.0) > 1e-9 || math.Abs(y-2.0) > 1e-9 {
		t.Errorf("TransformPoint(1,1) = (%g, %g), want (2, 2)", x, y)
	}

	// Previous pixels are cleared.
	r, g, b, a := c2.Image.At(10, 10).RGBA()
	if r != 0 || g != 0 || b != 0 || a != 0 {
		t.Errorf("pixel (10,10) = %d,%d,%d,%d, want transparent", r, g, b, a)
	}
}

func TestShrinkEvictsLRUOnly(t *testing.T) {
	p := NewCanvasPool(4, 1.0)
	defer p.Close()

	a := p.Acquire(64, 64)
	b := p.Acquire(64, 64)
	c := p.Acquire(64, 64)
	p.Release(a)
	p.Release(b)
	_ = c // still in use

	if n := p.Shrink(1); n != 2 {
		t.Errorf("evicted %d, want 2", n)
	}
	s := p.Stats()
	if s.Total != 1 || s.InUse != 1 {
		t.Errorf("stats after shrink = %+v; the in-use canvas must survive", s)
	}
}

func TestHandleMemoryPressure(t *testing.T) {
	p := NewCanvasPool(10, 1.0)
	defer p.Close()

	var cs []*Canvas
	for i := 0; i < 10; i++ {
		cs = append(cs, p.Acquire(64, 64))
	}
	for _, c := range cs {
		p.Release(c)
	}

	p.HandleMemoryPressure()
	if s := p.Stats(); s.Total > 3 {
		t.Errorf("pool kept %d canvases under pressure, want <= 3", s.Total)
	}
}

func TestStatsEstimateUsesBuckets(t *testing.T) {
	p := NewCanvasPool(2, 1.0)
	defer p.Close()

	p.Acquire(100, 100) // bucketed to 128x128
	s := p.Stats()
	want := float64(128*128*4) / (1024 * 1024)
	if math.Abs(s.EstMB-want) > 1e-9 {
		t.Errorf("EstMB = %g, want %g", s.EstMB, want)
	}
}
