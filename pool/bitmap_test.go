package pool

import (
	"image"
	"image/color"
	"testing"
	"time"
)

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestBitmapMatches(t *testing.T) {
	tests := []struct {
		capW, capH, w, h int
		want             bool
	}{
		{256, 256, 256, 256, true},  // exact, large
		{256, 256, 240, 240, false}, // large requires exact
		{100, 100, 96, 96, true},    // small within slack
		{100, 100, 60, 60, false},   // small beyond slack
		{100, 100, 110, 110, false}, // capacity cannot cover request
	}
	for _, tt := range tests {
		if got := matches(tt.capW, tt.capH, tt.w, tt.h); got != tt.want {
			t.Errorf("matches(%d,%d,%d,%d) = %v, want %v",
				tt.capW, tt.capH, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestBitmapSnapshotCopies(t *testing.T) {
	p := NewBitmapPool(4)
	defer p.Destroy()

	src := solidRGBA(50, 50, color.RGBA{R: 0xff, A: 0xff})
	b := p.Acquire(src, 0, 0)
	if b.W != 50 || b.H != 50 {
		t.Fatalf("snapshot size %dx%d", b.W, b.H)
	}

	// Mutating the source must not affect the snapshot.
	src.SetRGBA(10, 10, color.RGBA{G: 0xff, A: 0xff})
	got := b.RGBA.RGBAAt(10, 10)
	if got.R != 0xff || got.G != 0 {
		t.Errorf("snapshot shares pixels with source: %+v", got)
	}
}

func TestBitmapScaledSnapshot(t *testing.T) {
	p := NewBitmapPool(4)
	defer p.Destroy()

	src := solidRGBA(200, 200, color.RGBA{B: 0xff, A: 0xff})
	b := p.Acquire(src, 400, 400)
	if b.W != 400 || b.H != 400 {
		t.Fatalf("scaled snapshot size %dx%d", b.W, b.H)
	}
	if got := b.RGBA.RGBAAt(200, 200); got.B != 0xff {
		t.Errorf("scaled pixel = %+v", got)
	}
}

func TestBitmapReuseAndEvict(t *testing.T) {
	p := NewBitmapPool(2)
	defer p.Destroy()

	src := solidRGBA(100, 100, color.RGBA{A: 0xff})
	a := p.Acquire(src, 100, 100)
	p.Release(a)

	// Small-size slack lets a 96x96 request reuse the 100x100 buffer.
	b := p.Acquire(src, 96, 96)
	if b != a {
		t.Error("slack-compatible bitmap not reused")
	}
	p.Release(b)

	// Two large distinct sizes fill the pool; a third evicts the LRU.
	big1 := p.Acquire(solidRGBA(300, 300, color.RGBA{A: 0xff}), 300, 300)
	big2 := p.Acquire(solidRGBA(400, 400, color.RGBA{A: 0xff}), 400, 400)
	p.Release(big1)
	p.Release(big2)

	p.Acquire(solidRGBA(500, 500, color.RGBA{A: 0xff}), 500, 500)
	if !big1.Closed() {
		t.Error("evicted bitmap was not closed")
	}
}

func TestBitmapCleanupByAge(t *testing.T) {
	p := NewBitmapPool(4)
	defer p.Destroy()

	src := solidRGBA(64, 64, color.RGBA{A: 0xff})
	b := p.Acquire(src, 64, 64)
	p.Release(b)

	// Entries younger than maxAge survive.
	if n := p.Cleanup(time.Hour); n != 0 {
		t.Errorf("cleanup closed %d young bitmaps", n)
	}

	b.createdAt = time.Now().Add(-time.Minute)
	if n := p.Cleanup(time.Second); n != 1 {
		t.Errorf("cleanup closed %d, want 1", n)
	}
	if !b.Closed() {
		t.Error("cleaned bitmap not closed")
	}
}

func TestBitmapDestroyClosesAll(t *testing.T) {
	p := NewBitmapPool(4)
	src := solidRGBA(64, 64, color.RGBA{A: 0xff})
	a := p.Acquire(src, 64, 64)
	b := p.Acquire(src, 64, 64)

	p.Destroy()
	if !a.Closed() || !b.Closed() {
		t.Error("destroy left bitmaps open")
	}
	if s := p.Stats(); s.Total != 0 {
		t.Errorf("stats after destroy = %+v", s)
	}
}
