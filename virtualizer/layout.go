package virtualizer

import (
	"sort"

	"github.com/use-agent/pdfview/models"
)

// pageSize is a page's base dimensions at scale 1, rotation 0.
type pageSize struct {
	w, h float64
}

// layoutMap is the page position map: per-page top offsets and dimensions
// at one (scale, rotation) pair, plus the container geometry they imply.
// Index 0 is unused; pages are 1-based.
type layoutMap struct {
	offsets []float64
	widths  []float64
	heights []float64

	totalHeight float64
	maxWidth    float64
}

// computeLayout walks pages in order accumulating viewport height plus the
// inter-page gap.
func computeLayout(sizes []pageSize, scale float64, rotation int, gap float64) layoutMap {
	n := len(sizes)
	l := layoutMap{
		offsets: make([]float64, n+1),
		widths:  make([]float64, n+1),
		heights: make([]float64, n+1),
	}
	y := gap
	for i, s := range sizes {
		vp := models.NewViewport(s.w, s.h, scale, rotation)
		page := i + 1
		l.offsets[page] = y
		l.widths[page] = vp.Width
		l.heights[page] = vp.Height
		if vp.Width > l.maxWidth {
			l.maxWidth = vp.Width
		}
		y += vp.Height + gap
	}
	l.totalHeight = y
	return l
}

// pageCount returns the number of pages in the map.
func (l layoutMap) pageCount() int { return len(l.offsets) - 1 }

// containerWidth is the scroll container width: widest page plus a gap on
// each side.
func (l layoutMap) containerWidth(gap float64) float64 {
	return l.maxWidth + 2*gap
}

// pageAt returns the page whose vertical range contains the given document
// offset. Offsets above the first page map to page 1, below the last to
// page N; the gap under a page belongs to that page, so ties resolve to the
// lower page number.
func (l layoutMap) pageAt(offset float64) int {
	n := l.pageCount()
	if n == 0 {
		return 0
	}
	if offset < l.offsets[1] {
		return 1
	}
	// First page whose top lies strictly beyond the offset; the page
	// before it owns the offset.
	i := sort.Search(n, func(i int) bool {
		return l.offsets[i+1] > offset
	})
	if i < 1 {
		return 1
	}
	if i > n {
		return n
	}
	return i
}

// top returns the top offset of a page.
func (l layoutMap) top(page int) float64 {
	if page < 1 || page > l.pageCount() {
		return 0
	}
	return l.offsets[page]
}
