package models

// Viewport describes the rendered dimensions of a page at a given scale and
// rotation. Width and Height are CSS pixels, already rotated: at 90 or 270
// degrees they are the base height and width swapped. Viewport is a pure
// value; mutating a copy never affects the page it was derived from.
type Viewport struct {
	Width    float64
	Height   float64
	Scale    float64
	Rotation int // degrees, one of 0, 90, 180, 270
}

// NewViewport builds a viewport from the page's base size (CSS pixels at
// scale 1, rotation 0).
func NewViewport(baseW, baseH, scale float64, rotation int) Viewport {
	w, h := baseW*scale, baseH*scale
	if normalizeRotation(rotation)%180 == 90 {
		w, h = h, w
	}
	return Viewport{Width: w, Height: h, Scale: scale, Rotation: normalizeRotation(rotation)}
}

// Clone returns a viewport for the same page at a different scale and/or
// rotation. Pass the current values to keep a dimension unchanged.
func (v Viewport) Clone(scale float64, rotation int) Viewport {
	baseW, baseH := v.BaseSize()
	return NewViewport(baseW, baseH, scale, rotation)
}

// BaseSize recovers the unrotated, unscaled page dimensions.
func (v Viewport) BaseSize() (w, h float64) {
	w, h = v.Width/v.Scale, v.Height/v.Scale
	if v.Rotation%180 == 90 {
		w, h = h, w
	}
	return w, h
}

func normalizeRotation(deg int) int {
	r := deg % 360
	if r < 0 {
		r += 360
	}
	// Round down to a quarter turn; callers only ever pass multiples
	// of 90 but the value arrives from config.
	return (r / 90) * 90
}
