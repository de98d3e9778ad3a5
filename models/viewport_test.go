package models

import "testing"

func TestNewViewport_Rotation(t *testing.T) {
	tests := []struct {
		rotation int
		wantW    float64
		wantH    float64
	}{
		{0, 1224, 1584},
		{90, 1584, 1224},
		{180, 1224, 1584},
		{270, 1584, 1224},
		{360, 1224, 1584},
		{-90, 1584, 1224},
	}

	for _, tt := range tests {
		vp := NewViewport(612, 792, 2.0, tt.rotation)
		if vp.Width != tt.wantW || vp.Height != tt.wantH {
			t.Errorf("rotation %d: got %gx%g, want %gx%g",
				tt.rotation, vp.Width, vp.Height, tt.wantW, tt.wantH)
		}
	}
}

func TestViewport_Clone(t *testing.T) {
	vp := NewViewport(612, 792, 1.0, 0)
	rotated := vp.Clone(2.0, 90)

	if rotated.Width != 1584 || rotated.Height != 1224 {
		t.Errorf("clone at 2.0/90deg: got %gx%g, want 1584x1224", rotated.Width, rotated.Height)
	}
	if rotated.Scale != 2.0 || rotated.Rotation != 90 {
		t.Errorf("clone metadata wrong: scale=%g rotation=%d", rotated.Scale, rotated.Rotation)
	}

	// The original is untouched.
	if vp.Width != 612 || vp.Rotation != 0 {
		t.Errorf("clone mutated the original: %+v", vp)
	}
}

func TestViewport_BaseSize(t *testing.T) {
	for _, rot := range []int{0, 90, 180, 270} {
		vp := NewViewport(612, 792, 1.5, rot)
		w, h := vp.BaseSize()
		if w != 612 || h != 792 {
			t.Errorf("rotation %d: base size %gx%g, want 612x792", rot, w, h)
		}
	}
}

func TestViewerError_Unwrap(t *testing.T) {
	inner := NewViewerError(ErrCodePasswordRequired, "document is encrypted", nil)
	outer := NewViewerError(ErrCodeDocumentLoad, "load failed", inner)

	if CodeOf(outer) != ErrCodeDocumentLoad {
		t.Errorf("CodeOf(outer) = %s, want %s", CodeOf(outer), ErrCodeDocumentLoad)
	}
	if outer.Unwrap() != inner {
		t.Error("Unwrap did not return the wrapped error")
	}
}

func TestInvariant_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Invariant(false) did not panic")
		}
	}()
	Invariant(false, "slot %d used after free", 3)
}
