package provider

import (
	"image"
	"image/draw"
	"strings"
)

// rotateImage rotates src by the given quarter-turn angle (degrees,
// clockwise). Angle 0 returns src unchanged.
func rotateImage(src image.Image, deg int) image.Image {
	deg = ((deg % 360) + 360) % 360
	if deg == 0 {
		return src
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	if deg == 180 {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	}

	// Per-pixel copy; pages rotate rarely enough that this stays off every
	// hot path.
	rgba, ok := src.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(b)
		draw.Draw(rgba, b, src, b.Min, draw.Src)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := rgba.RGBAAt(b.Min.X+x, b.Min.Y+y)
			switch deg {
			case 90:
				dst.SetRGBA(h-1-y, x, c)
			case 180:
				dst.SetRGBA(w-1-x, h-1-y, c)
			case 270:
				dst.SetRGBA(y, w-1-x, c)
			}
		}
	}
	return dst
}

// layoutTextLines distributes plain-text lines over a uniform grid covering
// the page box, producing approximate selection boxes.
func layoutTextLines(text string, pageW, pageH float64) []TextItem {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	var nonEmpty int
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil
	}

	lineH := pageH / float64(len(lines))
	maxLen := 0
	for _, l := range lines {
		if n := len([]rune(l)); n > maxLen {
			maxLen = n
		}
	}

	items := make([]TextItem, 0, nonEmpty)
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" {
			continue
		}
		frac := float64(len([]rune(trimmed))) / float64(maxLen)
		items = append(items, TextItem{
			Str:    trimmed,
			X:      0,
			Y:      float64(i) * lineH,
			Width:  pageW * frac,
			Height: lineH,
		})
	}
	return items
}
