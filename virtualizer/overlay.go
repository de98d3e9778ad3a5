package virtualizer

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/use-agent/pdfview/models"
	"github.com/use-agent/pdfview/provider"
)

// errOverlayDestroyed distinguishes the slot-torn-down-mid-build race from
// real overlay failures. Callers swallow it.
var errOverlayDestroyed = models.NewViewerError(models.ErrCodeOverlayDestroyed,
	"slot destroyed during overlay construction", nil)

func isOverlayDestroyed(err error) bool {
	return errors.Is(err, errOverlayDestroyed) ||
		models.CodeOf(err) == models.ErrCodeOverlayDestroyed
}

// buildOverlays constructs the text and annotation layers for a slot whose
// base pass just succeeded. Overlays are built once per slot and torn down
// with it.
func (v *Virtualizer) buildOverlays(s *slot, page provider.Page, full models.Viewport) error {
	if !v.cfg.Options.DisableTextSelection {
		if err := v.buildTextOverlay(s, page, full); err != nil {
			if isOverlayDestroyed(err) {
				return err
			}
			// Text extraction failing must not block the page itself.
			slog.Warn("text overlay failed",
				"instance", v.cfg.InstanceID, "page", s.pageNumber, "error", err)
		}
	}
	return v.buildAnnotationOverlay(s)
}

// buildTextOverlay reproduces glyph boxes over the canvas so selection and
// search collaborators can hit-test them. Each run's width is corrected by
// measuring the rendered string and applying a horizontal scale.
func (v *Virtualizer) buildTextOverlay(s *slot, page provider.Page, full models.Viewport) error {
	v.mu.Lock()
	built, visible := s.textOverlay != nil, s.visible
	v.mu.Unlock()
	if built {
		return nil
	}
	if !visible {
		return errOverlayDestroyed
	}

	items, err := page.TextContent(v.ctx)
	if err != nil {
		return fmt.Errorf("text content: %w", err)
	}

	layer := v.tree.CreateElement("div")
	layer.SetAttr("class", "textLayer")
	layer.SetAttr("data-layer", "text")
	layer.SetStyles(map[string]string{
		"position": "absolute",
		"top":      "0",
		"left":     "0",
		"width":    px(full.Width),
		"height":   px(full.Height),
	})

	scale := full.Scale
	face := basicfont.Face7x13
	for _, item := range items {
		span := v.tree.CreateElement("span")
		span.SetText(item.Str)
		styles := map[string]string{
			"position":  "absolute",
			"left":      px(item.X * scale),
			"top":       px(item.Y * scale),
			"font-size": px(item.Height * scale),
		}
		// Glyph metrics rarely match the raster exactly; stretch the run
		// horizontally so its box covers the printed width.
		measured := float64(font.MeasureString(face, item.Str).Ceil())
		if measured > 0 && item.Width > 0 {
			sx := item.Width * scale / measured
			styles["transform"] = fmt.Sprintf("scaleX(%.4f)", sx)
			styles["transform-origin"] = "0 0"
		}
		span.SetStyles(styles)
		layer.AppendChild(span)
	}

	// The slot may have left the window while text content was fetched;
	// a partial layer is dropped, never attached.
	v.mu.Lock()
	defer v.mu.Unlock()
	if !s.visible || v.destroyed.Load() {
		layer.Remove()
		return errOverlayDestroyed
	}
	s.wrapper.AppendChild(layer)
	s.textOverlay = layer
	return nil
}

// buildAnnotationOverlay anchors the collaborator's annotation layer to the
// slot's box. Without a builder the overlay is skipped.
func (v *Virtualizer) buildAnnotationOverlay(s *slot) error {
	if v.cfg.Annotations == nil {
		return nil
	}

	v.mu.Lock()
	if s.annotOverlay != nil {
		v.mu.Unlock()
		return nil
	}
	if !s.visible {
		v.mu.Unlock()
		return errOverlayDestroyed
	}
	host := v.tree.CreateElement("div")
	host.SetAttr("class", "annotationLayer")
	host.SetAttr("data-layer", "annotations")
	host.SetStyles(map[string]string{
		"position": "absolute",
		"top":      "0",
		"left":     "0",
		"width":    px(v.layout.widths[s.pageNumber]),
		"height":   px(v.layout.heights[s.pageNumber]),
	})
	s.wrapper.AppendChild(host)
	s.annotOverlay = host
	v.mu.Unlock()

	detach, err := v.cfg.Annotations.Attach(s.pageNumber, host)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		host.Remove()
		s.annotOverlay = nil
		return fmt.Errorf("annotation layer: %w", err)
	}
	if !s.visible {
		if detach != nil {
			detach()
		}
		host.Remove()
		s.annotOverlay = nil
		return errOverlayDestroyed
	}
	s.annotDetach = detach
	return nil
}

// destroyOverlaysLocked tears both overlays down with the slot.
func (v *Virtualizer) destroyOverlaysLocked(s *slot) {
	if s.textOverlay != nil {
		s.textOverlay.Remove()
		s.textOverlay = nil
	}
	if s.annotDetach != nil {
		s.annotDetach()
		s.annotDetach = nil
	}
	if s.annotOverlay != nil {
		s.annotOverlay.Remove()
		s.annotOverlay = nil
	}
}
