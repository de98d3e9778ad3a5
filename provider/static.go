package provider

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/use-agent/pdfview/models"
)

// StaticConfig describes a synthetic document: every page has the same
// geometry and renders as a flat fill with a border. Static documents back
// mini-viewer placeholders and make render timing controllable in tests.
type StaticConfig struct {
	Pages      int
	PageWidth  float64 // CSS pixels at scale 1; default: 612
	PageHeight float64 // default: 792
	Fill       color.RGBA
	Border     color.RGBA

	// RenderDelay simulates decoder raster time. The delay is a
	// cancellation point.
	RenderDelay time.Duration

	// Password, when non-empty, marks the document encrypted.
	Password string

	// Text holds per-page text runs keyed by page number.
	Text map[int][]TextItem

	// PageHTML holds per-page HTML markup keyed by page number.
	PageHTML map[int]string
}

// StaticDocument is the synthetic provider backend.
type StaticDocument struct {
	cfg    StaticConfig
	worker *Worker
	closed bool
}

// OpenStatic builds a synthetic document. An encrypted configuration fails
// with PASSWORD_REQUIRED unless the matching password is supplied.
func OpenStatic(cfg StaticConfig, password string) (*StaticDocument, error) {
	if cfg.Pages <= 0 {
		return nil, models.NewViewerError(models.ErrCodeInvalidInput, "document needs at least one page", nil)
	}
	if cfg.Password != "" && password != cfg.Password {
		return nil, passwordError(nil)
	}
	if cfg.PageWidth == 0 {
		cfg.PageWidth = 612
	}
	if cfg.PageHeight == 0 {
		cfg.PageHeight = 792
	}
	if cfg.Fill == (color.RGBA{}) {
		cfg.Fill = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	if cfg.Border == (color.RGBA{}) {
		cfg.Border = color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
	}
	return &StaticDocument{cfg: cfg, worker: NewWorker(64)}, nil
}

func (d *StaticDocument) PageCount() int { return d.cfg.Pages }

func (d *StaticDocument) Metadata() map[string]string {
	return map[string]string{"format": "static", "pages": fmt.Sprint(d.cfg.Pages)}
}

func (d *StaticDocument) Page(ctx context.Context, n int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 1 || n > d.cfg.Pages {
		return nil, models.NewViewerError(models.ErrCodeInvalidInput,
			fmt.Sprintf("page %d out of range [1, %d]", n, d.cfg.Pages), nil)
	}
	return &staticPage{doc: d, number: n}, nil
}

func (d *StaticDocument) Close() error {
	if !d.closed {
		d.closed = true
		d.worker.Stop()
	}
	return nil
}

type staticPage struct {
	doc    *StaticDocument
	number int
}

func (p *staticPage) Number() int { return p.number }

func (p *staticPage) Size() (float64, float64) {
	return p.doc.cfg.PageWidth, p.doc.cfg.PageHeight
}

func (p *staticPage) Render(ctx context.Context, vp models.Viewport) *RenderTask {
	task := newRenderTask(ctx)
	cfg := p.doc.cfg
	err := p.doc.worker.Submit(func() {
		if cfg.RenderDelay > 0 {
			timer := time.NewTimer(cfg.RenderDelay)
			select {
			case <-task.ctx.Done():
				timer.Stop()
				task.complete(nil, ErrRenderCancelled)
				return
			case <-timer.C:
			}
		}
		if task.Cancelled() {
			task.complete(nil, ErrRenderCancelled)
			return
		}

		w := int(math.Ceil(vp.Width))
		h := int(math.Ceil(vp.Height))
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(img, img.Bounds(), image.NewUniform(cfg.Fill), image.Point{}, draw.Src)
		for x := 0; x < w; x++ {
			img.SetRGBA(x, 0, cfg.Border)
			img.SetRGBA(x, h-1, cfg.Border)
		}
		for y := 0; y < h; y++ {
			img.SetRGBA(0, y, cfg.Border)
			img.SetRGBA(w-1, y, cfg.Border)
		}
		task.complete(img, nil)
	})
	if err != nil {
		task.complete(nil, err)
	}
	return task
}

func (p *staticPage) TextContent(ctx context.Context) ([]TextItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.doc.cfg.Text[p.number], nil
}

func (p *staticPage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.doc.cfg.PageHTML[p.number], nil
}

func (p *staticPage) Annotations(ctx context.Context) ([]Annotation, error) {
	return nil, ctx.Err()
}

func (p *staticPage) Links(ctx context.Context) ([]Link, error) {
	return nil, ctx.Err()
}

func (p *staticPage) Close() error { return nil }
