package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/use-agent/pdfview/models"
)

// FitzDocument is the MuPDF-backed document provider.
type FitzDocument struct {
	doc       *fitz.Document
	worker    *Worker
	pageCount int
}

// OpenFitz decodes a document from raw bytes. Encrypted documents fail with
// a PASSWORD_REQUIRED error; the MuPDF wrapper offers no authentication
// hook, so a supplied password cannot unlock them.
func OpenFitz(data []byte) (*FitzDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, passwordError(err)
		}
		return nil, models.NewViewerError(models.ErrCodeDocumentLoad, "cannot decode document", err)
	}
	return &FitzDocument{
		doc:       doc,
		worker:    NewWorker(16),
		pageCount: doc.NumPage(),
	}, nil
}

func (d *FitzDocument) PageCount() int { return d.pageCount }

func (d *FitzDocument) Metadata() map[string]string {
	return d.doc.Metadata()
}

func (d *FitzDocument) Page(ctx context.Context, n int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 1 || n > d.pageCount {
		return nil, models.NewViewerError(models.ErrCodeInvalidInput,
			fmt.Sprintf("page %d out of range [1, %d]", n, d.pageCount), nil)
	}
	// Bound reports the page box at 72 dpi, so its pixel dimensions double
	// as the CSS size at scale 1.
	bounds, err := d.doc.Bound(n - 1)
	if err != nil {
		return nil, fmt.Errorf("page %d bounds: %w", n, err)
	}
	return &fitzPage{
		doc:    d,
		number: n,
		baseW:  float64(bounds.Dx()),
		baseH:  float64(bounds.Dy()),
	}, nil
}

func (d *FitzDocument) Close() error {
	d.worker.Stop()
	return d.doc.Close()
}

type fitzPage struct {
	doc    *FitzDocument
	number int
	baseW  float64
	baseH  float64
}

func (p *fitzPage) Number() int { return p.number }

func (p *fitzPage) Size() (float64, float64) { return p.baseW, p.baseH }

func (p *fitzPage) Render(ctx context.Context, vp models.Viewport) *RenderTask {
	task := newRenderTask(ctx)
	err := p.doc.worker.Submit(func() {
		if task.Cancelled() {
			task.complete(nil, ErrRenderCancelled)
			return
		}
		img, err := p.doc.doc.ImageDPI(p.number-1, 72*vp.Scale)
		if err != nil {
			task.complete(nil, fmt.Errorf("rasterize page %d: %w", p.number, err))
			return
		}
		if task.Cancelled() {
			task.complete(nil, ErrRenderCancelled)
			return
		}
		task.complete(rotateImage(img, vp.Rotation), nil)
	})
	if err != nil {
		task.complete(nil, err)
	}
	return task
}

// TextContent derives positioned runs from the page's plain text. The MuPDF
// wrapper does not expose structured text boxes, so lines are laid onto a
// uniform grid over the page height.
func (p *fitzPage) TextContent(ctx context.Context) ([]TextItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := p.doc.doc.Text(p.number - 1)
	if err != nil {
		return nil, fmt.Errorf("text for page %d: %w", p.number, err)
	}
	return layoutTextLines(text, p.baseW, p.baseH), nil
}

func (p *fitzPage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.doc.doc.HTML(p.number-1, false)
}

func (p *fitzPage) Annotations(ctx context.Context) ([]Annotation, error) {
	// MuPDF annotations are not surfaced by the wrapper; annotation
	// overlays come from the viewer-level annotation service instead.
	return nil, ctx.Err()
}

func (p *fitzPage) Links(ctx context.Context) ([]Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := p.doc.doc.Links(p.number - 1)
	if err != nil {
		return nil, fmt.Errorf("links for page %d: %w", p.number, err)
	}
	links := make([]Link, 0, len(raw))
	for _, l := range raw {
		links = append(links, Link{URI: l.URI})
	}
	return links, nil
}

func (p *fitzPage) Close() error { return nil }
