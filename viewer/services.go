package viewer

import (
	"context"

	"github.com/use-agent/pdfview/dom"
)

// AnnotationService is the narrow capability the core consumes to host
// annotation overlays. The implementation (authoring, selection, storage)
// lives outside the core.
type AnnotationService interface {
	// Attach mounts the annotation layer for a page into host and returns
	// its detach function.
	Attach(pageNumber int, host *dom.Element) (detach func(), err error)
}

// SearchMatch is one hit returned by a SearchService.
type SearchMatch struct {
	Page    int
	Index   int
	Excerpt string
}

// SearchService locates text across the document.
type SearchService interface {
	Search(ctx context.Context, query string) ([]SearchMatch, error)
}

// DownloadService exports the document bytes.
type DownloadService interface {
	Download(ctx context.Context) ([]byte, error)
}
