// Package textextract turns provider page markup into searchable plain
// text. Pages are converted through HTML → Markdown so structural noise
// drops out, with a TTL cache in front since search hits the same pages
// repeatedly.
package textextract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/use-agent/pdfview/provider"
)

const (
	cacheTTL        = 10 * time.Minute
	cleanupInterval = 5 * time.Minute
	excerptRadius   = 40
)

// entry holds extracted page text with its creation timestamp.
type entry struct {
	text      string
	createdAt time.Time
}

// Service extracts and caches page text for one document. It implements
// the viewer's search capability.
type Service struct {
	doc  provider.Document
	conv *converter.Converter

	mu    sync.Mutex
	store map[int]*entry
	done  chan struct{}
	once  sync.Once
}

// New creates a Service over a document and starts the cache cleanup loop.
func New(doc provider.Document) *Service {
	s := &Service{
		doc: doc,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		store: make(map[int]*entry),
		done:  make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// PageText returns the plain text of one page, extracting it on first use.
func (s *Service) PageText(ctx context.Context, pageNumber int) (string, error) {
	s.mu.Lock()
	if e, ok := s.store[pageNumber]; ok && time.Since(e.createdAt) < cacheTTL {
		s.mu.Unlock()
		return e.text, nil
	}
	s.mu.Unlock()

	text, err := s.extract(ctx, pageNumber)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.store[pageNumber] = &entry{text: text, createdAt: time.Now()}
	s.mu.Unlock()
	return text, nil
}

// PageMarkdown returns the page content converted to Markdown.
func (s *Service) PageMarkdown(ctx context.Context, pageNumber int) (string, error) {
	page, err := s.doc.Page(ctx, pageNumber)
	if err != nil {
		return "", err
	}
	defer page.Close()

	html, err := page.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("page %d html: %w", pageNumber, err)
	}
	if strings.TrimSpace(html) == "" {
		return s.fallbackText(ctx, page)
	}
	md, err := s.conv.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("page %d markdown: %w", pageNumber, err)
	}
	return md, nil
}

// Match is one search hit: the page, the byte offset into its text, and a
// short excerpt around it.
type Match struct {
	Page    int
	Index   int
	Excerpt string
}

// Search scans every page for a case-insensitive substring match.
func (s *Service) Search(ctx context.Context, query string) ([]Match, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	var matches []Match
	for page := 1; page <= s.doc.PageCount(); page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := s.PageText(ctx, page)
		if err != nil {
			return nil, err
		}
		lower := strings.ToLower(text)
		offset := 0
		for {
			idx := strings.Index(lower[offset:], query)
			if idx < 0 {
				break
			}
			at := offset + idx
			matches = append(matches, Match{
				Page:    page,
				Index:   at,
				Excerpt: excerpt(text, at, len(query)),
			})
			offset = at + len(query)
		}
	}
	return matches, nil
}

func (s *Service) extract(ctx context.Context, pageNumber int) (string, error) {
	md, err := s.PageMarkdown(ctx, pageNumber)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

// fallbackText serves backends without HTML output from their positioned
// text runs.
func (s *Service) fallbackText(ctx context.Context, page provider.Page) (string, error) {
	items, err := page.TextContent(ctx)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.Str)
	}
	return strings.Join(parts, "\n"), nil
}

func excerpt(text string, at, n int) string {
	lo := at - excerptRadius
	if lo < 0 {
		lo = 0
	}
	hi := at + n + excerptRadius
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

// Stop terminates the cleanup loop and drops the cache.
func (s *Service) Stop() {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	s.store = make(map[int]*entry)
	s.mu.Unlock()
}

// cleanupLoop evicts stale entries periodically.
func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-cacheTTL)
			s.mu.Lock()
			for page, e := range s.store {
				if e.createdAt.Before(cutoff) {
					delete(s.store, page)
				}
			}
			s.mu.Unlock()
		}
	}
}
