package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const fetchChunkSize = 32 * 1024

// ProgressFunc observes source download progress. total is -1 when the
// source does not advertise a length.
type ProgressFunc func(loaded, total int64)

// FetchSource resolves document bytes from raw data, an http(s) URL, or a
// file path, in that order of precedence. URL downloads report progress per
// chunk.
func FetchSource(ctx context.Context, source string, data []byte, progress ProgressFunc) ([]byte, error) {
	if len(data) > 0 {
		if progress != nil {
			progress(int64(len(data)), int64(len(data)))
		}
		return data, nil
	}
	if source == "" {
		return nil, fmt.Errorf("no document source given")
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetchURL(ctx, source, progress)
	}

	b, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", source, err)
	}
	if progress != nil {
		progress(int64(len(b)), int64(len(b)))
	}
	return b, nil
}

func fetchURL(ctx context.Context, url string, progress ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch document: server returned status %d", resp.StatusCode)
	}

	total := resp.ContentLength // -1 when unknown
	var buf bytes.Buffer
	chunk := make([]byte, fetchChunkSize)
	var loaded int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			loaded += int64(n)
			if progress != nil {
				progress(loaded, total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read document body: %w", err)
		}
	}
	return buf.Bytes(), nil
}
