// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package download fetches installer payloads over HTTP into the staging
// directory. Transport success is checked before any downloaded file is
// handed to an installer step.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

// ProgressFunc receives byte counts while a fetch is in flight. total is -1
// when the server did not announce a content length.
type ProgressFunc func(received, total int64)

// =============================================================================
// CLIENT
// =============================================================================

// Client downloads files synchronously. Requests carry no timeout of their
// own; cancellation comes only from the caller's context.
type Client struct {
	httpClient *http.Client

	// limiter throttles progress callbacks so the presentation layer is not
	// flooded on fast links.
	limiter *rate.Limiter
}

// New creates a download client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// Fetch downloads url into destDir, naming the file after the last URL path
// segment, and returns the local path. A non-2xx response is a transport
// failure. progress may be nil.
func (c *Client) Fetch(ctx context.Context, url, destDir string, progress ProgressFunc) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}

	name := path.Base(req.URL.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("fetch %s: cannot derive a filename", url)
	}
	destPath := filepath.Join(destDir, name)

	f, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", destPath, err)
	}

	written, err := io.Copy(f, c.progressReader(resp.Body, resp.ContentLength, progress))
	closeErr := f.Close()
	if err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	if closeErr != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("close %s: %w", name, closeErr)
	}

	if progress != nil {
		progress(written, resp.ContentLength)
	}
	return destPath, nil
}

// =============================================================================
// PROGRESS PLUMBING
// =============================================================================

type progressReader struct {
	r        io.Reader
	total    int64
	received int64
	limiter  *rate.Limiter
	fn       ProgressFunc
}

func (c *Client) progressReader(r io.Reader, total int64, fn ProgressFunc) io.Reader {
	if fn == nil {
		return r
	}
	return &progressReader{r: r, total: total, limiter: c.limiter, fn: fn}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.received += int64(n)
	if n > 0 && p.limiter.Allow() {
		p.fn(p.received, p.total)
	}
	return n, err
}
