// Package fetch retrieves raw image bytes for verification checks. Every
// check depends on a download; a failed or timed-out fetch degrades the
// dependent check instead of aborting the verification pass.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Source retrieves the raw bytes behind an image URL.
type Source interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// DownloadError reports a network or timeout failure fetching an image.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download image from %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// DecodeError reports a corrupt or unsupported image payload.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// HTTPSource downloads images over HTTP(S) with a bounded timeout and a
// payload size cap.
type HTTPSource struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPSource builds an HTTP image source. maxBytes caps the accepted
// payload size; zero means 10MB.
func NewHTTPSource(timeout time.Duration, maxBytes int64) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &HTTPSource{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	if int64(len(data)) > s.maxBytes {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("image exceeds %d byte limit", s.maxBytes)}
	}

	return data, nil
}

// Router dispatches fetches by URL scheme: s3:// URLs go to the S3 source
// when one is configured, everything else over HTTP.
type Router struct {
	HTTP Source
	S3   Source
}

func (r *Router) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "s3://") {
		if r.S3 == nil {
			return nil, &DownloadError{URL: url, Err: fmt.Errorf("no S3 source configured")}
		}
		return r.S3.Fetch(ctx, url)
	}
	return r.HTTP.Fetch(ctx, url)
}
