package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/M365x55907051/juice-shop/internal/metrics"
)

// ErrRemoteTooLarge means the remote image exceeded the size cap
var ErrRemoteTooLarge = errors.New("remote image too large")

// Fetcher downloads a remote image
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// RemoteFetcher performs bounded GET requests
type RemoteFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewRemoteFetcher creates a fetcher. The client carries the timeout; use
// telemetry.NewInstrumentedHTTPClient for traced requests.
func NewRemoteFetcher(client *http.Client, maxBytes int64) *RemoteFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteFetcher{client: client, maxBytes: maxBytes}
}

// Fetch returns the response body of a 2xx GET, capped at maxBytes
func (f *RemoteFetcher) Fetch(ctx context.Context, rawURL string) (data []byte, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.RecordFetch(result, time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch failed: unexpected status %d", resp.StatusCode)
	}

	if resp.ContentLength > f.maxBytes {
		return nil, ErrRemoteTooLarge
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrRemoteTooLarge
	}

	return data, nil
}

var _ Fetcher = (*RemoteFetcher)(nil)
