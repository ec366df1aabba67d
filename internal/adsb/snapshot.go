package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultSnapshotURL is the usual tar1090/readsb aircraft.json endpoint.
const DefaultSnapshotURL = "http://127.0.0.1:8080/data/aircraft.json"

// Snapshot is one fetch of the decoder's aircraft.json. Each aircraft entry
// stays a generic map so optional fields survive untouched.
type Snapshot struct {
	Now      float64          `json:"now"`
	Messages int64            `json:"messages"`
	Aircraft []map[string]any `json:"aircraft"`
}

// Fetcher retrieves aircraft state snapshots over HTTP. It is stateless;
// consecutive-failure accounting belongs to the caller.
type Fetcher struct {
	URL    string
	Client *http.Client
}

// NewFetcher creates a fetcher with the given per-request timeout.
func NewFetcher(url string, timeout time.Duration) *Fetcher {
	if url == "" {
		url = DefaultSnapshotURL
	}
	return &Fetcher{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves and decodes the current snapshot. Network problems and
// non-2xx statuses come back as errors; so does an unparseable body. Both
// are non-fatal to the ingest loop.
func (f *Fetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("snapshot endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot body: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot JSON: %w", err)
	}
	return &snap, nil
}
