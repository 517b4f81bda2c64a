package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cyclegate/cyclegate/internal/domain/signal"
)

// HTTPFeed pulls candidate snapshots from the signal subsystem's HTTP
// endpoint. The endpoint returns a JSON array of candidates; an empty
// array is a valid cycle with nothing to evaluate.
type HTTPFeed struct {
	url    string
	client *http.Client
}

// NewHTTPFeed creates a feed against the given URL.
func NewHTTPFeed(url string, timeout time.Duration) *HTTPFeed {
	return &HTTPFeed{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves one cycle's candidates.
func (f *HTTPFeed) Fetch(ctx context.Context) ([]signal.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var candidates []signal.Candidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}
	return candidates, nil
}

// FileFeed reads one cycle's candidates from a JSON file. Used by the
// one-shot CLI for replay and dry runs.
type FileFeed struct {
	path string
}

// NewFileFeed creates a feed reading from path.
func NewFileFeed(path string) *FileFeed {
	return &FileFeed{path: path}
}

// Fetch reads and decodes the candidate file.
func (f *FileFeed) Fetch(context.Context) ([]signal.Candidate, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read candidates file: %w", err)
	}
	var candidates []signal.Candidate
	if err := json.Unmarshal(b, &candidates); err != nil {
		return nil, fmt.Errorf("decode candidates file %s: %w", f.path, err)
	}
	return candidates, nil
}
