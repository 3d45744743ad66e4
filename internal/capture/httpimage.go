package capture

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPImageSource polls an HTTP endpoint that serves a fresh JPEG on
// every GET, as many IP cameras do.
type HTTPImageSource struct {
	url    string
	client *http.Client
}

// NewHTTPImageSource creates a polling source for the given URL.
func NewHTTPImageSource(url string) *HTTPImageSource {
	return &HTTPImageSource{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Open probes the endpoint once so a dead URL fails at startup rather
// than every cycle.
func (s *HTTPImageSource) Open() error {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return fmt.Errorf("probe %s: %w", s.url, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: status %d", s.url, resp.StatusCode)
	}
	return nil
}

// Acquire fetches one frame.
func (s *HTTPImageSource) Acquire() ([]byte, error) {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch %s: status %d", s.url, resp.StatusCode)
	}
	frame, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.url, err)
	}
	return frame, nil
}

// Close is a no-op; the HTTP client holds no persistent resources worth
// tearing down.
func (s *HTTPImageSource) Close() error {
	return nil
}
