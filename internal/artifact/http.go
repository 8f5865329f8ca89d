package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Veraticus/food-classifier/internal/config"
)

// HTTPFetcher downloads artifacts with a plain GET. The URL template may
// contain an {id} placeholder for the artifact id.
type HTTPFetcher struct {
	client      *http.Client
	urlTemplate string
}

// NewHTTPFetcher creates a fetcher for urlTemplate. A nil client uses http.DefaultClient.
func NewHTTPFetcher(urlTemplate string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		client:      client,
		urlTemplate: urlTemplate,
	}
}

// Open implements service.ArtifactFetcher.
func (f *HTTPFetcher) Open(ctx context.Context, artifactID string) (io.ReadCloser, int64, error) {
	target := config.ArtifactURL(f.urlTemplate, artifactID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, 0, fmt.Errorf("GET %s status: %s: %s", target, resp.Status, strings.TrimSpace(string(errBody)))
	}

	return resp.Body, resp.ContentLength, nil
}
