package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"doc-extractor/internal/domain"
)

// HTTPFileFetcher retrieves stored files by URL and infers their MIME type.
type HTTPFileFetcher struct {
	httpClient *http.Client
	apiKey     string
}

// NewHTTPFileFetcher creates a fetcher. The API key is sent as a bearer token
// when set, which is how Supabase storage object URLs are authorized.
func NewHTTPFileFetcher(apiKey string) *HTTPFileFetcher {
	return &HTTPFileFetcher{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
	}
}

// Fetch downloads the file and returns its bytes and MIME type. Failures are
// fatal to the whole extraction job.
func (f *HTTPFileFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", &domain.FetchError{URL: url, Err: err}
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", &domain.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &domain.FetchError{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &domain.FetchError{URL: url, Err: err}
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}
