package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"doc-extractor/internal/domain"
)

// UpscaleClient calls the image super-resolution provider. The provider
// answers with a result URL; the upscaled image is re-fetched here so callers
// get bytes ready for re-submission.
type UpscaleClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     domain.Logger
}

// NewUpscaleClient creates the super-resolution client.
func NewUpscaleClient(baseURL, apiKey string, logger domain.Logger) *UpscaleClient {
	return &UpscaleClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

type upscaleRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
	Scale    int    `json:"scale"`
}

type upscaleResponse struct {
	ImageURL string `json:"imageUrl"`
}

// Upscale runs one image through super-resolution.
func (c *UpscaleClient) Upscale(ctx context.Context, image []byte, mimeType string, scale int) ([]byte, error) {
	reqBody := upscaleRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		MimeType: mimeType,
		Scale:    scale,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/upscale", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "upscaler", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "upscaler", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderError{
			Provider:    "upscaler",
			StatusCode:  resp.StatusCode,
			RateLimited: resp.StatusCode == http.StatusTooManyRequests,
			Err:         fmt.Errorf("%s", string(respBody)),
		}
	}

	var parsed upscaleResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &domain.ProviderError{Provider: "upscaler", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if parsed.ImageURL == "" {
		return nil, &domain.ProviderError{Provider: "upscaler", Err: fmt.Errorf("empty image URL in response")}
	}

	return c.fetchResult(ctx, parsed.ImageURL)
}

// fetchResult downloads the upscaled image from the provider's result URL.
func (c *UpscaleClient) fetchResult(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create result request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "upscaler", Err: fmt.Errorf("failed to fetch result image: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderError{
			Provider:   "upscaler",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("result image fetch failed"),
		}
	}

	return io.ReadAll(resp.Body)
}
