// Package providers contains the clients for the external services the
// extraction engine delegates to: layout/OCR providers, image
// super-resolution, the vision-language model, and object-storage fetch.
// Each client normalizes its wire shapes at this boundary; provider-specific
// field names never leak into the engine.
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

// MinerUClient is the primary layout provider. It returns blocks with
// [x, y, width, height] boxes plus page markdown.
type MinerUClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     domain.Logger
}

// NewMinerUClient creates the primary layout client.
func NewMinerUClient(baseURL, apiKey string, timeout time.Duration, logger domain.Logger) *MinerUClient {
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &MinerUClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *MinerUClient) Name() string { return "mineru" }

type mineruRequest struct {
	Image    string `json:"image"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
}

type mineruBlock struct {
	Content      string      `json:"content"`
	Type         string      `json:"type"`
	BBox         []float64   `json:"bbox"`
	OriginalBBox []float64   `json:"original_bbox,omitempty"`
	Polygon      [][]float64 `json:"polygon,omitempty"`
}

type mineruResponse struct {
	Blocks   []mineruBlock `json:"blocks"`
	Markdown string        `json:"markdown"`
}

// ExtractLayout sends one page image and normalizes the response.
func (c *MinerUClient) ExtractLayout(ctx context.Context, image []byte, fileName, mimeType string) (*domain.PageLayout, error) {
	reqBody := mineruRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		FileName: fileName,
		MimeType: mimeType,
	}

	var resp mineruResponse
	if err := c.post(ctx, "/v1/layout", reqBody, &resp); err != nil {
		return nil, err
	}

	layout := &domain.PageLayout{Markdown: resp.Markdown}
	for _, b := range resp.Blocks {
		block := domain.Block{
			Type:    b.Type,
			Text:    b.Content,
			Polygon: b.Polygon,
		}
		if len(b.BBox) == 4 {
			copy(block.BBox[:], b.BBox)
		}
		if len(b.OriginalBBox) == 4 {
			block.OriginalBBox = b.OriginalBBox
		}
		layout.Blocks = append(layout.Blocks, block)
	}
	return layout, nil
}

func (c *MinerUClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ProviderError{Provider: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ProviderError{Provider: c.Name(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &domain.ProviderError{
			Provider:    c.Name(),
			StatusCode:  resp.StatusCode,
			RateLimited: resp.StatusCode == http.StatusTooManyRequests,
			Err:         fmt.Errorf("%s", string(respBody)),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
