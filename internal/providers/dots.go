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

// DotsOCRClient is the secondary layout provider, functionally equivalent to
// MinerU but with a different wire shape: blocks carry `text`/`category` and
// corner-point [x1, y1, x2, y2] boxes.
type DotsOCRClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     domain.Logger
}

// NewDotsOCRClient creates the secondary layout client.
func NewDotsOCRClient(baseURL, apiKey string, timeout time.Duration, logger domain.Logger) *DotsOCRClient {
	if timeout <= 0 {
		timeout = 240 * time.Second
	}
	return &DotsOCRClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *DotsOCRClient) Name() string { return "dots-ocr" }

type dotsRequest struct {
	Image    string `json:"image"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
}

type dotsBlock struct {
	Text     string    `json:"text"`
	Category string    `json:"category"`
	BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2]
}

type dotsResponse struct {
	Results  []dotsBlock `json:"results"`
	Markdown string      `json:"md"`
}

// ExtractLayout sends one page image and normalizes corner-point boxes into
// the engine's [x, y, width, height] shape, keeping the original box too.
func (c *DotsOCRClient) ExtractLayout(ctx context.Context, image []byte, fileName, mimeType string) (*domain.PageLayout, error) {
	reqBody := dotsRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		FileName: fileName,
		MimeType: mimeType,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/parse", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: c.Name(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderError{
			Provider:    c.Name(),
			StatusCode:  resp.StatusCode,
			RateLimited: resp.StatusCode == http.StatusTooManyRequests,
			Err:         fmt.Errorf("%s", string(respBody)),
		}
	}

	var parsed dotsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	layout := &domain.PageLayout{Markdown: parsed.Markdown}
	for _, b := range parsed.Results {
		block := domain.Block{
			Type: b.Category,
			Text: b.Text,
		}
		if len(b.BBox) == 4 {
			block.BBox = [4]float64{b.BBox[0], b.BBox[1], b.BBox[2] - b.BBox[0], b.BBox[3] - b.BBox[1]}
			block.OriginalBBox = b.BBox
		}
		layout.Blocks = append(layout.Blocks, block)
	}
	return layout, nil
}
