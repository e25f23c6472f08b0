package service

import (
	"context"
	"fmt"
	"strings"

	"doc-extractor/internal/domain"
)

// pageSeparator joins per-page transcriptions into document markdown.
const pageSeparator = "\n\n---\n\n"

const transcriptionPrompt = `Transcribe all text visible in this page image, top to bottom, ` +
	`preserving reading order and paragraph breaks. Output the text only, with no commentary.`

// FullDocumentExtractor transcribes whole pages through the vision model when
// structured layout extraction is unavailable. Pages are processed
// sequentially on purpose: full-page calls are coarse-grained and the layout
// chain may still be retrying against the same provider.
type FullDocumentExtractor struct {
	model  domain.VisionModel
	logger domain.Logger
}

// NewFullDocumentExtractor creates a fallback extractor.
func NewFullDocumentExtractor(model domain.VisionModel, logger domain.Logger) *FullDocumentExtractor {
	return &FullDocumentExtractor{model: model, logger: logger}
}

// Extract transcribes every page and returns each as a single synthetic block
// spanning the whole page, with the concatenated text as document markdown.
func (e *FullDocumentExtractor) Extract(ctx context.Context, pages []domain.Page) (*domain.LayoutResult, error) {
	result := &domain.LayoutResult{
		Pages:      make([]domain.Page, 0, len(pages)),
		TotalPages: len(pages),
		Fallback:   true,
	}

	transcriptions := make([]string, 0, len(pages))
	globalIndex := 0

	for _, page := range pages {
		e.logger.Info("Transcribing full page", "page", page.PageNumber, "total", len(pages))

		text, err := e.model.Transcribe(ctx, transcriptionPrompt, page.Image)
		if err != nil {
			return nil, fmt.Errorf("full-page transcription failed on page %d: %w", page.PageNumber, err)
		}
		text = strings.TrimSpace(text)

		page.Blocks = []domain.Block{{
			BlockIndex:       0,
			GlobalBlockIndex: globalIndex,
			Type:             "page",
			Text:             text,
		}}
		page.Markdown = text
		globalIndex++

		result.Pages = append(result.Pages, page)
		result.TotalBlocks++
		transcriptions = append(transcriptions, text)
	}

	result.Markdown = strings.Join(transcriptions, pageSeparator)
	return result, nil
}
