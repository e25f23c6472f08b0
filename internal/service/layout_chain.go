package service

import (
	"context"
	"strings"

	"doc-extractor/internal/domain"
)

// LayoutExtractionService runs the structured layout chain: per-page provider
// calls with a quality gate, at most one upscale-and-retry per page, and
// escalation to whole-page transcription when structured layout fails
// entirely.
type LayoutExtractionService struct {
	primary       domain.LayoutProvider
	secondary     domain.LayoutProvider
	upscaler      domain.ImageUpscaler
	fallback      *FullDocumentExtractor
	rasterizer    domain.PageRenderer
	thresholds    QualityThresholds
	upscaleFactor int
	logger        domain.Logger
}

// NewLayoutExtractionService wires the layout chain.
func NewLayoutExtractionService(
	primary domain.LayoutProvider,
	secondary domain.LayoutProvider,
	upscaler domain.ImageUpscaler,
	fallback *FullDocumentExtractor,
	rasterizer domain.PageRenderer,
	thresholds QualityThresholds,
	upscaleFactor int,
	logger domain.Logger,
) *LayoutExtractionService {
	if upscaleFactor <= 0 {
		upscaleFactor = 2
	}
	return &LayoutExtractionService{
		primary:       primary,
		secondary:     secondary,
		upscaler:      upscaler,
		fallback:      fallback,
		rasterizer:    rasterizer,
		thresholds:    thresholds,
		upscaleFactor: upscaleFactor,
		logger:        logger,
	}
}

// provider returns the layout provider selected for this job. The choice is
// per job, not per page.
func (s *LayoutExtractionService) provider(method domain.ExtractionMethod) domain.LayoutProvider {
	if method == domain.MethodDots && s.secondary != nil {
		return s.secondary
	}
	return s.primary
}

// Extract produces the document's LayoutResult. Rasterizer failures are fatal
// and surface to the caller; provider failures and empty layouts escalate to
// the full-document fallback instead.
func (s *LayoutExtractionService) Extract(ctx context.Context, doc *domain.SourceDocument, method domain.ExtractionMethod) (*domain.LayoutResult, error) {
	pages, err := s.loadPages(doc)
	if err != nil {
		return nil, err
	}

	provider := s.provider(method)

	result := &domain.LayoutResult{
		Pages:      make([]domain.Page, 0, len(pages)),
		TotalPages: len(pages),
	}

	globalIndex := 0
	markdowns := make([]string, 0, len(pages))

	for _, page := range pages {
		layout, err := s.extractPage(ctx, provider, page, doc)
		if err != nil {
			// Structured layout is unavailable: the whole document goes
			// through full-page transcription instead.
			s.logger.Warn("Layout provider failed, escalating to full-document fallback",
				"provider", provider.Name(), "page", page.PageNumber, "error", err)
			return s.fallback.Extract(ctx, pages)
		}

		for i := range layout.Blocks {
			layout.Blocks[i].BlockIndex = i
			layout.Blocks[i].GlobalBlockIndex = globalIndex
			globalIndex++
		}

		page.Blocks = layout.Blocks
		page.Markdown = layout.Markdown
		result.Pages = append(result.Pages, page)
		result.TotalBlocks += len(layout.Blocks)
		if layout.Markdown != "" {
			markdowns = append(markdowns, layout.Markdown)
		}
	}

	if result.TotalBlocks == 0 {
		s.logger.Warn("Layout produced no blocks, escalating to full-document fallback",
			"provider", provider.Name(), "pages", len(pages))
		return s.fallback.Extract(ctx, pages)
	}

	result.Markdown = strings.Join(markdowns, pageSeparator)
	return result, nil
}

// extractPage runs one page through the provider with the quality gate. Low
// quality triggers at most one upscale attempt; an upscale or retry failure
// keeps the degraded original rather than failing the page.
func (s *LayoutExtractionService) extractPage(ctx context.Context, provider domain.LayoutProvider, page domain.Page, doc *domain.SourceDocument) (*domain.PageLayout, error) {
	layout, err := provider.ExtractLayout(ctx, page.Image, doc.FileName, pageMimeType(doc))
	if err != nil {
		return nil, err
	}

	quality := AssessLayoutQuality(layout.Blocks, layout.Markdown, s.thresholds)
	if !quality.LowQuality {
		return layout, nil
	}

	s.logger.Info("Low-quality layout, attempting upscale retry",
		"provider", provider.Name(), "page", page.PageNumber, "reason", quality.Reason,
		"blocks", len(layout.Blocks), "empty_ratio", quality.EmptyBlockRatio)

	upscaled, err := s.upscaler.Upscale(ctx, page.Image, pageMimeType(doc), s.upscaleFactor)
	if err != nil {
		// Recoverable degradation: keep what we got.
		s.logger.Warn("Upscale failed, keeping original layout",
			"page", page.PageNumber, "error", err)
		return layout, nil
	}

	retried, err := provider.ExtractLayout(ctx, upscaled, doc.FileName, pageMimeType(doc))
	if err != nil {
		s.logger.Warn("Layout retry on upscaled image failed, keeping original layout",
			"provider", provider.Name(), "page", page.PageNumber, "error", err)
		return layout, nil
	}

	// The retried result is used regardless of its own quality; one upscale
	// attempt per page, never a loop.
	return retried, nil
}

func (s *LayoutExtractionService) loadPages(doc *domain.SourceDocument) ([]domain.Page, error) {
	if doc.IsPDF() {
		return s.rasterizer.Render(doc.Data)
	}
	return s.rasterizer.SinglePage(doc.Data), nil
}

// pageMimeType is the MIME type of page images handed to providers. Rasterized
// PDF pages are PNG; other inputs keep their upload type.
func pageMimeType(doc *domain.SourceDocument) string {
	if doc.IsPDF() {
		return "image/png"
	}
	if doc.MimeType != "" {
		return doc.MimeType
	}
	return "image/png"
}
