package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"doc-extractor/internal/domain"
)

func newLayoutService(primary, secondary *MockLayoutProvider, upscaler *MockUpscaler, model *MockVisionModel, pages int) *LayoutExtractionService {
	logger := &MockLogger{}
	fallback := NewFullDocumentExtractor(model, logger)
	renderer := &MockRenderer{pages: pages}
	return NewLayoutExtractionService(
		primary, secondary, upscaler, fallback, renderer,
		DefaultQualityThresholds(), 2, logger)
}

func goodLayout() *domain.PageLayout {
	return &domain.PageLayout{
		Blocks: []domain.Block{
			{Type: "text", Text: "A healthy paragraph with plenty of characters in it.", BBox: [4]float64{0, 0, 200, 40}},
			{Type: "text", Text: "A second paragraph, also comfortably above the bar.", BBox: [4]float64{0, 50, 200, 40}},
		},
		Markdown: "A healthy paragraph.\n\nA second paragraph.",
	}
}

func pdfDoc() *domain.SourceDocument {
	return &domain.SourceDocument{Data: []byte("%PDF-fake"), MimeType: "application/pdf", FileName: "doc.pdf"}
}

func TestLayoutExtractGoodQualitySkipsUpscale(t *testing.T) {
	primary := &MockLayoutProvider{
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			return goodLayout(), nil
		},
	}
	upscaler := &MockUpscaler{}
	model := &MockVisionModel{}
	s := newLayoutService(primary, nil, upscaler, model, 2)

	result, err := s.Extract(context.Background(), pdfDoc(), domain.MethodMinerU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if primary.Calls() != 2 {
		t.Errorf("expected one provider call per page, got %d", primary.Calls())
	}
	if upscaler.Calls() != 0 {
		t.Errorf("upscaler called on good quality: %d calls", upscaler.Calls())
	}
	if model.Calls() != 0 {
		t.Errorf("fallback ran on good quality: %d calls", model.Calls())
	}
	if result.Fallback {
		t.Error("result marked as fallback")
	}
	if result.TotalPages != 2 || result.TotalBlocks != 4 {
		t.Errorf("unexpected totals: pages=%d blocks=%d", result.TotalPages, result.TotalBlocks)
	}
}

func TestLayoutExtractGlobalBlockIndexSpansPages(t *testing.T) {
	primary := &MockLayoutProvider{
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			return goodLayout(), nil
		},
	}
	s := newLayoutService(primary, nil, &MockUpscaler{}, &MockVisionModel{}, 3)

	result, err := s.Extract(context.Background(), pdfDoc(), domain.MethodMinerU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 0
	for _, page := range result.Pages {
		for i, b := range page.Blocks {
			if b.BlockIndex != i {
				t.Errorf("page %d block %d: BlockIndex=%d", page.PageIndex, i, b.BlockIndex)
			}
			if b.GlobalBlockIndex != want {
				t.Errorf("page %d block %d: GlobalBlockIndex=%d, want %d", page.PageIndex, i, b.GlobalBlockIndex, want)
			}
			want++
		}
	}
	if want != 6 {
		t.Errorf("expected 6 blocks across 3 pages, got %d", want)
	}
}

func TestLayoutExtractLowQualityUpscalesOnce(t *testing.T) {
	var gotImages [][]byte
	primary := &MockLayoutProvider{
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			gotImages = append(gotImages, image)
			if call == 1 {
				return &domain.PageLayout{Markdown: "abc"}, nil
			}
			return goodLayout(), nil
		},
	}
	upscaler := &MockUpscaler{}
	s := newLayoutService(primary, nil, upscaler, &MockVisionModel{}, 1)

	result, err := s.Extract(context.Background(), pdfDoc(), domain.MethodMinerU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if upscaler.Calls() != 1 {
		t.Errorf("expected exactly one upscale, got %d", upscaler.Calls())
	}
	if primary.Calls() != 2 {
		t.Errorf("expected provider retry on the upscaled image, got %d calls", primary.Calls())
	}
	if !bytes.HasPrefix(gotImages[1], []byte("up:")) {
		t.Error("retry did not use the upscaled image")
	}
	if result.TotalBlocks != 2 {
		t.Errorf("retried layout not used: %d blocks", result.TotalBlocks)
	}
}

func TestLayoutExtractUpscaleFailureKeepsOriginal(t *testing.T) {
	primary := &MockLayoutProvider{
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			return &domain.PageLayout{
				Blocks:   []domain.Block{{Type: "text", Text: "tiny", BBox: [4]float64{0, 0, 10, 10}}},
				Markdown: "tiny",
			}, nil
		},
	}
	upscaler := &MockUpscaler{err: errors.New("upscaler down")}
	s := newLayoutService(primary, nil, upscaler, &MockVisionModel{}, 1)

	result, err := s.Extract(context.Background(), pdfDoc(), domain.MethodMinerU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if primary.Calls() != 1 {
		t.Errorf("provider retried despite upscale failure: %d calls", primary.Calls())
	}
	if result.TotalBlocks != 1 || result.Pages[0].Blocks[0].Text != "tiny" {
		t.Errorf("degraded original not kept: %+v", result.Pages[0].Blocks)
	}
}

func TestLayoutExtractRetryFailureKeepsOriginal(t *testing.T) {
	primary := &MockLayoutProvider{
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			if call == 2 {
				return nil, errors.New("provider choked on upscaled image")
			}
			return &domain.PageLayout{
				Blocks:   []domain.Block{{Type: "text", Text: "tiny", BBox: [4]float64{0, 0, 10, 10}}},
				Markdown: "tiny",
			}, nil
		},
	}
	s := newLayoutService(primary, nil, &MockUpscaler{}, &MockVisionModel{}, 1)

	result, err := s.Extract(context.Background(), pdfDoc(), domain.MethodMinerU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalBlocks != 1 || result.Pages[0].Blocks[0].Text != "tiny" {
		t.Errorf("degraded original not kept after retry failure: %+v", result.Pages)
	}
}

func TestLayoutExtractProviderErrorFallsBackToFullDocument(t *testing.T) {
	primary := &MockLayoutProvider{
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			return nil, errors.New("layout service unavailable")
		},
	}
	model := &MockVisionModel{
		transcribe: func(call int, prompt string, image []byte) (string, error) {
			return "full page text", nil
		},
	}
	s := newLayoutService(primary, nil, &MockUpscaler{}, model, 2)

	result, err := s.Extract(context.Background(), pdfDoc(), domain.MethodMinerU)
	if err != nil {
		t.Fatalf("fallback should absorb the provider error: %v", err)
	}

	if !result.Fallback {
		t.Error("result not marked as fallback")
	}
	if model.Calls() != 2 {
		t.Errorf("expected one transcription per page, got %d", model.Calls())
	}
	if result.TotalBlocks != 2 {
		t.Errorf("expected one synthetic block per page, got %d", result.TotalBlocks)
	}
	for i, page := range result.Pages {
		if len(page.Blocks) != 1 || page.Blocks[0].Type != "page" {
			t.Fatalf("page %d missing its synthetic block: %+v", i, page.Blocks)
		}
		if page.Blocks[0].GlobalBlockIndex != i {
			t.Errorf("page %d synthetic block has global index %d", i, page.Blocks[0].GlobalBlockIndex)
		}
	}
}

func TestLayoutExtractZeroBlocksFallsBack(t *testing.T) {
	// Every page passes the markdown-length gate but yields no blocks; the
	// document as a whole still escalates.
	primary := &MockLayoutProvider{
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			return &domain.PageLayout{Markdown: "Thirty characters of markdown!"}, nil
		},
	}
	model := &MockVisionModel{
		transcribe: func(call int, prompt string, image []byte) (string, error) {
			return "transcribed page", nil
		},
	}
	s := newLayoutService(primary, nil, &MockUpscaler{}, model, 2)

	result, err := s.Extract(context.Background(), pdfDoc(), domain.MethodMinerU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Fallback {
		t.Error("blockless document did not fall back")
	}
	if result.TotalBlocks != 2 {
		t.Errorf("expected 2 synthetic blocks, got %d", result.TotalBlocks)
	}
}

func TestLayoutExtractEmptyPageUpscaleFailureFallsBack(t *testing.T) {
	// A page with no blocks and five characters of markdown is low quality;
	// with the upscaler down the empty original is kept, and the blockless
	// document then escalates to whole-page transcription.
	primary := &MockLayoutProvider{
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			return &domain.PageLayout{Markdown: "x y z"}, nil
		},
	}
	upscaler := &MockUpscaler{err: errors.New("upscaler down")}
	model := &MockVisionModel{
		transcribe: func(call int, prompt string, image []byte) (string, error) {
			return "transcribed page", nil
		},
	}
	s := newLayoutService(primary, nil, upscaler, model, 1)

	result, err := s.Extract(context.Background(), pdfDoc(), domain.MethodMinerU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if upscaler.Calls() != 1 {
		t.Errorf("expected one upscale attempt, got %d", upscaler.Calls())
	}
	if primary.Calls() != 1 {
		t.Errorf("provider should not retry after upscale failure: %d calls", primary.Calls())
	}
	if !result.Fallback {
		t.Error("blockless document did not fall back")
	}
	if result.TotalBlocks != 1 || len(result.Pages[0].Blocks) != 1 {
		t.Fatalf("expected 1 synthetic whole-page block, got %+v", result.Pages)
	}
	if result.Pages[0].Blocks[0].Text != "transcribed page" {
		t.Errorf("synthetic block text wrong: %q", result.Pages[0].Blocks[0].Text)
	}
}

func TestLayoutExtractFallbackFailurePropagates(t *testing.T) {
	primary := &MockLayoutProvider{
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			return nil, errors.New("layout down")
		},
	}
	model := &MockVisionModel{
		transcribe: func(call int, prompt string, image []byte) (string, error) {
			return "", errors.New("vision down too")
		},
	}
	s := newLayoutService(primary, nil, &MockUpscaler{}, model, 1)

	if _, err := s.Extract(context.Background(), pdfDoc(), domain.MethodMinerU); err == nil {
		t.Fatal("expected an error when both layout and fallback fail")
	}
}

func TestLayoutExtractMethodSelectsProvider(t *testing.T) {
	primary := &MockLayoutProvider{
		name: "mineru",
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			return goodLayout(), nil
		},
	}
	secondary := &MockLayoutProvider{
		name: "dots",
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			return goodLayout(), nil
		},
	}
	s := newLayoutService(primary, secondary, &MockUpscaler{}, &MockVisionModel{}, 1)

	if _, err := s.Extract(context.Background(), pdfDoc(), domain.MethodDots); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secondary.Calls() != 1 || primary.Calls() != 0 {
		t.Errorf("method selection wrong: primary=%d secondary=%d", primary.Calls(), secondary.Calls())
	}
}

func TestLayoutExtractNonPDFUsesSinglePage(t *testing.T) {
	primary := &MockLayoutProvider{
		extract: func(call int, image []byte) (*domain.PageLayout, error) {
			return goodLayout(), nil
		},
	}
	s := newLayoutService(primary, nil, &MockUpscaler{}, &MockVisionModel{}, 5)

	doc := &domain.SourceDocument{Data: []byte("png-bytes"), MimeType: "image/png", FileName: "scan.png"}
	result, err := s.Extract(context.Background(), doc, domain.MethodMinerU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalPages != 1 {
		t.Errorf("image input should be a single page, got %d", result.TotalPages)
	}
}
