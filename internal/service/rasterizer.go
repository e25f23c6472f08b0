package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"doc-extractor/internal/domain"

	"github.com/gen2brain/go-fitz"
)

// basePDFDPI is the PDF point resolution; rendering at scale s means s*basePDFDPI.
const basePDFDPI = 72.0

// PageRasterizer renders PDF pages to raster images.
type PageRasterizer struct {
	scale  float64
	logger domain.Logger
}

// NewPageRasterizer creates a rasterizer rendering at the given scale factor.
func NewPageRasterizer(scale float64, logger domain.Logger) *PageRasterizer {
	if scale <= 0 {
		scale = 2.0
	}
	return &PageRasterizer{scale: scale, logger: logger}
}

// Render rasterizes every page of a PDF in order. A failure on any page
// aborts the whole render; no partial page lists are returned.
func (r *PageRasterizer) Render(pdfBytes []byte) ([]domain.Page, error) {
	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, &domain.RenderError{Page: -1, Err: fmt.Errorf("failed to open PDF: %w", err)}
	}
	defer doc.Close()

	numPages := doc.NumPage()
	pages := make([]domain.Page, 0, numPages)

	for pageNum := 0; pageNum < numPages; pageNum++ {
		r.logger.Debug("Rendering PDF page", "page", pageNum+1, "total", numPages)

		img, err := doc.ImageDPI(pageNum, basePDFDPI*r.scale)
		if err != nil {
			return nil, &domain.RenderError{Page: pageNum, Err: err}
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, &domain.RenderError{Page: pageNum, Err: fmt.Errorf("failed to encode page image: %w", err)}
		}

		bounds := img.Bounds()
		pages = append(pages, domain.Page{
			PageIndex:  pageNum,
			PageNumber: pageNum + 1,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Image:      buf.Bytes(),
		})
	}

	return pages, nil
}

// SinglePage synthesizes the one-page list for non-PDF input. Dimensions are
// filled in when the image header can be decoded, left zero otherwise.
func (r *PageRasterizer) SinglePage(imageBytes []byte) []domain.Page {
	page := domain.Page{
		PageIndex:  0,
		PageNumber: 1,
		Image:      imageBytes,
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(imageBytes)); err == nil {
		page.Width = cfg.Width
		page.Height = cfg.Height
	}

	return []domain.Page{page}
}
