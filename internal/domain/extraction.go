package domain

import (
	"strings"
	"time"
)

// ExtractionStatus is the lifecycle state of a job or one of its pipelines.
type ExtractionStatus string

const (
	StatusPending    ExtractionStatus = "pending"
	StatusProcessing ExtractionStatus = "processing"
	StatusCompleted  ExtractionStatus = "completed"
	StatusError      ExtractionStatus = "error"
)

// SourceDocument is the raw upload being extracted. It lives only for the
// duration of one extraction run.
type SourceDocument struct {
	Data     []byte
	MimeType string
	FileName string
}

// IsPDF reports whether the document should go through the page rasterizer.
func (d *SourceDocument) IsPDF() bool {
	if strings.EqualFold(d.MimeType, "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(d.FileName), ".pdf")
}

// Page is one rendered page of a source document. Immutable once produced.
type Page struct {
	PageIndex  int     `json:"page_index"`  // 0-based
	PageNumber int     `json:"page_number"` // 1-based, for display
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Image      []byte  `json:"-"`
	Blocks     []Block `json:"blocks"`
	Markdown   string  `json:"markdown,omitempty"`
}

// Block is a detected region of a page.
type Block struct {
	BlockIndex       int    `json:"block_index"`
	GlobalBlockIndex int    `json:"global_block_index"`
	Type             string `json:"type"`
	Text             string `json:"text"`

	// BBox is [x, y, width, height] in page-pixel space.
	BBox [4]float64 `json:"bbox"`
	// OriginalBBox is the provider's [x1, y1, x2, y2] box, when it differs.
	OriginalBBox []float64   `json:"original_bbox,omitempty"`
	Polygon      [][]float64 `json:"polygon,omitempty"`
}

// HasRegion reports whether the block covers a refinable pixel area.
// Zero-area blocks are passed through with their provider text unchanged.
func (b *Block) HasRegion() bool {
	return b.BBox[2] > 0 && b.BBox[3] > 0
}

// PageLayout is one page's normalized output from a layout provider.
type PageLayout struct {
	Blocks   []Block
	Markdown string
}

// LayoutResult is the document-level layout, pages in rendering order.
type LayoutResult struct {
	Pages       []Page `json:"pages"`
	TotalPages  int    `json:"total_pages"`
	TotalBlocks int    `json:"total_blocks"`
	Markdown    string `json:"markdown,omitempty"`

	// Fallback is set when structured layout was unavailable and the result
	// came from whole-page transcription instead.
	Fallback bool `json:"fallback,omitempty"`
}

// BlockExtractionTask is a single block queued for text refinement.
type BlockExtractionTask struct {
	Block     Block
	PageIndex int
	PageImage []byte
	Seed      string // provider OCR text used as fallback and prompt context
}

// BlockExtractionResult is the outcome for one block. A failed refinement
// degrades to the seed text; a block is never dropped.
type BlockExtractionResult struct {
	GlobalBlockIndex int    `json:"global_block_index"`
	PageIndex        int    `json:"page_index"`
	BlockIndex       int    `json:"block_index"`
	Text             string `json:"text"`
	OCRText          string `json:"ocr_text"`
	Error            string `json:"error,omitempty"`
}

// ExtractionJobStatus is the persisted per-job state. The overall status and
// the two pipeline statuses progress independently.
type ExtractionJobStatus struct {
	FileID string `json:"file_id"`
	UserID string `json:"user_id"`

	Overall  ExtractionStatus `json:"extraction_status"`
	FullText ExtractionStatus `json:"gemini_extraction_status"`
	Layout   ExtractionStatus `json:"layout_extraction_status"`

	ErrorMessage         string `json:"error_message,omitempty"`
	FullTextErrorMessage string `json:"gemini_error_message,omitempty"`
	LayoutErrorMessage   string `json:"layout_error_message,omitempty"`

	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// FileRecord is a row from the files table: the upload's metadata plus the
// extraction columns the orchestrator maintains.
type FileRecord struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	MimeType string `json:"mime_type"`

	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	FullTextStatus   ExtractionStatus `json:"gemini_extraction_status"`
	LayoutStatus     ExtractionStatus `json:"layout_extraction_status"`

	UpdatedAt time.Time `json:"updated_at"`
}

// ExtractionMethod selects which layout provider runs as primary for a job.
type ExtractionMethod string

const (
	MethodMinerU ExtractionMethod = "mineru"
	MethodDots   ExtractionMethod = "dots"
)
