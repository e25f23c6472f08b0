package domain

import (
	"context"
	"time"
)

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetVertexProjectID() string
	GetVertexLocation() string
	GetVisionModelName() string
	GetPrimaryLayoutURL() string
	GetPrimaryLayoutKey() string
	GetSecondaryLayoutURL() string
	GetSecondaryLayoutKey() string
	GetUpscalerURL() string
	GetUpscalerKey() string
	GetExtractionTuning() ExtractionTuning
}

// ExtractionTuning carries the engine's tunable parameters. Defaults match
// observed production behavior; every value can be overridden by environment.
type ExtractionTuning struct {
	RenderScale      float64       // PDF raster scale factor
	PrimaryTimeout   time.Duration // primary layout provider HTTP timeout
	SecondaryTimeout time.Duration // secondary layout provider HTTP timeout
	UpscaleFactor    int           // super-resolution scale requested on retry

	// Quality assessor thresholds
	MinDocChars           int
	MaxEmptyBlockRatio    float64
	MinAvgCharsPerBlock   float64
	SparseEmptyBlockRatio float64

	// Adaptive concurrency bounds
	InitialConcurrency int
	MinConcurrency     int
	MaxConcurrency     int

	// Block refinement retry policy
	RetryBaseDelay time.Duration
	MaxRetries     int
}

// PageRenderer turns a source document into per-page raster images.
type PageRenderer interface {
	// Render rasterizes every PDF page in order; a failure on any page aborts
	// the whole render.
	Render(pdfBytes []byte) ([]Page, error)
	// SinglePage synthesizes the one-page list for non-PDF input.
	SinglePage(imageBytes []byte) []Page
}

// LayoutProvider returns structured blocks plus optional markdown for one
// page image. Implementations normalize their wire shapes into PageLayout;
// provider-specific field names never leak past this boundary.
type LayoutProvider interface {
	Name() string
	ExtractLayout(ctx context.Context, image []byte, fileName, mimeType string) (*PageLayout, error)
}

// ImageUpscaler runs a page image through super-resolution and returns the
// upscaled bytes, already re-fetched from the provider's result URL.
type ImageUpscaler interface {
	Upscale(ctx context.Context, image []byte, mimeType string, scale int) ([]byte, error)
}

// VisionModel answers a text prompt about a single image.
type VisionModel interface {
	Transcribe(ctx context.Context, prompt string, image []byte) (string, error)
}

// FileFetcher retrieves raw bytes and an inferred MIME type for a stored file.
type FileFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// ExtractionJobRepository is the read/write contract with the job-state store.
type ExtractionJobRepository interface {
	GetFile(fileID, userID string, token string) (*FileRecord, error)
	// UpsertStatus inserts the status record if absent, else updates it.
	UpsertStatus(status *ExtractionJobStatus, token string) error
	SaveLayoutResult(fileID string, layoutData, extractedText []byte, token string) error
	SaveFullText(fileID, fullText string, token string) error
}

// ExtractionService runs extraction jobs.
type ExtractionService interface {
	// StartExtraction validates the request, rejects duplicates, and runs the
	// job in the background. Returns the run ID.
	StartExtraction(fileID, userID string, method ExtractionMethod, token string) (string, error)
	// ExtractDocumentFile runs one extraction job to completion.
	ExtractDocumentFile(ctx context.Context, fileID, userID string, method ExtractionMethod, token string) error
	// GetStatus reads the persisted status record for a file.
	GetStatus(fileID, userID string, token string) (*FileRecord, error)
}
