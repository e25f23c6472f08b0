package service

import (
	"context"
	"sync"

	"doc-extractor/internal/domain"
)

// Mock implementations for testing

type MockLogger struct{}

func (l *MockLogger) Info(msg string, fields ...interface{})             {}
func (l *MockLogger) Error(msg string, err error, fields ...interface{}) {}
func (l *MockLogger) Debug(msg string, fields ...interface{})            {}
func (l *MockLogger) Warn(msg string, fields ...interface{})             {}

// MockVisionModel answers Transcribe from a scripted function, counting calls.
type MockVisionModel struct {
	mu         sync.Mutex
	calls      int
	transcribe func(call int, prompt string, image []byte) (string, error)
}

func (m *MockVisionModel) Transcribe(ctx context.Context, prompt string, image []byte) (string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	fn := m.transcribe
	m.mu.Unlock()
	if fn == nil {
		return "transcribed", nil
	}
	return fn(call, prompt, image)
}

func (m *MockVisionModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockLayoutProvider returns scripted layouts per call.
type MockLayoutProvider struct {
	mu      sync.Mutex
	name    string
	calls   int
	extract func(call int, image []byte) (*domain.PageLayout, error)
}

func (m *MockLayoutProvider) Name() string {
	if m.name == "" {
		return "mock-layout"
	}
	return m.name
}

func (m *MockLayoutProvider) ExtractLayout(ctx context.Context, image []byte, fileName, mimeType string) (*domain.PageLayout, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()
	return m.extract(call, image)
}

func (m *MockLayoutProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type MockUpscaler struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *MockUpscaler) Upscale(ctx context.Context, image []byte, mimeType string, scale int) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	upscaled := append([]byte("up:"), image...)
	return upscaled, nil
}

func (m *MockUpscaler) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockRenderer fabricates pages without touching a real PDF engine.
type MockRenderer struct {
	pages     int
	renderErr error
}

func (m *MockRenderer) Render(pdfBytes []byte) ([]domain.Page, error) {
	if m.renderErr != nil {
		return nil, m.renderErr
	}
	n := m.pages
	if n == 0 {
		n = 1
	}
	pages := make([]domain.Page, n)
	for i := range pages {
		pages[i] = domain.Page{PageIndex: i, PageNumber: i + 1, Image: pdfBytes}
	}
	return pages, nil
}

func (m *MockRenderer) SinglePage(imageBytes []byte) []domain.Page {
	return []domain.Page{{PageIndex: 0, PageNumber: 1, Image: imageBytes}}
}

// MockJobRepository keeps everything in memory and records writes in order.
type MockJobRepository struct {
	mu       sync.Mutex
	files    map[string]*domain.FileRecord
	statuses []domain.ExtractionJobStatus
	layouts  map[string][]byte
	texts    map[string]string

	getFileErr error
	upsertErr  error
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		files:   make(map[string]*domain.FileRecord),
		layouts: make(map[string][]byte),
		texts:   make(map[string]string),
	}
}

func (m *MockJobRepository) GetFile(fileID, userID string, token string) (*domain.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getFileErr != nil {
		return nil, m.getFileErr
	}
	rec, ok := m.files[fileID]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockJobRepository) UpsertStatus(status *domain.ExtractionJobStatus, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.statuses = append(m.statuses, *status)
	return nil
}

func (m *MockJobRepository) SaveLayoutResult(fileID string, layoutData, extractedText []byte, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layouts[fileID] = layoutData
	return nil
}

func (m *MockJobRepository) SaveFullText(fileID, fullText string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[fileID] = fullText
	return nil
}

func (m *MockJobRepository) LastStatus() *domain.ExtractionJobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return nil
	}
	last := m.statuses[len(m.statuses)-1]
	return &last
}

type MockFetcher struct {
	data []byte
	mime string
	err  error
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.data, m.mime, nil
}
