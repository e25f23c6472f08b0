package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"doc-extractor/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ExtractionService is the dual-pipeline job orchestrator. One extraction run
// drives two independent pipelines: whole-document transcription and
// layout+block refinement. Their failures are isolated; the job completes if
// at least one succeeds.
type ExtractionService struct {
	repo       domain.ExtractionJobRepository
	fetcher    domain.FileFetcher
	rasterizer domain.PageRenderer
	layout     *LayoutExtractionService
	fallback   *FullDocumentExtractor
	model      domain.VisionModel
	tuning     domain.ExtractionTuning
	logger     domain.Logger
}

// NewExtractionService wires the orchestrator.
func NewExtractionService(
	repo domain.ExtractionJobRepository,
	fetcher domain.FileFetcher,
	rasterizer domain.PageRenderer,
	layout *LayoutExtractionService,
	fallback *FullDocumentExtractor,
	model domain.VisionModel,
	tuning domain.ExtractionTuning,
	logger domain.Logger,
) *ExtractionService {
	return &ExtractionService{
		repo:       repo,
		fetcher:    fetcher,
		rasterizer: rasterizer,
		layout:     layout,
		fallback:   fallback,
		model:      model,
		tuning:     tuning,
		logger:     logger,
	}
}

// StartExtraction validates the request, rejects duplicates, and launches the
// job in the background. Returns the run ID.
func (s *ExtractionService) StartExtraction(fileID, userID string, method domain.ExtractionMethod, token string) (string, error) {
	rec, err := s.repo.GetFile(fileID, userID, token)
	if err != nil {
		return "", err
	}
	if rec.ExtractionStatus == domain.StatusProcessing {
		return "", domain.ErrJobAlreadyProcessing
	}

	runID := uuid.New().String()
	go func() {
		if err := s.ExtractDocumentFile(context.Background(), fileID, userID, method, token); err != nil {
			s.logger.Error("Extraction run failed", err, "run_id", runID, "file_id", fileID)
		}
	}()

	s.logger.Info("Extraction run started", "run_id", runID, "file_id", fileID, "method", string(method))
	return runID, nil
}

// GetStatus reads the persisted status record for a file.
func (s *ExtractionService) GetStatus(fileID, userID string, token string) (*domain.FileRecord, error) {
	return s.repo.GetFile(fileID, userID, token)
}

// ExtractDocumentFile runs one extraction job to completion. The persisted
// status record is the sole channel to the caller: under normal operation no
// error crosses this boundary except storage-fetch and persistence failures.
func (s *ExtractionService) ExtractDocumentFile(ctx context.Context, fileID, userID string, method domain.ExtractionMethod, token string) error {
	rec, err := s.repo.GetFile(fileID, userID, token)
	if err != nil {
		return err
	}
	if rec.ExtractionStatus == domain.StatusProcessing {
		return domain.ErrJobAlreadyProcessing
	}

	status := &domain.ExtractionJobStatus{
		FileID:    fileID,
		UserID:    userID,
		Overall:   domain.StatusProcessing,
		FullText:  domain.StatusProcessing,
		Layout:    domain.StatusProcessing,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.repo.UpsertStatus(status, token); err != nil {
		return err
	}

	data, mime, err := s.fetcher.Fetch(ctx, rec.FileURL)
	if err != nil {
		s.failJob(status, fmt.Sprintf("failed to fetch source file: %v", err), token)
		return err
	}
	if mime == "" {
		mime = rec.MimeType
	}

	doc := &domain.SourceDocument{
		Data:     data,
		MimeType: mime,
		FileName: rec.FileName,
	}

	// Fire-and-collect: both pipelines always run to completion, neither
	// cancels the other. Errors are captured per pipeline, not returned
	// through the group. The mutex serializes each pipeline's settle on the
	// shared status record.
	var statusMu sync.Mutex
	var fullTextErr, layoutErr error
	g := new(errgroup.Group)
	g.Go(func() error {
		fullTextErr = s.runFullTextPipeline(ctx, fileID, doc, status, &statusMu, token)
		return nil
	})
	g.Go(func() error {
		layoutErr = s.runLayoutPipeline(ctx, fileID, doc, method, status, &statusMu, token)
		return nil
	})
	_ = g.Wait()

	now := time.Now().UTC()
	status.UpdatedAt = now
	status.CompletedAt = &now

	switch {
	case fullTextErr == nil || layoutErr == nil:
		// Partial success still completes the job.
		status.Overall = domain.StatusCompleted
	default:
		status.Overall = domain.StatusError
		status.ErrorMessage = fmt.Sprintf("full-text pipeline: %v; layout pipeline: %v", fullTextErr, layoutErr)
	}

	if err := s.repo.UpsertStatus(status, token); err != nil {
		return err
	}

	s.logger.Info("Extraction job finished",
		"file_id", fileID,
		"status", string(status.Overall),
		"full_text_status", string(status.FullText),
		"layout_status", string(status.Layout))
	return nil
}

// runFullTextPipeline transcribes the whole document page by page and
// persists the concatenated text.
func (s *ExtractionService) runFullTextPipeline(ctx context.Context, fileID string, doc *domain.SourceDocument, status *domain.ExtractionJobStatus, statusMu *sync.Mutex, token string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("full-text pipeline panicked: %v", r)
		}
		s.finishPipeline(&status.FullText, &status.FullTextErrorMessage, err, status, statusMu, token)
	}()

	var pages []domain.Page
	if doc.IsPDF() {
		pages, err = s.rasterizer.Render(doc.Data)
		if err != nil {
			return err
		}
	} else {
		pages = s.rasterizer.SinglePage(doc.Data)
	}

	result, err := s.fallback.Extract(ctx, pages)
	if err != nil {
		return err
	}

	if err := s.repo.SaveFullText(fileID, result.Markdown, token); err != nil {
		return err
	}
	return nil
}

// runLayoutPipeline runs the layout chain and block refinement and persists
// the structured result.
func (s *ExtractionService) runLayoutPipeline(ctx context.Context, fileID string, doc *domain.SourceDocument, method domain.ExtractionMethod, status *domain.ExtractionJobStatus, statusMu *sync.Mutex, token string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("layout pipeline panicked: %v", r)
		}
		s.finishPipeline(&status.Layout, &status.LayoutErrorMessage, err, status, statusMu, token)
	}()

	layout, err := s.layout.Extract(ctx, doc, method)
	if err != nil {
		return err
	}

	controller := NewAdaptiveConcurrencyController(
		s.tuning.InitialConcurrency, s.tuning.MinConcurrency, s.tuning.MaxConcurrency)
	scheduler := NewBlockScheduler(s.model, controller, s.tuning.RetryBaseDelay, s.tuning.MaxRetries, s.logger)

	tasks := buildBlockTasks(layout)
	results := scheduler.Run(ctx, tasks)
	mergeBlockResults(layout, results)

	layoutData, err := json.Marshal(layout)
	if err != nil {
		return fmt.Errorf("failed to marshal layout data: %w", err)
	}
	extractedText, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal extracted text: %w", err)
	}

	if err := s.repo.SaveLayoutResult(fileID, layoutData, extractedText, token); err != nil {
		return err
	}
	return nil
}

// finishPipeline records one pipeline's terminal state. Pipeline status is
// persisted as soon as it settles so an observer sees each side progress
// independently. Both pipelines settle against the same record, so the field
// writes and the snapshot happen under the mutex; the snapshot is what gets
// persisted, keeping the written row internally consistent.
func (s *ExtractionService) finishPipeline(field *domain.ExtractionStatus, errField *string, err error, status *domain.ExtractionJobStatus, statusMu *sync.Mutex, token string) {
	statusMu.Lock()
	if err != nil {
		*field = domain.StatusError
		*errField = err.Error()
	} else {
		*field = domain.StatusCompleted
	}
	status.UpdatedAt = time.Now().UTC()
	snapshot := *status
	statusMu.Unlock()

	if perr := s.repo.UpsertStatus(&snapshot, token); perr != nil {
		s.logger.Error("Failed to persist pipeline status", perr, "file_id", snapshot.FileID)
	}
}

// failJob marks every status field failed; used for fatal pre-pipeline errors.
func (s *ExtractionService) failJob(status *domain.ExtractionJobStatus, message, token string) {
	now := time.Now().UTC()
	status.Overall = domain.StatusError
	status.FullText = domain.StatusError
	status.Layout = domain.StatusError
	status.ErrorMessage = message
	status.UpdatedAt = now
	status.CompletedAt = &now
	if err := s.repo.UpsertStatus(status, token); err != nil {
		s.logger.Error("Failed to persist job failure", err, "file_id", status.FileID)
	}
}

// buildBlockTasks queues every block across the document for refinement, each
// seeded with its provider OCR text.
func buildBlockTasks(layout *domain.LayoutResult) []domain.BlockExtractionTask {
	tasks := make([]domain.BlockExtractionTask, 0, layout.TotalBlocks)
	for _, page := range layout.Pages {
		for _, block := range page.Blocks {
			tasks = append(tasks, domain.BlockExtractionTask{
				Block:     block,
				PageIndex: page.PageIndex,
				PageImage: page.Image,
				Seed:      block.Text,
			})
		}
	}
	return tasks
}

// mergeBlockResults writes refined text back into the layout's blocks.
// Results and blocks share document order by GlobalBlockIndex.
func mergeBlockResults(layout *domain.LayoutResult, results []domain.BlockExtractionResult) {
	byIndex := make(map[int]domain.BlockExtractionResult, len(results))
	for _, r := range results {
		byIndex[r.GlobalBlockIndex] = r
	}
	for p := range layout.Pages {
		for b := range layout.Pages[p].Blocks {
			block := &layout.Pages[p].Blocks[b]
			if r, ok := byIndex[block.GlobalBlockIndex]; ok && r.Text != "" {
				block.Text = r.Text
			}
		}
	}
}
