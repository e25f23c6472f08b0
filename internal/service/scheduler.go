package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"doc-extractor/internal/domain"

	"github.com/avast/retry-go/v4"
)

// BlockScheduler refines every detected block's text against the vision
// model with bounded, adaptively-sized parallelism. Block failures never
// escalate past their own block: exhausted retries degrade to the seed OCR
// text with the error recorded.
type BlockScheduler struct {
	model      domain.VisionModel
	controller *AdaptiveConcurrencyController
	baseDelay  time.Duration
	maxRetries int
	logger     domain.Logger
}

// NewBlockScheduler creates a scheduler. The controller is shared with every
// task spawned by Run and resized between admissions.
func NewBlockScheduler(
	model domain.VisionModel,
	controller *AdaptiveConcurrencyController,
	baseDelay time.Duration,
	maxRetries int,
	logger domain.Logger,
) *BlockScheduler {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &BlockScheduler{
		model:      model,
		controller: controller,
		baseDelay:  baseDelay,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Run processes all tasks and returns one result per task, sorted by
// GlobalBlockIndex regardless of completion order. Tasks whose block has no
// refinable region bypass the queue and are emitted with their seed text.
func (s *BlockScheduler) Run(ctx context.Context, tasks []domain.BlockExtractionTask) []domain.BlockExtractionResult {
	results := make([]domain.BlockExtractionResult, 0, len(tasks))

	queue := make([]domain.BlockExtractionTask, 0, len(tasks))
	for _, t := range tasks {
		if !t.Block.HasRegion() {
			results = append(results, domain.BlockExtractionResult{
				GlobalBlockIndex: t.Block.GlobalBlockIndex,
				PageIndex:        t.PageIndex,
				BlockIndex:       t.Block.BlockIndex,
				Text:             t.Seed,
				OCRText:          t.Seed,
			})
			continue
		}
		queue = append(queue, t)
	}

	done := make(chan domain.BlockExtractionResult)
	inFlight := 0
	next := 0

	for next < len(queue) || inFlight > 0 {
		// Admit up to the controller's current limit, re-read every pass so
		// the pool resizes as completions adjust it.
		for next < len(queue) && inFlight < s.controller.Limit() {
			task := queue[next]
			next++
			inFlight++
			go func(t domain.BlockExtractionTask) {
				done <- s.extractBlock(ctx, t)
			}(task)
		}

		results = append(results, <-done)
		inFlight--
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].GlobalBlockIndex < results[j].GlobalBlockIndex
	})

	return results
}

// extractBlock runs one refinement call with exponential backoff. Every
// failed attempt feeds the controller; the classification decides whether it
// counts as load (rate limit) or noise.
func (s *BlockScheduler) extractBlock(ctx context.Context, task domain.BlockExtractionTask) domain.BlockExtractionResult {
	result := domain.BlockExtractionResult{
		GlobalBlockIndex: task.Block.GlobalBlockIndex,
		PageIndex:        task.PageIndex,
		BlockIndex:       task.Block.BlockIndex,
		OCRText:          task.Seed,
	}

	prompt := blockRefinementPrompt(task)

	var text string
	err := retry.Do(
		func() error {
			out, err := s.model.Transcribe(ctx, prompt, task.PageImage)
			if err != nil {
				return err
			}
			text = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.maxRetries)+1),
		retry.Delay(s.baseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			s.recordFailure(err)
			s.logger.Warn("Block extraction attempt failed, retrying",
				"block", task.Block.GlobalBlockIndex, "attempt", attempt+1, "error", err)
		}),
	)
	if err != nil {
		// The final attempt's failure is not seen by OnRetry.
		s.recordFailure(err)
		s.logger.Warn("Block extraction exhausted retries, degrading to OCR text",
			"block", task.Block.GlobalBlockIndex, "error", err)
		result.Text = task.Seed
		result.Error = err.Error()
		return result
	}

	s.controller.OnSuccess()
	result.Text = text
	return result
}

func (s *BlockScheduler) recordFailure(err error) {
	if domain.IsRateLimitError(err) {
		s.controller.OnRateLimit()
	} else {
		s.controller.OnError()
	}
}

func blockRefinementPrompt(task domain.BlockExtractionTask) string {
	prompt := fmt.Sprintf(
		"Read the region of this page image at [x=%.0f, y=%.0f, width=%.0f, height=%.0f] (pixel coordinates) "+
			"and return the exact text it contains, preserving line breaks. Output the text only.",
		task.Block.BBox[0], task.Block.BBox[1], task.Block.BBox[2], task.Block.BBox[3])
	if task.Seed != "" {
		prompt += fmt.Sprintf("\n\nA prior OCR pass read this region as:\n%s\n\nCorrect any OCR mistakes.", task.Seed)
	}
	return prompt
}
