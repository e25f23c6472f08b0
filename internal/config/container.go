package config

import (
	"context"
	"fmt"

	"doc-extractor/internal/domain"
	"doc-extractor/internal/providers"
	"doc-extractor/internal/repository"
	"doc-extractor/internal/service"
	"doc-extractor/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config            domain.Config
	Logger            domain.Logger
	SupabaseClient    domain.SupabaseClient
	JobRepository     domain.ExtractionJobRepository
	ExtractionService domain.ExtractionService
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context) (*Container, error) {
	cfg := NewConfig()
	appLogger := logger.NewLogger(cfg.GetLogLevel())
	tuning := cfg.GetExtractionTuning()

	// Persistence
	supabaseClient := repository.NewSupabaseClient(cfg, appLogger)
	if err := supabaseClient.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize supabase client: %w", err)
	}
	jobRepo := repository.NewSupabaseExtractionJobRepository(supabaseClient, appLogger)

	// External providers
	primary := providers.NewMinerUClient(
		cfg.GetPrimaryLayoutURL(), cfg.GetPrimaryLayoutKey(), tuning.PrimaryTimeout, appLogger)
	secondary := providers.NewDotsOCRClient(
		cfg.GetSecondaryLayoutURL(), cfg.GetSecondaryLayoutKey(), tuning.SecondaryTimeout, appLogger)
	upscaler := providers.NewUpscaleClient(cfg.GetUpscalerURL(), cfg.GetUpscalerKey(), appLogger)
	vision, err := providers.NewGeminiVision(
		ctx, cfg.GetVertexProjectID(), cfg.GetVertexLocation(), cfg.GetVisionModelName(), appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision model client: %w", err)
	}
	fetcher := providers.NewHTTPFileFetcher(cfg.GetSupabaseKey())

	// Engine
	rasterizer := service.NewPageRasterizer(tuning.RenderScale, appLogger)
	fallback := service.NewFullDocumentExtractor(vision, appLogger)
	layoutChain := service.NewLayoutExtractionService(
		primary, secondary, upscaler, fallback, rasterizer,
		service.ThresholdsFromTuning(tuning), tuning.UpscaleFactor, appLogger)
	extractionService := service.NewExtractionService(
		jobRepo, fetcher, rasterizer, layoutChain, fallback, vision, tuning, appLogger)

	return &Container{
		Config:            cfg,
		Logger:            appLogger,
		SupabaseClient:    supabaseClient,
		JobRepository:     jobRepo,
		ExtractionService: extractionService,
	}, nil
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}

// GetSupabaseClient returns the Supabase client instance
func (c *Container) GetSupabaseClient() domain.SupabaseClient {
	return c.SupabaseClient
}
