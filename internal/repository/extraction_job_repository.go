package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"doc-extractor/internal/domain"
)

// filesTable holds one row per uploaded file, including the extraction status
// columns the orchestrator maintains.
const filesTable = "files"

// SupabaseExtractionJobRepository implements domain.ExtractionJobRepository
// against the Supabase files table.
type SupabaseExtractionJobRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

// NewSupabaseExtractionJobRepository creates the job-state repository.
func NewSupabaseExtractionJobRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.ExtractionJobRepository {
	return &SupabaseExtractionJobRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// GetFile reads one file row by id and owner.
func (r *SupabaseExtractionJobRepository) GetFile(fileID, userID string, token string) (*domain.FileRecord, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From(filesTable).
		Select("*", "", false).
		Eq("id", fileID).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrFileNotFound
	}

	return mapToFileRecord(rows[0]), nil
}

// UpsertStatus inserts the status record if absent, else updates it.
func (r *SupabaseExtractionJobRepository) UpsertStatus(status *domain.ExtractionJobStatus, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return &domain.PersistenceError{Op: "status upsert", Err: err}
	}

	row := map[string]interface{}{
		"id":                       status.FileID,
		"user_id":                  status.UserID,
		"extraction_status":        string(status.Overall),
		"gemini_extraction_status": string(status.FullText),
		"layout_extraction_status": string(status.Layout),
		"error_message":            nullable(status.ErrorMessage),
		"gemini_error_message":     nullable(status.FullTextErrorMessage),
		"layout_error_message":     nullable(status.LayoutErrorMessage),
		"updated_at":               status.UpdatedAt.Format(time.RFC3339),
	}
	if status.CompletedAt != nil {
		row["completed_at"] = status.CompletedAt.Format(time.RFC3339)
	}

	_, _, err = client.From(filesTable).Insert(row, true, "id", "", "").Execute()
	if err != nil {
		r.logger.Error("Failed to upsert extraction status", err, "file_id", status.FileID)
		return &domain.PersistenceError{Op: "status upsert", Err: err}
	}
	return nil
}

// SaveLayoutResult persists the structured layout and the refined block texts.
func (r *SupabaseExtractionJobRepository) SaveLayoutResult(fileID string, layoutData, extractedText []byte, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return &domain.PersistenceError{Op: "layout save", Err: err}
	}

	row := map[string]interface{}{
		"layout_data":    json.RawMessage(layoutData),
		"extracted_text": json.RawMessage(extractedText),
		"updated_at":     time.Now().UTC().Format(time.RFC3339),
	}

	_, _, err = client.From(filesTable).Update(row, "", "").Eq("id", fileID).Execute()
	if err != nil {
		r.logger.Error("Failed to save layout result", err, "file_id", fileID)
		return &domain.PersistenceError{Op: "layout save", Err: err}
	}
	return nil
}

// SaveFullText persists the whole-document transcription.
func (r *SupabaseExtractionJobRepository) SaveFullText(fileID, fullText string, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return &domain.PersistenceError{Op: "full-text save", Err: err}
	}

	row := map[string]interface{}{
		"gemini_full_text": fullText,
		"updated_at":       time.Now().UTC().Format(time.RFC3339),
	}

	_, _, err = client.From(filesTable).Update(row, "", "").Eq("id", fileID).Execute()
	if err != nil {
		r.logger.Error("Failed to save full text", err, "file_id", fileID)
		return &domain.PersistenceError{Op: "full-text save", Err: err}
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func mapToFileRecord(row map[string]interface{}) *domain.FileRecord {
	rec := &domain.FileRecord{
		ID:               stringField(row, "id"),
		UserID:           stringField(row, "user_id"),
		FileName:         stringField(row, "file_name"),
		FileURL:          stringField(row, "file_url"),
		MimeType:         stringField(row, "mime_type"),
		ExtractionStatus: domain.ExtractionStatus(stringField(row, "extraction_status")),
		FullTextStatus:   domain.ExtractionStatus(stringField(row, "gemini_extraction_status")),
		LayoutStatus:     domain.ExtractionStatus(stringField(row, "layout_extraction_status")),
	}
	if raw := stringField(row, "updated_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			rec.UpdatedAt = t
		}
	}
	return rec
}

func stringField(row map[string]interface{}, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}
