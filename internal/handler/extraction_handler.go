// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"doc-extractor/internal/domain"

	"github.com/gorilla/mux"
)

// ExtractionHandler handles extraction-related HTTP requests
type ExtractionHandler struct {
	extractionService domain.ExtractionService
	logger            domain.Logger
}

// NewExtractionHandler creates a new extraction handler
func NewExtractionHandler(extractionService domain.ExtractionService, logger domain.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		extractionService: extractionService,
		logger:            logger,
	}
}

type startExtractionRequest struct {
	Method string `json:"method,omitempty"`
}

// StartExtraction accepts an extraction request for a file and runs it in the
// background. A job already processing is rejected with 409.
func (h *ExtractionHandler) StartExtraction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	fileID := vars["id"]
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "File ID is required")
		return
	}

	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, ok := GetTokenFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Token not found in context")
		return
	}

	var req startExtractionRequest
	if r.Body != nil {
		// Body is optional; absence means the default method.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	method := domain.MethodMinerU
	switch req.Method {
	case "", string(domain.MethodMinerU):
	case string(domain.MethodDots):
		method = domain.MethodDots
	default:
		writeError(w, http.StatusBadRequest, "Unknown extraction method: "+req.Method)
		return
	}

	runID, err := h.extractionService.StartExtraction(fileID, user.ID, method, token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobAlreadyProcessing):
			writeError(w, http.StatusConflict, "Extraction already in progress")
		case errors.Is(err, domain.ErrFileNotFound):
			writeError(w, http.StatusNotFound, "File not found")
		default:
			h.logger.Error("Failed to start extraction", err, "file_id", fileID)
			writeError(w, http.StatusInternalServerError, "Failed to start extraction")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id":  runID,
		"file_id": fileID,
		"status":  string(domain.StatusProcessing),
	})
}

// GetExtractionStatus returns the persisted status record for a file.
func (h *ExtractionHandler) GetExtractionStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	fileID := vars["id"]
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "File ID is required")
		return
	}

	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found in context")
		return
	}
	token, ok := GetTokenFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Token not found in context")
		return
	}

	rec, err := h.extractionService.GetStatus(fileID, user.ID, token)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		h.logger.Error("Failed to read extraction status", err, "file_id", fileID)
		writeError(w, http.StatusInternalServerError, "Failed to read extraction status")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
