package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrFileNotFound         = errors.New("file not found")
	ErrAccessDenied         = errors.New("access denied")
	ErrInvalidToken         = errors.New("invalid token")
	ErrJobAlreadyProcessing = errors.New("extraction already in progress")
)

// FetchError means the source bytes could not be retrieved. Fatal to the job.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RenderError means a PDF page could not be rasterized. Fatal to the layout
// pipeline; the whole-document pipeline may still complete on its own.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render page %d: %v", e.Page+1, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ProviderError is a failed call to an external provider. RateLimited
// distinguishes throttling from generic failures; the two drive different
// concurrency-controller signals.
type ProviderError struct {
	Provider    string
	StatusCode  int
	RateLimited bool
	Err         error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError is a failed write to the job-state store. Propagated to the
// caller; the job may be left in "processing" and needs external reconciling.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRateLimitError classifies an error as rate-limiting. Provider clients tag
// their errors explicitly; SDK errors that bubble up untagged are matched on
// the usual throttling markers.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RateLimited
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resourceexhausted") ||
		strings.Contains(msg, "quota exceeded")
}
