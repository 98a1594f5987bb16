package errors

import (
	"errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the labelcompose worker
 *
 * Collaborator failures (reading the source, OCR, writing the output) abort a
 * run and are terminal for the queue. Empty extraction and ambiguous
 * classification are not errors.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Collaborator errors
	ErrorSourceReadFailed  ErrorCode = "SOURCE_READ_FAILED"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorComposeFailed     ErrorCode = "COMPOSE_FAILED"

	// Worker errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorCatalogFailed     ErrorCode = "CATALOG_FAILED"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
	ErrorInvalidPayload    ErrorCode = "INVALID_PAYLOAD"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Terminal reports whether retrying the job cannot succeed
func (e *ProcessingError) Terminal() bool {
	switch e.Code {
	case ErrorSourceReadFailed, ErrorOCRFailed, ErrorUnsupportedFormat, ErrorComposeFailed, ErrorInvalidPayload:
		return true
	}
	return false
}

func newError(code ErrorCode, jobID, message string, details map[string]interface{}, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      code,
		Message:   message,
		JobID:     jobID,
		Timestamp: time.Now(),
		Details:   details,
		Cause:     cause,
	}
}

// Factory functions for common errors

func NewSourceReadError(jobID string, path string, cause error) *ProcessingError {
	return newError(ErrorSourceReadFailed, jobID,
		fmt.Sprintf("Failed to read source document: %s", path),
		map[string]interface{}{"path": path}, cause)
}

func NewOCRFailedError(jobID string, page int, cause error) *ProcessingError {
	return newError(ErrorOCRFailed, jobID,
		fmt.Sprintf("OCR failed on page %d", page+1),
		map[string]interface{}{"page": page + 1}, cause)
}

func NewUnsupportedFormatError(jobID string, filename string, cause error) *ProcessingError {
	return newError(ErrorUnsupportedFormat, jobID,
		fmt.Sprintf("Unsupported file format: %s", filename),
		map[string]interface{}{"filename": filename}, cause)
}

func NewComposeFailedError(jobID string, outputPath string, cause error) *ProcessingError {
	return newError(ErrorComposeFailed, jobID,
		fmt.Sprintf("Failed to write output document: %s", outputPath),
		map[string]interface{}{"output_path": outputPath}, cause)
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return newError(ErrorProcessingTimeout, jobID,
		fmt.Sprintf("Processing timed out after %v", duration),
		map[string]interface{}{"timeout_duration": duration.String()}, cause)
}

func NewCatalogFailedError(jobID string, source string, cause error) *ProcessingError {
	return newError(ErrorCatalogFailed, jobID,
		fmt.Sprintf("Failed to load product catalog from %s", source),
		map[string]interface{}{"source": source}, cause)
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return newError(ErrorStorageFailed, jobID, "Failed to store processing results", nil, cause)
}

// NewInvalidPayloadError has no job id; the payload could not be decoded
func NewInvalidPayloadError(taskType string, cause error) *ProcessingError {
	return newError(ErrorInvalidPayload, "",
		fmt.Sprintf("Invalid payload for task %s", taskType),
		map[string]interface{}{"task_type": taskType}, cause)
}

// CodeOf returns the code of the first ProcessingError in err's chain
func CodeOf(err error) (ErrorCode, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

// IsTerminal reports whether err carries a terminal ProcessingError
func IsTerminal(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe) && pe.Terminal()
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
