package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode classifies application errors.
type ErrorCode string

const (
	// Schema / configuration errors. Fatal, the input must be fixed.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// Parsing errors. Fatal for the page being parsed only.
	ErrCodeExtraction       ErrorCode = "EXTRACTION_ERROR"
	ErrCodeUnknownPageType  ErrorCode = "UNKNOWN_PAGE_TYPE"
	ErrCodePageTypeMismatch ErrorCode = "PAGE_TYPE_MISMATCH"

	// AI collaborator errors.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeRateLimit  ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeAI         ErrorCode = "AI_ERROR"

	// Storage errors.
	ErrCodeDatabase         ErrorCode = "DATABASE_ERROR"
	ErrCodeDuplicateVehicle ErrorCode = "DUPLICATE_VEHICLE"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"

	// Fetching errors.
	ErrCodeScrape ErrorCode = "SCRAPE_ERROR"
)

// AppError is an application error with classification context.
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Retryable  bool                   `json:"retryable"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause adds a cause error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails adds detail text.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithMetadata attaches a metadata key/value pair.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, retryable bool, status int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Timestamp:  time.Now().UTC(),
		Retryable:  retryable,
		HTTPStatus: status,
	}
}

// NewConfigError reports a bad or missing schema/config entry.
func NewConfigError(message string) *AppError {
	return newError(ErrCodeConfig, message, false, http.StatusInternalServerError)
}

// NewExtractionError reports a malformed or missing structured-data payload.
func NewExtractionError(message string) *AppError {
	return newError(ErrCodeExtraction, message, false, http.StatusUnprocessableEntity)
}

// NewUnknownPageTypeError reports that neither auto-detection indicator
// resolved against the payload.
func NewUnknownPageTypeError(siteKey string) *AppError {
	return newError(ErrCodeUnknownPageType, "unable to detect page type", false, http.StatusUnprocessableEntity).
		WithMetadata("site", siteKey)
}

// NewPageTypeMismatchError reports a detected type disagreeing with the
// caller's expectation.
func NewPageTypeMismatchError(expected, detected string) *AppError {
	return newError(ErrCodePageTypeMismatch,
		fmt.Sprintf("expected page type %q, detected %q", expected, detected),
		false, http.StatusUnprocessableEntity)
}

// NewValidationError reports AI output violating its contract. Not
// retryable, needs manual review.
func NewValidationError(message string) *AppError {
	return newError(ErrCodeValidation, message, false, http.StatusBadRequest)
}

// NewRateLimitError reports a provider rate limit. Retryable with backoff.
func NewRateLimitError(message string) *AppError {
	return newError(ErrCodeRateLimit, message, true, http.StatusTooManyRequests)
}

// NewAIError reports a generic AI provider failure. 5xx statuses are
// retryable, 4xx are not.
func NewAIError(message string, status int) *AppError {
	retryable := status >= 500
	return newError(ErrCodeAI, message, retryable, status)
}

// NewDatabaseError reports a storage failure.
func NewDatabaseError(message string) *AppError {
	return newError(ErrCodeDatabase, message, false, http.StatusInternalServerError)
}

// NewDuplicateVehicleError reports an insert colliding on source_url.
func NewDuplicateVehicleError(sourceURL string) *AppError {
	return newError(ErrCodeDuplicateVehicle, "vehicle already exists", false, http.StatusConflict).
		WithMetadata("source_url", sourceURL)
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(message string) *AppError {
	return newError(ErrCodeNotFound, message, false, http.StatusNotFound)
}

// NewScrapeError reports a fetch failure.
func NewScrapeError(message string) *AppError {
	return newError(ErrCodeScrape, message, true, http.StatusBadGateway)
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the error's code, or empty for non-application errors.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsRetryable reports whether the error is worth retrying. Unclassified
// errors are treated as permanent.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
