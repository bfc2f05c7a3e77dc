package models

import (
	"errors"
	"fmt"
)

// Error codes used in batch reports, API responses and internal error handling.
const (
	ErrCodeTimeout         = "SCRAPE_TIMEOUT"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeControlNotFound = "CONTROL_NOT_FOUND"
	ErrCodeTableNotFound   = "TABLE_NOT_FOUND"
	ErrCodeEmptyResult     = "EMPTY_RESULT"
	ErrCodeBrowserCrash    = "BROWSER_CRASH"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in reports and API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to a report-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsScrapeError finds the outermost ScrapeError in err's chain. Errors that
// carry no code are wrapped as INTERNAL_ERROR.
func AsScrapeError(err error) *ScrapeError {
	if err == nil {
		return nil
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return NewScrapeError(ErrCodeInternal, err.Error(), err)
}

// CodeOf returns the error code carried by err, or "" for a nil error.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return AsScrapeError(err).Code
}
