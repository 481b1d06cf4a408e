package utils

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies an AppError independently of its HTTP status.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindExtraction ErrorKind = "extraction"
	KindGeneration ErrorKind = "generation"
	KindRateLimit  ErrorKind = "rate_limit"
	KindStore      ErrorKind = "store"
	KindInternal   ErrorKind = "internal"
)

// AppError is the error type handlers know how to render.
type AppError struct {
	StatusCode int
	Kind       ErrorKind
	Message    string
	Err        error

	// RetryAfter is only set for rate limit errors.
	RetryAfter time.Duration
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewBadRequestError(message string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Kind: KindValidation, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Kind: KindNotFound, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{StatusCode: http.StatusConflict, Kind: KindConflict, Message: message}
}

func NewInternalError(message string) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Kind: KindInternal, Message: message}
}

func NewStoreError(message string, err error) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Kind: KindStore, Message: message, Err: err}
}

func NewExtractionFailedError(message string, err error) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Kind: KindExtraction, Message: message, Err: err}
}

func NewGenerationFailedError(message string, err error) *AppError {
	return &AppError{StatusCode: http.StatusBadGateway, Kind: KindGeneration, Message: message, Err: err}
}

func NewRateLimitError(retryAfter time.Duration) *AppError {
	e := &AppError{
		StatusCode: http.StatusTooManyRequests,
		Kind:       KindRateLimit,
		RetryAfter: retryAfter,
	}
	e.Message = fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", e.RetryAfterSeconds())
	return e
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one.
func (e *AppError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// IsKind reports whether err wraps an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
