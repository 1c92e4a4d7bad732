package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
)

// Extraction errors. These end up as the error message of a failed
// ExtractionResult rather than being returned to callers.
var (
	ErrUnsupportedType       = errors.New("unsupported document type")
	ErrEmptyDocument         = errors.New("empty document")
	ErrInsufficientText      = errors.New("insufficient text extracted")
	ErrProviderTimeout       = errors.New("provider timed out")
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrProviderPanic         = errors.New("provider panicked")
	ErrAllProvidersFailed    = errors.New("all extraction methods failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
