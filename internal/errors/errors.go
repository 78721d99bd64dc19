// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an AppError.
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation_error"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeError           ErrorType = "processing_error"
	ErrorTypeConflict        ErrorType = "conflict"
	ErrorTypeBrokenReference ErrorType = "broken_reference"
)

// AppError is the error shape shared by the engine, the services and the API layer.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // stable code surfaced to API clients
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped error to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError.
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError reports bad author or client input.
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError reports a missing session or resource.
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError reports an internal failure.
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewConflictError reports an operation that is illegal in the current state.
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// BrokenReferenceError is returned by Builder.Build when a choice targets an index
// outside the finished story graph.
type BrokenReferenceError struct {
	SceneIndex  int // scene holding the choice
	ChoiceIndex int // position of the choice in that scene
	TargetIndex int
	SceneCount  int
}

func (e *BrokenReferenceError) Error() string {
	return fmt.Sprintf("scene %d choice %d targets index %d, graph has %d scenes",
		e.SceneIndex, e.ChoiceIndex, e.TargetIndex, e.SceneCount)
}

// NewBrokenReferenceError wraps ref in a broken_reference AppError.
func NewBrokenReferenceError(ref *BrokenReferenceError) *AppError {
	return NewAppError(ErrorTypeBrokenReference, "broken choice reference", ref)
}

// IsValidationError reports whether err is a validation AppError.
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsNotFoundError reports whether err is a not_found AppError.
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsConflictError reports whether err is a conflict AppError.
func IsConflictError(err error) bool {
	return hasType(err, ErrorTypeConflict)
}

// IsBrokenReferenceError reports whether err carries a BrokenReferenceError.
func IsBrokenReferenceError(err error) bool {
	var ref *BrokenReferenceError
	return errors.As(err, &ref)
}

func hasType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// generateErrorCode maps an error type to its API code.
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeBrokenReference:
		return "BROKEN_REFERENCE"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError adds context to err, keeping the type of an existing AppError.
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return &AppError{
			Type:    appError.Type,
			Message: message,
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
