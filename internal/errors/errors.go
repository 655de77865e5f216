// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies application errors.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation_error"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeError       ErrorType = "processing_error"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeUnavailable ErrorType = "unavailable"
)

// UnknownError is the text used when a failure carries no message.
const UnknownError = "Unknown error"

// AppError is the error carried between services and the API layer.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // code exposed to API clients
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

// ResponseMessager is implemented by errors that carry the message of a
// remote response payload.
type ResponseMessager interface {
	ResponseMessage() string
}

func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

func NewTimeoutError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, message, originalError)
}

// NewUnavailableError marks a collaborator that is unreachable or unhealthy.
func NewUnavailableError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUnavailable, message, originalError)
}

func IsValidationError(err error) bool  { return hasType(err, ErrorTypeValidation) }
func IsNotFoundError(err error) bool    { return hasType(err, ErrorTypeNotFound) }
func IsConflictError(err error) bool    { return hasType(err, ErrorTypeConflict) }
func IsTimeoutError(err error) bool     { return hasType(err, ErrorTypeTimeout) }
func IsUnavailableError(err error) bool { return hasType(err, ErrorTypeUnavailable) }

// TypeOf returns the type of the outermost AppError in the chain, or an empty string.
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ""
}

func hasType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// FormatError turns a failure into display text. A message from a remote
// response payload wins over the error's own message; nil or empty errors
// yield UnknownError.
func FormatError(err error) string {
	if err == nil {
		return UnknownError
	}

	var responseError ResponseMessager
	if errors.As(err, &responseError) {
		if message := strings.TrimSpace(responseError.ResponseMessage()); message != "" {
			return message
		}
	}

	if message := strings.TrimSpace(err.Error()); message != "" {
		return message
	}
	return UnknownError
}

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
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError adds context to err. An AppError keeps its type and code.
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
