package util

import (
	"errors"
	"net/http"
)

// AppError represents an application error with an HTTP status code.
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Common error codes
const (
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenInvalid       = "TOKEN_INVALID"
	ErrCodeBotNotFound        = "BOT_NOT_FOUND"
	ErrCodeQueueRejected      = "QUEUE_REJECTED"
)

// NewAppError creates a new application error.
func NewAppError(statusCode int, code, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// WrapError wraps an existing error.
func WrapError(statusCode int, code, message string, err error) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Err:        err,
	}
}

// Common error constructors

func ErrBadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, ErrCodeBadRequest, message)
}

func ErrUnauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func ErrForbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, ErrCodeForbidden, message)
}

func ErrNotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, ErrCodeNotFound, message)
}

func ErrConflict(message string) *AppError {
	return NewAppError(http.StatusConflict, ErrCodeConflict, message)
}

func ErrValidation(message string) *AppError {
	return NewAppError(http.StatusBadRequest, ErrCodeValidation, message)
}

func ErrInternalServer(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, ErrCodeInternal, message)
}

// GetAppError extracts an AppError from an error chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
