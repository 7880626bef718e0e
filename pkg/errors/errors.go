// Package errors defines the API error type and the codes clients see.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	ErrCodeMediaUnavailable ErrorCode = "MEDIA_UNAVAILABLE"
	ErrCodeUnknownOverlay   ErrorCode = "UNKNOWN_OVERLAY"
	ErrCodeNotOpen          ErrorCode = "SESSION_NOT_OPEN"
	ErrCodeEncoderFault     ErrorCode = "ENCODER_FAULT"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeInvalidInput:       http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeRateLimit:          http.StatusTooManyRequests,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeMediaUnavailable:   http.StatusServiceUnavailable,
	ErrCodeUnknownOverlay:     http.StatusNotFound,
	ErrCodeNotOpen:            http.StatusConflict,
	ErrCodeEncoderFault:       http.StatusBadGateway,
}

// StatusOf returns the HTTP status a code is served with. Unknown codes are
// internal errors.
func StatusOf(code ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError is an error with a client-facing code and message. Cause is
// logged but never sent to the client.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds a detail that is returned to the client.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: StatusOf(code),
		Context:    make(map[string]interface{}),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func NewInvalidInputError(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func NewUnauthorizedError(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func NewForbiddenError(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func NewConflictError(message string) *AppError {
	return New(ErrCodeConflict, message)
}

func NewRateLimitError() *AppError {
	return New(ErrCodeRateLimit, "rate limit exceeded")
}

func NewInternalError(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func NewServiceUnavailableError(message string) *AppError {
	return New(ErrCodeServiceUnavailable, message)
}

// NewMediaUnavailableError is returned when no camera could be acquired. The
// message is shown to the operator as is.
func NewMediaUnavailableError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeMediaUnavailable, message)
}

func NewUnknownOverlayError(key string) *AppError {
	return New(ErrCodeUnknownOverlay, fmt.Sprintf("overlay %q not found", key)).WithContext("overlay", key)
}

func NewNotOpenError() *AppError {
	return New(ErrCodeNotOpen, "session is not open")
}

func NewEncoderFaultError(cause error) *AppError {
	return Wrap(cause, ErrCodeEncoderFault, "recording failed")
}

// GetAppError returns the first AppError in err's chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
