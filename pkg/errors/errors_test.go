package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	err := New(ErrCodeInvalidInput, "width must be > 0")
	if got, want := err.Error(), "INVALID_INPUT: width must be > 0"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	cause := errors.New("device busy")
	wrapped := Wrap(cause, ErrCodeMediaUnavailable, "camera is not available")
	if !strings.Contains(wrapped.Error(), "device busy") {
		t.Errorf("Error() should mention the cause, got %q", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error should unwrap to its cause")
	}
}

func TestWithContext(t *testing.T) {
	err := (&AppError{Code: ErrCodeRateLimit}).WithContext("retry_after", 3).WithContext("scope", "ws")
	if err.Context["retry_after"] != 3 || err.Context["scope"] != "ws" {
		t.Errorf("Context = %v", err.Context)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeRateLimit, http.StatusTooManyRequests},
		{ErrCodeMediaUnavailable, http.StatusServiceUnavailable},
		{ErrCodeNotOpen, http.StatusConflict},
		{ErrCodeEncoderFault, http.StatusBadGateway},
		{ErrorCode("SOMETHING_NEW"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.code); got != tt.want {
			t.Errorf("StatusOf(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   ErrorCode
		status int
	}{
		{NewInvalidInputError("bad"), ErrCodeInvalidInput, 400},
		{NewNotFoundError("artifact"), ErrCodeNotFound, 404},
		{NewUnauthorizedError("no token"), ErrCodeUnauthorized, 401},
		{NewForbiddenError("viewer"), ErrCodeForbidden, 403},
		{NewConflictError("surface gone"), ErrCodeConflict, 409},
		{NewRateLimitError(), ErrCodeRateLimit, 429},
		{NewInternalError("oops"), ErrCodeInternal, 500},
		{NewServiceUnavailableError("busy"), ErrCodeServiceUnavailable, 503},
		{NewMediaUnavailableError("camera missing", errors.New("no device")), ErrCodeMediaUnavailable, 503},
		{NewUnknownOverlayError("nope"), ErrCodeUnknownOverlay, 404},
		{NewNotOpenError(), ErrCodeNotOpen, 409},
		{NewEncoderFaultError(errors.New("ffmpeg exited")), ErrCodeEncoderFault, 502},
	}
	for _, tc := range cases {
		if tc.err.Code != tc.code || tc.err.HTTPStatus != tc.status {
			t.Errorf("got %s/%d, want %s/%d", tc.err.Code, tc.err.HTTPStatus, tc.code, tc.status)
		}
	}

	if got := NewNotFoundError("artifact").Message; got != "artifact not found" {
		t.Errorf("Message = %q", got)
	}
	if got := NewUnknownOverlayError("nope").Context["overlay"]; got != "nope" {
		t.Errorf("Context[overlay] = %v, want nope", got)
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewNotOpenError()

	if GetAppError(appErr) != appErr {
		t.Error("GetAppError() should return the error itself")
	}
	if GetAppError(fmt.Errorf("handler: %w", appErr)) != appErr {
		t.Error("GetAppError() should find a wrapped AppError")
	}
	if GetAppError(errors.New("plain")) != nil {
		t.Error("GetAppError() should return nil for a plain error")
	}
}
