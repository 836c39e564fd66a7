package types

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationMissingEventType,
		Message: "event.type must be a non-empty string",
	}

	expected := "validation_missing_event_type: event.type must be a non-empty string"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection refused")
	appErr := NewAppError(ErrCodeInternalDB, "failed to upsert subscription state", underlying)

	if !errors.Is(appErr, underlying) {
		t.Errorf("errors.Is failed to find the wrapped error")
	}
}

func TestAppErrorAs(t *testing.T) {
	appErr := NewAppError(ErrCodeValidationInvalidJSON, "request body is not a JSON object", nil)
	wrapped := errors.Join(errors.New("outer"), appErr)

	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As failed to extract *AppError")
	}
	if target.Code != ErrCodeValidationInvalidJSON {
		t.Errorf("Code = %q, want %q", target.Code, ErrCodeValidationInvalidJSON)
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeValidationMissingEvent, http.StatusBadRequest},
		{ErrCodeValidationMissingEventType, http.StatusBadRequest},
		{ErrCodeValidationMissingAppUserID, http.StatusBadRequest},
		{ErrCodeValidationMissingProductID, http.StatusBadRequest},
		{ErrCodeValidationInvalidExpiration, http.StatusBadRequest},
		{ErrCodeValidationNoTransferTargets, http.StatusBadRequest},
		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeMethodNotAllowed, http.StatusMethodNotAllowed},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrCodeInternalConfig, http.StatusInternalServerError},
		{ErrorCode("something_unrecognized"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
