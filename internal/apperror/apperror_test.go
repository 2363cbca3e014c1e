package apperror

import (
	"errors"
	"io"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("trial", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("modelIds", "at least one model is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("token expired"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Upstream wraps ErrUpstream",
			err:       Upstream("image generation", io.ErrUnexpectedEOF),
			target:    ErrUpstream,
			wantMatch: true,
		},
		{
			name:      "Upstream keeps the cause",
			err:       Upstream("image generation", io.ErrUnexpectedEOF),
			target:    io.ErrUnexpectedEOF,
			wantMatch: true,
		},
		{
			name:      "Forbidden does NOT match ErrUnauthorized",
			err:       Forbidden("admin access required"),
			target:    ErrUnauthorized,
			wantMatch: false,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("trial", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrNotFound",
			err:       ValidationFailed("name", "too long"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("trial", "abc123"),
			wantMessage: "trial not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("modelIds", "at least one model is required"),
			wantMessage: "at least one model is required",
		},
		{
			name:        "Conflict message includes resource and id",
			err:         Conflict("user", "abc123"),
			wantMessage: "user conflict with id abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("trial", "abc123")
	unwrapped := err.Unwrap()

	if unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestUpstreamHidesCause(t *testing.T) {
	err := Upstream("photo analysis", errors.New("dial tcp: connection refused"))

	if got, want := err.Error(), "photo analysis is unavailable, please try again"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("photoUrl", "photo must come from trusted storage")

	if err.Field != "photoUrl" {
		t.Errorf("Field = %q, want %q", err.Field, "photoUrl")
	}
}
