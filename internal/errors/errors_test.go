package errors

import (
	"errors"
	"fmt"
	"testing"
)

type responseError struct {
	message string
	status  int
}

func (e *responseError) Error() string {
	return fmt.Sprintf("Request failed with status code %d", e.status)
}
func (e *responseError) ResponseMessage() string { return e.message }

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "Unknown error"},
		{"plain", errors.New("Network Error"), "Network Error"},
		{"empty message", errors.New(""), "Unknown error"},
		{"response message wins", &responseError{message: "Chapter is read only", status: 409}, "Chapter is read only"},
		{"empty response message falls back", &responseError{status: 500}, "Request failed with status code 500"},
		{
			"wrapped response",
			fmt.Errorf("save: %w", &responseError{message: "Entry not found", status: 404}),
			"Entry not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatError(tt.err); got != tt.want {
				t.Errorf("FormatError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppErrorPredicates(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewConflictError("save in progress", nil))
	if !IsConflictError(err) || IsNotFoundError(err) {
		t.Fatalf("predicates disagree for %v", err)
	}
	if TypeOf(err) != ErrorTypeConflict {
		t.Errorf("TypeOf() = %q", TypeOf(err))
	}
	if !IsUnavailableError(NewUnavailableError("down", nil)) {
		t.Error("IsUnavailableError() = false")
	}
	if TypeOf(errors.New("plain")) != "" {
		t.Error("TypeOf() on a plain error should be empty")
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "ignored", ErrorTypeError) != nil {
		t.Fatal("WrapError(nil) should be nil")
	}

	wrapped := WrapError(NewNotFoundError("chapter missing", nil), "load", ErrorTypeError)
	var appError *AppError
	if !errors.As(wrapped, &appError) {
		t.Fatalf("WrapError() = %T", wrapped)
	}
	if appError.Type != ErrorTypeNotFound || appError.Code != "NOT_FOUND" || appError.Message != "load: chapter missing" {
		t.Errorf("wrapped = %#v", appError)
	}

	plain := WrapError(errors.New("disk full"), "write", ErrorTypeError)
	if TypeOf(plain) != ErrorTypeError || plain.Error() != "write: disk full" {
		t.Errorf("plain wrap = %v", plain)
	}
}
