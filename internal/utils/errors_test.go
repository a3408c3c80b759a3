package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsAppError(t *testing.T) {
	base := NewNotFoundError("Invoice not found")
	wrapped := fmt.Errorf("loading invoice: %w", base)

	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected wrapped AppError to be found")
	}
	if appErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", appErr.StatusCode, http.StatusNotFound)
	}

	if _, ok := AsAppError(errors.New("plain")); ok {
		t.Error("plain error should not be an AppError")
	}
}

func TestWrapInternalError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapInternalError("Failed to save invoice", cause)

	if !errors.Is(err, cause) {
		t.Error("expected cause to be unwrappable")
	}
	if err.Message != "Failed to save invoice" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Error() != "Failed to save invoice: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || a == b {
		t.Errorf("expected unique non-empty ids, got %q and %q", a, b)
	}
	if len(a) != 36 {
		t.Errorf("expected uuid string, got %q", a)
	}
}
