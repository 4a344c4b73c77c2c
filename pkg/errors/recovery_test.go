package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestRecover_WithPanic tests the Recover function when a panic occurs
func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		panic("test panic message")
	}

	err := testFunc()

	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}

	if panicErr.Operation != "TestOperation" {
		t.Errorf("Expected operation 'TestOperation', got '%s'", panicErr.Operation)
	}

	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}

	expectedMsg := "panic in TestOperation: test panic message"
	if panicErr.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, panicErr.Error())
	}
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		return nil
	}

	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

func TestRecover_WithExistingError(t *testing.T) {
	originalErr := fmt.Errorf("original error")

	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		err = originalErr
		panic("panic after error")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic with existing error, got nil")
	}

	if !strings.Contains(err.Error(), "panic in TestOperation") {
		t.Errorf("Error message should contain panic info: %s", err)
	}

	if !errors.Is(err, originalErr) {
		t.Error("Should be able to identify original error with errors.Is")
	}
}

func TestRecover_KeepsPanicErrorFirst(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "LogModel")
		err = fmt.Errorf("upload failed")
		panic(fmt.Errorf("nil registry"))
	}

	var panicErr *PanicError
	if !errors.As(testFunc(), &panicErr) {
		t.Fatal("joined error should still expose the PanicError")
	}
	if panicErr.Operation != "LogModel" {
		t.Errorf("unexpected operation %q", panicErr.Operation)
	}
}

func TestPanicError_UnwrapsErrorValues(t *testing.T) {
	cause := fmt.Errorf("registry unavailable")
	panicErr := NewPanicError("LogModel", cause)

	if !errors.Is(panicErr, cause) {
		t.Error("PanicError should unwrap to an error panic value")
	}
	if NewPanicError("op", "text").Unwrap() != nil {
		t.Error("non-error panic values should unwrap to nil")
	}
	if !strings.Contains(panicErr.String(), "Stack trace:") {
		t.Error("String() should include stack trace information")
	}
}
