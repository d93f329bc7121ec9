package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeConfiguration, "unknown orientation")
		if err.Error() != "[CONFIGURATION_ERROR] unknown orientation" {
			t.Errorf("unexpected message %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("disk gone")
		err := Wrap(original, CodeScan, "read batch")
		expected := "[SCAN_ERROR] read batch: disk gone"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to original")
		}
	})

	t.Run("WrapNil", func(t *testing.T) {
		if Wrap(nil, CodeScan, "noop") != nil {
			t.Error("expected nil for nil error")
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "invalid input")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeNested", func(t *testing.T) {
		inner := New(CodeScan, "scanner failed")
		outer := Wrap(fmt.Errorf("worker 2: %w", inner), CodeAborted, "import aborted")
		if !IsCode(outer, CodeAborted) {
			t.Error("expected outer code to match")
		}
		if !IsCode(outer, CodeScan) {
			t.Error("expected nested scan code to match")
		}
		if CodeOf(outer) != CodeAborted {
			t.Errorf("expected CodeOf to return outermost code, got %s", CodeOf(outer))
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeScan, "boom"), CtxWorker, 2)
		var de *DomainError
		if !errors.As(err, &de) {
			t.Fatal("expected DomainError")
		}
		if de.Context[CtxWorker] != 2 {
			t.Errorf("expected worker context 2, got %v", de.Context[CtxWorker])
		}

		plain := AddContext(errors.New("plain"), CtxPage, 7)
		if CodeOf(plain) != CodeInternal {
			t.Errorf("expected plain errors to become internal, got %s", CodeOf(plain))
		}
	})
}
