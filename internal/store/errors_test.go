package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestStoreError(t *testing.T) {
	t.Run("WrapsCause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewStoreError("upsert image", cause)

		if !IsStoreError(err) {
			t.Error("expected IsStoreError true")
		}
		if !errors.Is(err, cause) {
			t.Error("expected cause reachable via errors.Is")
		}
		want := "upsert image: connection refused"
		if err.Error() != want {
			t.Errorf("expected %q, got %q", want, err.Error())
		}
	})

	t.Run("NilCause", func(t *testing.T) {
		if err := NewStoreError("noop", nil); err != nil {
			t.Errorf("expected nil for nil cause, got %v", err)
		}
	})

	t.Run("WrappedDeeper", func(t *testing.T) {
		err := fmt.Errorf("indexing file: %w", NewStoreError("replace faces", errors.New("timeout")))
		if !IsStoreError(err) {
			t.Error("expected IsStoreError to see through wrapping")
		}
	})

	t.Run("NotStoreError", func(t *testing.T) {
		if IsStoreError(errors.New("plain")) {
			t.Error("expected false for plain error")
		}
		if IsStoreError(nil) {
			t.Error("expected false for nil")
		}
	})
}

func TestDimensionMismatchError(t *testing.T) {
	err := &DimensionMismatchError{Want: 128, Got: 64}
	want := "embedding dimension mismatch: want 128, got 64"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if IsStoreError(err) {
		t.Error("dimension mismatch is a caller error, not a storage failure")
	}
}
