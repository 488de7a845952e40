package runlog

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	// Verify all errors are defined and distinct
	errs := []error{
		ErrMalformedDocument,
		ErrInvalidRunFile,
		ErrNotFound,
		ErrUnknownRun,
		ErrNotImplemented,
		ErrInvalidFilter,
		ErrInvalidPage,
		ErrDuplicateRun,
		ErrPartitionRange,
	}

	for i, err := range errs {
		if err == nil {
			t.Errorf("error at index %d is nil", i)
		}
	}

	seen := make(map[string]int)
	for i, err := range errs {
		msg := err.Error()
		if prev, ok := seen[msg]; ok {
			t.Errorf("error at index %d has same message as index %d: %q", i, prev, msg)
		}
		seen[msg] = i
	}
}

// TestErrorsSurviveWrapping verifies that the sentinels stay detectable
// after the path and line context added by the reader and cursors.
func TestErrorsSurviveWrapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrMalformedDocument", ErrMalformedDocument},
		{"ErrInvalidRunFile", ErrInvalidRunFile},
		{"ErrNotFound", ErrNotFound},
		{"ErrUnknownRun", ErrUnknownRun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("run.jsonl:3: %w", tt.err)
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("errors.Is(%v, %v) = false, want true", wrapped, tt.err)
			}
		})
	}
}
