package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{ErrTranscriptionFailed, true},
		{ErrTranscriptionTimeout, true},
		{ErrLockHeld, true},
		{errors.New("some transient thing"), true},
		{ErrNotFound, false},
		{ErrUnauthorized, false},
		{ErrAudioOptimizationFailed, false},
		{NonRetryable(errors.New("bad payload")), false},
	}
	for _, c := range cases {
		if got := Retryable(c.err); got != c.retryable {
			t.Errorf("Retryable(%v) = %v, want %v", c.err, got, c.retryable)
		}
	}
}

func TestRetryableSeesWrappedSentinels(t *testing.T) {
	err := fmt.Errorf("stage failed: %w", fmt.Errorf("%w: exit 1", ErrAudioOptimizationFailed))
	if Retryable(err) {
		t.Fatal("wrapped fatal sentinel must stay non-retryable")
	}
	if !errors.Is(err, ErrAudioOptimizationFailed) {
		t.Fatal("sentinel lost through wrapping")
	}
}

func TestNonRetryablePreservesCause(t *testing.T) {
	cause := errors.New("bad json")
	err := NonRetryable(cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause must survive NonRetryable wrapping")
	}
	if Retryable(err) {
		t.Fatal("NonRetryable result classified retryable")
	}
}
