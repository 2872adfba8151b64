// Package apperrors defines the error kinds the pipeline and its callers
// distinguish between. Kinds are sentinels attached with errors.Join so
// call sites keep the original cause while the queue can classify without
// string matching.
package apperrors

import "errors"

var (
	// ErrNotFound: no audio or results exist for the identifier. Fatal for
	// a job, a client error for an API caller.
	ErrNotFound = errors.New("not found")

	// ErrNotReady: the recording exists but its results are not produced
	// yet. Distinct from ErrNotFound so pollers can keep waiting.
	ErrNotReady = errors.New("not ready")

	// ErrUnauthorized: the capability was rejected by a downstream
	// service. Surfaced distinctly so callers can re-authenticate.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTranscriptionFailed is retryable within the queue's attempt budget.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrTranscriptionTimeout: the long-running operation exceeded its
	// hard bound. Retryable.
	ErrTranscriptionTimeout = errors.New("transcription timeout")

	// ErrSummarizationFailed never fails a job; it triggers the rule-based
	// fallback at the summarize stage.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrAudioOptimizationFailed: malformed input or missing codec. Fatal,
	// never retried.
	ErrAudioOptimizationFailed = errors.New("audio optimization failed")

	// ErrCleanupFailed is logged and absorbed, never propagated.
	ErrCleanupFailed = errors.New("cleanup failed")

	// ErrLockHeld: another worker is processing the same recording.
	// Retryable so the queue redelivers after the holder finishes.
	ErrLockHeld = errors.New("lock held")
)

// NonRetryable marks an error that must not consume further queue
// attempts.
func NonRetryable(err error) error {
	return errors.Join(errNonRetryable, err)
}

var errNonRetryable = errors.New("non-retryable error")

// Retryable reports whether the queue should redeliver after err. Fatal
// kinds and anything explicitly marked non-retryable dead-letter
// immediately; everything else gets the attempt budget.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, errNonRetryable),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrAudioOptimizationFailed):
		return false
	}
	return true
}
