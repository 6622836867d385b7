package models

import (
	"fmt"
	"strings"
)

// UnreadableSourceError is returned when a video cannot be opened or reports
// an unusable frame rate.
type UnreadableSourceError struct {
	Path   string
	Reason string
	Err    error
}

func (e *UnreadableSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unreadable video source '%s': %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("unreadable video source '%s': %s", e.Path, e.Reason)
}

func (e *UnreadableSourceError) Unwrap() error { return e.Err }

// StorageError is returned when the frame store or report writer cannot write
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s '%s': %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ProviderCallError wraps a single failed inference call
type ProviderCallError struct {
	Model      string
	FrameIndex int
	Err        error
}

func (e *ProviderCallError) Error() string {
	return fmt.Sprintf("model %s failed on frame %d: %v", e.Model, e.FrameIndex, e.Err)
}

func (e *ProviderCallError) Unwrap() error { return e.Err }

// ModelAttempt describes why one model in a fallback chain was abandoned
type ModelAttempt struct {
	Model  string
	Reason string
}

// ProviderExhaustedError is returned when every model in a fallback chain
// produced no usable results.
type ProviderExhaustedError struct {
	Attempts []ModelAttempt
}

func (e *ProviderExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no models configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s)", a.Model, a.Reason))
	}
	return "all models failed: " + strings.Join(parts, "; ")
}
