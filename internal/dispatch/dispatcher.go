// Package dispatch forwards finalized text to the speech generation service.
package dispatch

import (
	"context"
	"fmt"
)

// Dispatcher sends committed text for audio generation and returns the
// resulting audio reference. Implementations must honor ctx cancellation and
// never panic across the call boundary; failures come back as *Error.
type Dispatcher interface {
	Send(ctx context.Context, text, userID string) (string, error)
}

// Error is a dispatch failure. The caller keeps its buffer and may retry on
// a later qualifying frame.
type Error struct {
	// StatusCode is the HTTP status, 0 for transport-level failures.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dispatch failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("dispatch failed: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
