// Package completion talks to the external OpenAI-compatible completion
// service. Failures are classified so the caller can pick the right
// user-facing fallback.
package completion

import (
	"context"
	"errors"
	"fmt"

	"deskbot/internal/budget"
)

// FailureKind classifies completion failures into the arms the engine
// maps to fallback responses.
type FailureKind string

const (
	FailureRateLimited FailureKind = "rate_limited"
	FailureAuth        FailureKind = "auth_failed"
	FailureTransient   FailureKind = "transient"
	FailureUnknown     FailureKind = "unknown"
)

// Failure is a classified completion error.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("completion failure (%s)", f.Kind)
	}
	return fmt.Sprintf("completion failure (%s): %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf extracts the failure kind from an error, defaulting to unknown
// for errors that are not classified Failures.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureUnknown
}

// Request is one completion call.
type Request struct {
	Segments    []budget.Segment
	MaxTokens   int
	Temperature float64
}

// Client generates a completion for a prepared request.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
