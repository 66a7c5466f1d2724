package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrCancelled         = errors.New("generation cancelled")
	ErrMissingCredential = &ConfigurationError{Setting: "credential", Reason: "not configured"}
)

// SimulatedTransientMessage is reported on failed job outcomes injected by
// the job simulator. Callers should offer a retry.
const SimulatedTransientMessage = "Video generation failed due to a temporary server issue. Please try again."

// ConfigurationError aborts a call because a required setting is absent.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Setting, e.Reason)
}

// Is matches any ConfigurationError so callers can test against
// ErrMissingCredential regardless of which setting was missing.
func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// UpstreamError wraps a failed call to an external AI provider.
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// FallbackExhaustedError is returned when the vision path and its single
// text fallback both failed.
type FallbackExhaustedError struct {
	Vision error
	Text   error
}

func (e *FallbackExhaustedError) Error() string {
	return fmt.Sprintf("enhancement failed: vision: %v; text fallback: %v", e.Vision, e.Text)
}

func (e *FallbackExhaustedError) Unwrap() []error {
	return []error{e.Vision, e.Text}
}
