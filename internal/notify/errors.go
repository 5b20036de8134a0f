package notify

import (
	"errors"
	"fmt"
)

// ErrInvalidRecipient is returned before any lock check when a recipient
// number cannot be normalized to international format.
var ErrInvalidRecipient = errors.New("invalid recipient number")

// NoTemplateError is returned when a templated send is required (recipient
// outside the session window) but the action has no registered template, or
// required template variables are missing.
type NoTemplateError struct {
	Action  Action
	Missing []string
}

func (e *NoTemplateError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("no usable template for action %q: missing variables %v", e.Action, e.Missing)
	}
	return fmt.Sprintf("no template configured for action %q", e.Action)
}

// DeliveryError is the terminal failure after retries are exhausted. It must
// never roll back the state change that triggered the notification; callers
// log it and surface a warning alongside their successful result.
type DeliveryError struct {
	Recipient string
	Attempts  int
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver notification to %s after %d attempts: %v", e.Recipient, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// transientError wraps provider failures that are worth retrying
// (timeouts, 5xx, throttling).
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable for the dispatcher's backoff loop.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable by a provider.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
