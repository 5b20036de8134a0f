package services

import (
	"errors"
	"fmt"
)

// Errors that threaten data consistency are resolved before commit and
// surfaced to the caller as structured values; handlers map them to client
// visible statuses. Post-commit side-channel failures (notifications, orphan
// cleanup) are never represented here; they travel as warnings alongside a
// successful result.
var (
	// ErrNotFound means the referenced quotation/project/invoice does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNoChanges rejects a patch that would not change anything. A no-op
	// update must not write an audit entry, so it is refused outright.
	ErrNoChanges = errors.New("no changes detected")

	// ErrConflict surfaces after bounded retries of a transaction that kept
	// colliding with concurrent writers.
	ErrConflict = errors.New("concurrent modification conflict")
)

// ValidationError reports malformed or out-of-range input, rejected before
// any transaction begins.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
