package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewAccessToken returns an opaque token suitable for unauthenticated
// client-facing lookups (invoice links). Two UUIDs concatenated without
// dashes; not guessable, not sequential.
func NewAccessToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
