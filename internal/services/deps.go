package services

import (
	"context"

	"fieldquote/backend/internal/notify"
)

// Notifier delivers one client notification after a state change has
// committed. The bool reports whether a message actually went out (false for
// a debounced skip). *notify.Dispatcher satisfies this.
type Notifier interface {
	Send(ctx context.Context, recipient string, action notify.Action, body string, vars map[string]string) (bool, error)
}

// CleanupQueue schedules best-effort deletion of orphaned object-store keys.
// *tasks.Queue satisfies this.
type CleanupQueue interface {
	EnqueueImageCleanup(ctx context.Context, keys []string, ref string) error
}
