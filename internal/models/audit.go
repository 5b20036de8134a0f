package models

import (
	"time"
)

// AuditEntry is one immutable, timestamped record of what changed on a
// document. Entries are only ever appended to a document's history array;
// insertion order is chronological order.
type AuditEntry struct {
	At      time.Time `bson:"at" json:"at"`
	ActorID string    `bson:"actor_id" json:"actor_id"`
	Changes []string  `bson:"changes" json:"changes"`
}

// NewAuditEntry builds an entry for the given change descriptions.
// Returns nil when there is nothing to record; a no-op update must not
// produce a history entry.
func NewAuditEntry(actorID string, changes []string) *AuditEntry {
	if len(changes) == 0 {
		return nil
	}
	return &AuditEntry{
		At:      time.Now().UTC(),
		ActorID: actorID,
		Changes: changes,
	}
}

// AuditLogEntry is a top-level audit record for actions that outlive the
// document they refer to, such as deletions. It lives in its own collection
// rather than on the (removed) document's history.
type AuditLogEntry struct {
	At      time.Time `bson:"at" json:"at"`
	ActorID string    `bson:"actor_id" json:"actor_id"`
	Action  string    `bson:"action" json:"action"` // e.g. "quotation_deleted"
	Ref     string    `bson:"ref" json:"ref"`       // document number the action applied to
}
