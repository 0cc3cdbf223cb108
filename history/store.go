package history

import (
	"context"
	"errors"
)

// ErrNotFound reports that a user has no chat record. Callers must treat it
// as an expected absence, not a failure.
var ErrNotFound = errors.New("no chat history for user")

// ErrVersionConflict reports that a conditional write lost a race with a
// concurrent save for the same user.
var ErrVersionConflict = errors.New("chat record version conflict")

// Record pairs a user's history with the version observed at read time.
// A Version of zero means the record did not exist yet.
type Record struct {
	UserID  string
	History History
	Version int64
}

// Store is the keyed chat record store. Put performs a conditional write:
// it succeeds only when the stored version still equals rec.Version, so two
// concurrent saves for one user cannot silently overwrite each other.
type Store interface {
	Get(ctx context.Context, userID string) (Record, error)
	Put(ctx context.Context, rec Record) error
}
