package session

import (
	"context"
	"errors"

	"travel_agent/src/model"
)

var ErrSnapshotNotFound = errors.New("session snapshot not found")

// SnapshotStore keeps the conversational context of ended sessions so a
// resumed session can pick up the thread.
type SnapshotStore interface {
	Load(ctx context.Context, userID string) (*model.SessionSnapshot, error)
	Save(ctx context.Context, snap model.SessionSnapshot) error
	Delete(ctx context.Context, userID string) error
	Close() error
}
