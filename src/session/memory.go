package session

import (
	"context"
	"sync"
	"time"

	"travel_agent/src/model"
)

// MemorySnapshots is the in-process SnapshotStore used when no Redis URL is configured
type MemorySnapshots struct {
	mu    sync.Mutex
	snaps map[string]model.SessionSnapshot
	ttl   time.Duration
	now   func() time.Time
}

func NewMemorySnapshots(ttl time.Duration) *MemorySnapshots {
	return &MemorySnapshots{
		snaps: make(map[string]model.SessionSnapshot),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *MemorySnapshots) Load(_ context.Context, userID string) (*model.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snaps[userID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	// Check if snapshot has expired
	if m.ttl > 0 && m.now().Sub(snap.SavedAt) > m.ttl {
		delete(m.snaps, userID)
		return nil, ErrSnapshotNotFound
	}
	return &snap, nil
}

func (m *MemorySnapshots) Save(_ context.Context, snap model.SessionSnapshot) error {
	if snap.UserID == "" {
		return &model.ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.SavedAt.IsZero() {
		snap.SavedAt = m.now()
	}
	m.snaps[snap.UserID] = snap
	return nil
}

func (m *MemorySnapshots) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, userID)
	return nil
}

func (m *MemorySnapshots) Close() error { return nil }
