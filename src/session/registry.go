// Package session tracks active dialogues and keeps user ids unique across
// active sessions and persisted profiles.
package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"

	"travel_agent/src/conversation"
	"travel_agent/src/logger"
	"travel_agent/src/model"

	"github.com/samber/lo"
)

const (
	minUserID = 100
	maxUserID = 999
)

// Profiles is the part of the profile store the registry needs
type Profiles interface {
	Exists(userID string) bool
	Get(ctx context.Context, userID string) (*model.UserProfile, error)
}

type StateFactory func(userID string) *conversation.DialogueState

// Session is one active dialogue. Exec serializes turns for its user.
type Session struct {
	mu       sync.Mutex
	UserID   string
	State    *conversation.DialogueState
	Restored bool
}

// Exec runs fn with exclusive access to the session state
func (s *Session) Exec(ctx context.Context, fn func(ctx context.Context, st *conversation.DialogueState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, s.State)
}

type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	profiles  Profiles
	snapshots SnapshotStore
	newState  StateFactory
	intn      func(n int) int
}

func NewRegistry(profiles Profiles, snapshots SnapshotStore, newState StateFactory) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		profiles:  profiles,
		snapshots: snapshots,
		newState:  newState,
		intn:      rand.IntN,
	}
}

// GetOrCreate returns the active session for userID, or opens one bound to
// the persisted profile. An empty userID mints a fresh 3-digit id.
func (r *Registry) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if userID == "" {
		id, err := r.mintLocked()
		if err != nil {
			return nil, err
		}
		userID = id
	} else if s, ok := r.sessions[userID]; ok {
		return s, nil
	}
	return r.openLocked(ctx, userID)
}

// Create opens a session under a caller-chosen id, which must be a free
// 3-digit number.
func (r *Registry) Create(ctx context.Context, userID string) (*Session, error) {
	if err := ValidateNewUserID(userID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.takenLocked(userID) {
		return nil, &model.ValidationError{Field: "new-user-id", Value: userID, Reason: "already in use"}
	}
	return r.openLocked(ctx, userID)
}

// End drops the active session and snapshots its context for a later resume
func (r *Registry) End(ctx context.Context, userID string) error {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if !ok || r.snapshots == nil {
		return nil
	}

	s.mu.Lock()
	snap := s.State.Snapshot()
	s.mu.Unlock()
	if err := r.snapshots.Save(ctx, snap); err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("failed to save session snapshot")
		return err
	}
	return nil
}

// Active lists user ids with an open session
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := lo.Keys(r.sessions)
	sort.Strings(ids)
	return ids
}

func (r *Registry) openLocked(ctx context.Context, userID string) (*Session, error) {
	// Get persists an empty profile for new ids, which reserves the id
	if _, err := r.profiles.Get(ctx, userID); err != nil {
		return nil, err
	}

	s := &Session{UserID: userID, State: r.newState(userID)}
	if r.snapshots != nil {
		snap, err := r.snapshots.Load(ctx, userID)
		switch {
		case err == nil:
			s.State.Restore(*snap)
			s.Restored = true
		case errors.Is(err, ErrSnapshotNotFound):
		default:
			logger.Warn().Err(err).Str("user_id", userID).Msg("snapshot unavailable, starting fresh")
		}
	}

	r.sessions[userID] = s
	logger.Info().Str("user_id", userID).Bool("restored", s.Restored).Msg("session opened")
	return s, nil
}

func (r *Registry) mintLocked() (string, error) {
	span := maxUserID - minUserID + 1
	start := r.intn(span)
	for i := 0; i < span; i++ {
		id := strconv.Itoa(minUserID + (start+i)%span)
		if !r.takenLocked(id) {
			return id, nil
		}
	}
	return "", model.ErrIDSpaceExhausted
}

func (r *Registry) takenLocked(userID string) bool {
	_, active := r.sessions[userID]
	return active || r.profiles.Exists(userID)
}

// ValidateNewUserID accepts exactly the 3-digit ids 100 to 999
func ValidateNewUserID(userID string) error {
	n, err := strconv.Atoi(userID)
	if err != nil || len(userID) != 3 || n < minUserID || n > maxUserID {
		return &model.ValidationError{Field: "new-user-id", Value: userID, Reason: "must be a 3-digit number between 100 and 999"}
	}
	return nil
}
