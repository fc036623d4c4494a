package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"travel_agent/src/logger"
	"travel_agent/src/model"

	"github.com/philippgille/chromem-go"
)

const (
	profileFile   = "profile.json"
	memoryDir     = "memory"
	historyFile   = "history.db"
	memoryCollect = "memories"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Store keeps one partition per user id under baseDir:
//
//	<baseDir>/<user_id>/profile.json  accumulated facts
//	<baseDir>/<user_id>/memory/       similarity index
//	<baseDir>/<user_id>/history.db    trips, recommendations, feedback
//
// Writes for one user are serialized by that partition's mutex; different
// users never share a lock after the partition lookup.
type Store struct {
	baseDir  string
	compress bool
	embed    chromem.EmbeddingFunc
	now      func() time.Time

	mu         sync.Mutex
	partitions map[string]*partition
}

type partition struct {
	mu      sync.Mutex
	userID  string
	dir     string
	profile *model.UserProfile
	memory  *chromem.Collection
	db      *sql.DB
}

// UserStats summarises a stored user for listings
type UserStats struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Facts     int       `json:"facts"`
	Trips     int       `json:"trips"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewStore(config model.StoreConfig, embed chromem.EmbeddingFunc) (*Store, error) {
	if config.BaseDir == "" {
		return nil, &model.ValidationError{Field: "STORE_BASE_DIR", Reason: "must not be empty"}
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, &model.StorageError{Op: "init", Err: err}
	}
	if embed == nil {
		embed = LexicalEmbedding(defaultDimensions)
	}
	return &Store{
		baseDir:    config.BaseDir,
		compress:   config.Compress,
		embed:      embed,
		now:        time.Now,
		partitions: map[string]*partition{},
	}, nil
}

func (s *Store) partition(userID string) (*partition, error) {
	if !userIDPattern.MatchString(userID) {
		return nil, &model.ValidationError{Field: "user id", Value: userID, Reason: "must be 1-64 letters, digits, '-' or '_'"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partitions[userID]
	if !ok {
		p = &partition{userID: userID, dir: filepath.Join(s.baseDir, userID)}
		s.partitions[userID] = p
	}
	return p, nil
}

// Get returns the user's profile, creating and persisting an empty one if absent
func (s *Store) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	p, err := s.partition(userID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := s.ensureProfile(p); err != nil {
		return nil, err
	}
	return p.profile.Clone(), nil
}

// Exists reports whether a profile was ever persisted for the user
func (s *Store) Exists(userID string) bool {
	if !userIDPattern.MatchString(userID) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.baseDir, userID, profileFile))
	return err == nil
}

// List returns the ids of all persisted profiles, sorted
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &model.StorageError{Op: "list", Err: err}
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && s.Exists(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Stats(ctx context.Context, userID string) (*UserStats, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	trips, err := s.Trips(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserStats{
		UserID:    userID,
		Name:      profile.Name(),
		Facts:     profile.FactCount(),
		Trips:     len(trips),
		UpdatedAt: profile.UpdatedAt,
	}, nil
}

// Close releases the per-user database handles
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, p := range s.partitions {
		p.mu.Lock()
		if p.db != nil {
			if err := p.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close history for %s: %w", p.userID, err))
			}
			p.db = nil
		}
		p.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (s *Store) ensureProfile(p *partition) error {
	if p.profile != nil {
		return nil
	}
	profile, err := loadProfile(filepath.Join(p.dir, profileFile))
	switch {
	case err == nil:
		p.profile = profile
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return &model.StorageError{Op: "load profile", UserID: p.userID, Err: err}
	}

	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return &model.StorageError{Op: "create partition", UserID: p.userID, Err: err}
	}
	profile = model.NewUserProfile(p.userID, s.now())
	if err := saveProfile(filepath.Join(p.dir, profileFile), profile); err != nil {
		return &model.StorageError{Op: "create profile", UserID: p.userID, Err: err}
	}
	logger.Info().Str("user_id", p.userID).Msg("created profile")
	p.profile = profile
	return nil
}
