package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"travel_agent/src/logger"
	"travel_agent/src/model"

	"github.com/bytedance/sonic"
)

// Merge applies the max-merge policy and flushes the profile to disk before
// returning. The in-memory copy only changes once the write succeeded.
func (s *Store) Merge(ctx context.Context, userID string, facts model.Facts) (*model.UserProfile, error) {
	p, err := s.partition(userID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := s.ensureProfile(p); err != nil {
		return nil, err
	}
	if facts.Empty() {
		return p.profile.Clone(), nil
	}

	work := p.profile.Clone()
	changed := work.Merge(facts, s.now())
	if changed == 0 {
		return work, nil
	}
	if err := saveProfile(filepath.Join(p.dir, profileFile), work); err != nil {
		return nil, &model.StorageError{Op: "merge", UserID: userID, Err: err}
	}
	p.profile = work

	if err := s.indexFacts(ctx, p, facts); err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("memory index update failed")
	}
	logger.Debug().
		Str("user_id", userID).
		Int("changed", changed).
		Int64("version", work.Version).
		Msg("profile merged")
	return work.Clone(), nil
}

func loadProfile(path string) (*model.UserProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var profile model.UserProfile
	if err := sonic.ConfigStd.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if profile.Attributes == nil {
		profile.Attributes = map[string][]model.Entry{}
	}
	return &profile, nil
}

func saveProfile(path string, profile *model.UserProfile) error {
	data, err := sonic.ConfigStd.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic replaces path with data so that a crash leaves either the
// old or the new content, and the new content is on disk when it returns.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
