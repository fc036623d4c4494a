package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"travel_agent/src/model"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

func (s *Store) collection(p *partition) (*chromem.Collection, error) {
	if p.memory != nil {
		return p.memory, nil
	}
	db, err := chromem.NewPersistentDB(filepath.Join(p.dir, memoryDir), s.compress)
	if err != nil {
		return nil, fmt.Errorf("open memory index: %w", err)
	}
	col, err := db.GetOrCreateCollection(memoryCollect, map[string]string{"user_id": p.userID}, s.embed)
	if err != nil {
		return nil, fmt.Errorf("open memory collection: %w", err)
	}
	p.memory = col
	return col, nil
}

// indexFacts stores every fact as "category: value". Document ids are derived
// from the fact so a repeated value replaces its earlier document.
func (s *Store) indexFacts(ctx context.Context, p *partition, facts model.Facts) error {
	col, err := s.collection(p)
	if err != nil {
		return err
	}
	ts := s.now().UTC().Format("2006-01-02T15:04:05Z07:00")
	var docs []chromem.Document
	for _, category := range facts.Touched() {
		for value := range facts[category] {
			docs = append(docs, chromem.Document{
				ID:      "fact:" + category + ":" + strings.ToLower(value),
				Content: category + ": " + value,
				Metadata: map[string]string{
					"type":      "fact",
					"category":  category,
					"user_id":   p.userID,
					"timestamp": ts,
				},
			})
		}
	}
	if len(docs) == 0 {
		return nil
	}
	return col.AddDocuments(ctx, docs, 1)
}

// Remember indexes a free-text memory such as a trip summary
func (s *Store) Remember(ctx context.Context, userID, kind, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	p, err := s.partition(userID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := s.ensureProfile(p); err != nil {
		return err
	}
	col, err := s.collection(p)
	if err != nil {
		return &model.StorageError{Op: "remember", UserID: userID, Err: err}
	}
	err = col.AddDocument(ctx, chromem.Document{
		ID:      kind + ":" + uuid.NewString(),
		Content: text,
		Metadata: map[string]string{
			"type":      kind,
			"user_id":   userID,
			"timestamp": s.now().UTC().Format("2006-01-02T15:04:05Z07:00"),
		},
	})
	if err != nil {
		return &model.StorageError{Op: "remember", UserID: userID, Err: err}
	}
	return nil
}

// SimilarityQuery returns up to k stored snippets, most relevant first
func (s *Store) SimilarityQuery(ctx context.Context, userID, query string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	p, err := s.partition(userID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	col, err := s.collection(p)
	if err != nil {
		return nil, &model.StorageError{Op: "similarity query", UserID: userID, Err: err}
	}
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	if strings.TrimSpace(query) == "" {
		query = "travel preferences"
	}
	results, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, &model.StorageError{Op: "similarity query", UserID: userID, Err: err}
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Content
	}
	return out, nil
}

// MemoryCount is the number of indexed snippets for the user
func (s *Store) MemoryCount(ctx context.Context, userID string) (int, error) {
	p, err := s.partition(userID)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	col, err := s.collection(p)
	if err != nil {
		return 0, &model.StorageError{Op: "memory count", UserID: userID, Err: err}
	}
	return col.Count(), nil
}
