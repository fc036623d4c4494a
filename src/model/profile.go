package model

import (
	"sort"
	"strings"
	"time"
)

// Entry is one accumulated value of a profile category
type Entry struct {
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserProfile is the durable per-user fact store.
// Entries within a category only accumulate; a category is never replaced wholesale.
type UserProfile struct {
	UserID     string             `json:"user_id"`
	Version    int64              `json:"version"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Attributes map[string][]Entry `json:"attributes"`
}

func NewUserProfile(userID string, now time.Time) *UserProfile {
	return &UserProfile{
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Attributes: map[string][]Entry{},
	}
}

// Merge applies max-merge for every (category, value, confidence) in facts and
// returns the number of entries that were inserted or raised.
func (p *UserProfile) Merge(facts Facts, now time.Time) int {
	if p.Attributes == nil {
		p.Attributes = map[string][]Entry{}
	}
	changed := 0
	for _, category := range facts.Touched() {
		values := facts[category]
		names := make([]string, 0, len(values))
		for v := range values {
			names = append(names, v)
		}
		sort.Strings(names)
		for _, value := range names {
			if p.upsert(category, value, values[value], now) {
				changed++
			}
		}
	}
	if changed > 0 {
		p.Version++
		p.UpdatedAt = now
	}
	return changed
}

func (p *UserProfile) upsert(category, value string, confidence float64, now time.Time) bool {
	entries := p.Attributes[category]
	for i := range entries {
		if strings.EqualFold(entries[i].Value, value) {
			if confidence > entries[i].Confidence {
				entries[i].Confidence = confidence
				entries[i].UpdatedAt = now
				return true
			}
			return false
		}
	}
	p.Attributes[category] = append(entries, Entry{
		Value:      value,
		Confidence: confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	return true
}

// Count returns the number of distinct values stored for a category
func (p *UserProfile) Count(category string) int {
	return len(p.Attributes[category])
}

// Best returns the highest-confidence value of a category, latest update winning ties
func (p *UserProfile) Best(category string) (string, bool) {
	entries := p.Attributes[category]
	if len(entries) == 0 {
		return "", false
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Confidence > best.Confidence || (e.Confidence == best.Confidence && e.UpdatedAt.After(best.UpdatedAt)) {
			best = e
		}
	}
	return best.Value, true
}

// Values returns a category's values ordered by confidence, highest first
func (p *UserProfile) Values(category string) []string {
	entries := append([]Entry(nil), p.Attributes[category]...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Confidence > entries[j].Confidence })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// FactCount is the total number of stored entries across categories
func (p *UserProfile) FactCount() int {
	n := 0
	for _, entries := range p.Attributes {
		n += len(entries)
	}
	return n
}

func (p *UserProfile) Name() string {
	name, _ := p.Best(CategoryName)
	return name
}

// Clone returns a deep copy so callers never share the store's cached profile
func (p *UserProfile) Clone() *UserProfile {
	out := *p
	out.Attributes = make(map[string][]Entry, len(p.Attributes))
	for k, v := range p.Attributes {
		out.Attributes[k] = append([]Entry(nil), v...)
	}
	return &out
}

// Summary renders the profile one category per line for prompts
func (p *UserProfile) Summary(categories []string) string {
	var b strings.Builder
	for _, c := range categories {
		values := p.Values(c)
		if len(values) == 0 {
			continue
		}
		b.WriteString("- " + c + ": " + strings.Join(values, ", ") + "\n")
	}
	if b.Len() == 0 {
		return "- nothing known yet\n"
	}
	return b.String()
}
