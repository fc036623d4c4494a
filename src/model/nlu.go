package model

import (
	"sort"
	"strings"
)

// Facts is the transient output of one extraction call: category -> value -> confidence.
// Every expected category is present, possibly with an empty value map.
type Facts map[string]map[string]float64

// NewFacts returns an empty-but-typed fact set for the given categories
func NewFacts(categories []string) Facts {
	f := make(Facts, len(categories))
	for _, c := range categories {
		f[c] = map[string]float64{}
	}
	return f
}

// Add records a value, keeping the higher confidence when the value repeats
func (f Facts) Add(category, value string, confidence float64) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	values, ok := f[category]
	if !ok {
		values = map[string]float64{}
		f[category] = values
	}
	confidence = ClampConfidence(confidence)
	if existing, ok := values[value]; !ok || confidence > existing {
		values[value] = confidence
	}
}

// Empty reports whether no category holds a value
func (f Facts) Empty() bool {
	for _, values := range f {
		if len(values) > 0 {
			return false
		}
	}
	return true
}

// Touched lists the categories holding at least one value, sorted
func (f Facts) Touched() []string {
	var out []string
	for category, values := range f {
		if len(values) > 0 {
			out = append(out, category)
		}
	}
	sort.Strings(out)
	return out
}

// Best returns the highest-confidence value of a category
func (f Facts) Best(category string) (string, bool) {
	var (
		best  string
		score = -1.0
	)
	for value, confidence := range f[category] {
		if confidence > score || (confidence == score && value < best) {
			best, score = value, confidence
		}
	}
	return best, score >= 0
}

func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
