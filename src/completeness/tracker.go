// Package completeness tracks which required categories a session has filled.
//
// A category counts as collected once it was answered in a direct
// question-answer exchange, or once the profile holds enough distinct values
// for it. A hard turn limit forces completion so a dialogue always ends.
package completeness

import "travel_agent/src/model"

type Tracker struct {
	required  []string
	threshold int
	turnLimit int

	collected map[string]bool
	asked     map[string]bool
	turns     int
}

func NewTracker(required []string, threshold, turnLimit int) *Tracker {
	t := &Tracker{
		required:  append([]string(nil), required...),
		threshold: threshold,
		turnLimit: turnLimit,
		collected: make(map[string]bool, len(required)),
		asked:     make(map[string]bool, len(required)),
	}
	for _, c := range required {
		t.collected[c] = false
	}
	return t
}

func (t *Tracker) Required() []string {
	return append([]string(nil), t.required...)
}

// MarkAnswered flips a category after a dedicated question got an answer
func (t *Tracker) MarkAnswered(category string) {
	if _, ok := t.collected[category]; ok {
		t.collected[category] = true
	}
}

// Observe flips a category once its distinct value count reaches the threshold
func (t *Tracker) Observe(category string, distinct int) {
	if _, ok := t.collected[category]; ok && distinct >= t.threshold {
		t.collected[category] = true
	}
}

// ObserveProfile applies Observe to every required category
func (t *Tracker) ObserveProfile(p *model.UserProfile) {
	for _, c := range t.required {
		t.Observe(c, p.Count(c))
	}
}

func (t *Tracker) MarkAsked(category string) {
	t.asked[category] = true
}

func (t *Tracker) Asked(category string) bool {
	return t.asked[category]
}

func (t *Tracker) Collected(category string) bool {
	return t.collected[category]
}

// Tick counts one dialogue turn
func (t *Tracker) Tick() {
	t.turns++
}

func (t *Tracker) Turns() int {
	return t.turns
}

// AllCollected is true iff every required category is collected
func (t *Tracker) AllCollected() bool {
	for _, c := range t.required {
		if !t.collected[c] {
			return false
		}
	}
	return true
}

func (t *Tracker) LimitReached() bool {
	return t.turnLimit > 0 && t.turns >= t.turnLimit
}

// IsComplete is AllCollected, forced true once the turn limit is reached
func (t *Tracker) IsComplete() bool {
	return t.AllCollected() || t.LimitReached()
}

// Missing lists uncollected categories in required order
func (t *Tracker) Missing() []string {
	var out []string
	for _, c := range t.required {
		if !t.collected[c] {
			out = append(out, c)
		}
	}
	return out
}

// NextMissing returns the first missing category in priority order that has not
// been asked yet, else the first missing one. Required categories absent from
// priorities rank after the listed ones.
func (t *Tracker) NextMissing(priorities []string) (string, bool) {
	order := t.order(priorities)
	for _, c := range order {
		if !t.collected[c] && !t.asked[c] {
			return c, true
		}
	}
	for _, c := range order {
		if !t.collected[c] {
			return c, true
		}
	}
	return "", false
}

func (t *Tracker) order(priorities []string) []string {
	seen := make(map[string]bool, len(t.required))
	order := make([]string, 0, len(t.required))
	for _, c := range priorities {
		if _, ok := t.collected[c]; ok && !seen[c] {
			seen[c] = true
			order = append(order, c)
		}
	}
	for _, c := range t.required {
		if !seen[c] {
			order = append(order, c)
		}
	}
	return order
}
