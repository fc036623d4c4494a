package model

import (
	"strings"
	"time"
)

// Category identifiers used by the dialogue. The required set itself is configuration.
const (
	CategoryName       = "name"
	CategoryActivities = "activities"
	CategoryBudget     = "budget"
	CategoryCompanions = "companions"
	CategoryTravelTime = "travel_time"
)

// TripRecord is one recounted past trip. Appended once, never modified.
type TripRecord struct {
	ID          int64     `json:"id"`
	Destination string    `json:"destination,omitempty"`
	Activities  []string  `json:"activities"`
	Utterances  []string  `json:"utterances"`
	CreatedAt   time.Time `json:"created_at"`
}

// TripFacts is what narrative extraction pulls out of a trip description
type TripFacts struct {
	Destination string   `json:"destination"`
	Activities  []string `json:"activities"`
	Liked       []string `json:"liked"`
	Disliked    []string `json:"disliked"`
}

// TripContext holds the constraints a recommendation cannot be made without
type TripContext struct {
	Budget     string `json:"budget"`
	Companions string `json:"companions"`
	TravelTime string `json:"travel_time"`
}

// TripContextFromProfile takes the best value of each trip field
func TripContextFromProfile(p *UserProfile) TripContext {
	var tc TripContext
	tc.Budget, _ = p.Best(CategoryBudget)
	tc.Companions, _ = p.Best(CategoryCompanions)
	tc.TravelTime, _ = p.Best(CategoryTravelTime)
	return tc
}

// Missing lists the unset fields by category name
func (tc TripContext) Missing() []string {
	var out []string
	if strings.TrimSpace(tc.Budget) == "" {
		out = append(out, CategoryBudget)
	}
	if strings.TrimSpace(tc.Companions) == "" {
		out = append(out, CategoryCompanions)
	}
	if strings.TrimSpace(tc.TravelTime) == "" {
		out = append(out, CategoryTravelTime)
	}
	return out
}

// RecommendationLog is a row of the recommendation log
type RecommendationLog struct {
	ID          int64       `json:"id"`
	Destination string      `json:"destination"`
	Alternative string      `json:"alternative,omitempty"`
	Rationale   string      `json:"rationale"`
	Trip        TripContext `json:"trip_details"`
	Personal    bool        `json:"personalized"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Feedback is a row of the feedback log
type Feedback struct {
	ID          int64     `json:"id"`
	Destination string    `json:"destination"`
	Preferred   []string  `json:"preferred"`
	Hated       []string  `json:"hated"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

// NormalizeDestination canonicalizes "City, Country" for comparisons:
// lower case, single spaces, exactly ", " between parts.
func NormalizeDestination(s string) string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.Join(strings.Fields(strings.ToLower(p)), " ")
	}
	return strings.Trim(strings.Join(parts, ", "), ", ")
}

// CanonicalDestination returns the trimmed "City, Country" form, or false
// when s does not have exactly two non-empty comma separated parts.
func CanonicalDestination(s string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return "", false
	}
	city := strings.Join(strings.Fields(parts[0]), " ")
	country := strings.Join(strings.Fields(parts[1]), " ")
	if city == "" || country == "" {
		return "", false
	}
	return city + ", " + country, true
}

// ContainsDestination reports whether dest normalizes to any entry of list
func ContainsDestination(list []string, dest string) bool {
	n := NormalizeDestination(dest)
	if n == "" {
		return false
	}
	for _, d := range list {
		if NormalizeDestination(d) == n {
			return true
		}
	}
	return false
}
