package recommend

import (
	"strings"

	"travel_agent/src/model"
)

// Destination is a catalogue entry used when the oracle cannot give a usable answer
type Destination struct {
	Name        string   `json:"name"`
	Activities  []string `json:"activities"`
	Styles      []string `json:"styles"`
	Climate     string   `json:"climate"`
	BudgetLevel string   `json:"budget_level"`
	Summary     string   `json:"summary"`
}

// Catalog is a small static list of destinations scored against a profile
type Catalog struct {
	destinations []Destination
}

func NewCatalog() *Catalog {
	return &Catalog{
		destinations: []Destination{
			{
				Name:        "Bali, Indonesia",
				Activities:  []string{"surf", "swim", "relax", "temple", "hike", "beach"},
				Styles:      []string{"relaxed", "nature", "adventure"},
				Climate:     "tropical",
				BudgetLevel: "moderate",
				Summary:     "Bali mixes surf beaches, rice terraces and temples at a relaxed pace.",
			},
			{
				Name:        "Kyoto, Japan",
				Activities:  []string{"temple", "eat", "food", "walk", "explore", "garden"},
				Styles:      []string{"cultural", "relaxed"},
				Climate:     "moderate",
				BudgetLevel: "luxury",
				Summary:     "Kyoto rewards slow walks between temples, gardens and excellent food.",
			},
			{
				Name:        "Queenstown, New Zealand",
				Activities:  []string{"hike", "adventure", "ski", "bungee", "explore"},
				Styles:      []string{"adventure", "nature", "busy"},
				Climate:     "cold",
				BudgetLevel: "luxury",
				Summary:     "Queenstown is built for adventure with alpine hikes and lake views.",
			},
			{
				Name:        "Lisbon, Portugal",
				Activities:  []string{"surf", "eat", "food", "walk", "explore", "shop"},
				Styles:      []string{"cultural", "relaxed"},
				Climate:     "moderate",
				BudgetLevel: "budget",
				Summary:     "Lisbon offers hilly neighbourhoods, seafood and nearby surf for a fair price.",
			},
			{
				Name:        "Cusco, Peru",
				Activities:  []string{"hike", "explore", "history", "adventure"},
				Styles:      []string{"adventure", "cultural"},
				Climate:     "cold",
				BudgetLevel: "budget",
				Summary:     "Cusco is the gateway to Inca trails and the Sacred Valley.",
			},
			{
				Name:        "Chiang Mai, Thailand",
				Activities:  []string{"eat", "food", "relax", "temple", "hike", "shop"},
				Styles:      []string{"relaxed", "cultural"},
				Climate:     "tropical",
				BudgetLevel: "budget",
				Summary:     "Chiang Mai pairs night markets and temples with easy jungle hikes.",
			},
			{
				Name:        "Reykjavik, Iceland",
				Activities:  []string{"hike", "explore", "hot spring", "adventure"},
				Styles:      []string{"nature", "adventure"},
				Climate:     "cold",
				BudgetLevel: "luxury",
				Summary:     "Reykjavik is a base for glaciers, waterfalls and geothermal pools.",
			},
			{
				Name:        "Barcelona, Spain",
				Activities:  []string{"eat", "shop", "walk", "swim", "explore", "beach"},
				Styles:      []string{"busy", "cultural"},
				Climate:     "moderate",
				BudgetLevel: "moderate",
				Summary:     "Barcelona combines beaches, tapas and Gaudi architecture in one busy city.",
			},
		},
	}
}

// Best returns the highest scoring destination not in exclude
func (c *Catalog) Best(profile *model.UserProfile, exclude []string) (Destination, bool) {
	var (
		best  Destination
		score = -1.0
	)
	for _, d := range c.destinations {
		if model.ContainsDestination(exclude, d.Name) {
			continue
		}
		if s := c.score(d, profile); s > score {
			best, score = d, s
		}
	}
	return best, score >= 0
}

// Summary returns the catalogue blurb for name, or a neutral line when the
// destination is not in the catalogue.
func (c *Catalog) Summary(name string) string {
	for _, d := range c.destinations {
		if model.ContainsDestination([]string{d.Name}, name) {
			return d.Summary
		}
	}
	return "It fits what you've told me about how you like to travel."
}

func (c *Catalog) score(d Destination, p *model.UserProfile) float64 {
	if p == nil {
		return 0
	}
	var s float64
	for _, e := range p.Attributes["activities"] {
		if matchesAny(e.Value, d.Activities) {
			s += e.Confidence
		}
	}
	for _, e := range p.Attributes["travel_style"] {
		if matchesAny(e.Value, d.Styles) {
			s += e.Confidence
		}
	}
	for _, e := range p.Attributes["climate_preference"] {
		if strings.Contains(strings.ToLower(e.Value), d.Climate) {
			s += e.Confidence
		}
	}
	for _, e := range p.Attributes["budget_level"] {
		if strings.Contains(strings.ToLower(e.Value), d.BudgetLevel) {
			s += e.Confidence
		}
	}
	return s
}

func matchesAny(value string, keywords []string) bool {
	v := strings.ToLower(value)
	for _, k := range keywords {
		if strings.Contains(v, k) {
			return true
		}
	}
	return false
}
