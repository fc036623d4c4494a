package model

// DialogueConfig is the yaml-driven part of the configuration: which categories
// the dialogue must fill, how to recognise them offline and how to ask for them.
type DialogueConfig struct {
	RequiredCategories      []string            `yaml:"required_categories"`
	Priorities              []string            `yaml:"priorities"`
	TripCategories          []string            `yaml:"trip_categories"`
	Keywords                map[string][]string `yaml:"keywords"`
	DefaultConfidence       float64             `yaml:"default_confidence"`
	Questions               map[string]string   `yaml:"questions"`
	Guidance                map[string]string   `yaml:"guidance"`
	ExitPhrases             []string            `yaml:"exit_phrases"`
	TurnLimit               int                 `yaml:"turn_limit"`
	MinDistinctValues       int                 `yaml:"min_distinct_values"`
	WindowMessages          int                 `yaml:"window_messages"`
	TripsToCollect          int                 `yaml:"trips_to_collect"`
	MaxReprompts            int                 `yaml:"max_reprompts"`
	RecommendationSentences int                 `yaml:"recommendation_sentences"`
	MemoryK                 int                 `yaml:"memory_k"`
}

// ExpectedCategories is what every extraction call asks for
func (c DialogueConfig) ExpectedCategories() []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range [][]string{c.RequiredCategories, c.TripCategories} {
		for _, cat := range list {
			if !seen[cat] {
				seen[cat] = true
				out = append(out, cat)
			}
		}
	}
	return out
}

// Question returns the canned question for a category
func (c DialogueConfig) Question(category string) string {
	if q, ok := c.Questions[category]; ok && q != "" {
		return q
	}
	return "Could you tell me a bit more about your " + category + "?"
}
