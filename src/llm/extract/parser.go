package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"travel_agent/src/model"

	"github.com/bytedance/sonic"
)

var (
	errNoObject = errors.New("no JSON object in reply")

	destinationPattern = regexp.MustCompile(`\b([A-Z][\p{L}'-]+(?: [A-Z][\p{L}'-]+)*), ([A-Z][\p{L}'-]+(?: [A-Z][\p{L}'-]+)*)`)
)

// Strategy is one way of turning an oracle reply into facts. The decoder tries
// strategies in order and keeps the first that succeeds.
type Strategy interface {
	Name() string
	Decode(reply, utterance string, categories []string) (model.Facts, error)
}

// Decoder is the fallible decoder for the JSON-in-text channel
type Decoder struct {
	strategies []Strategy
}

func NewDecoder(strategies ...Strategy) *Decoder {
	return &Decoder{strategies: strategies}
}

// NewFactsDecoder returns the standard cascade: whole reply, outermost braces, keywords
func NewFactsDecoder(keywords map[string][]string, defaultConfidence float64) *Decoder {
	return NewDecoder(
		directStrategy{defaultConfidence: defaultConfidence},
		bracesStrategy{defaultConfidence: defaultConfidence},
		keywordStrategy{keywords: keywords, confidence: defaultConfidence},
	)
}

// Decode never fails: when every strategy fails it returns the empty-but-typed result
func (d *Decoder) Decode(reply, utterance string, categories []string) (model.Facts, string) {
	for _, s := range d.strategies {
		facts, err := s.Decode(reply, utterance, categories)
		if err == nil {
			return facts, s.Name()
		}
	}
	return model.NewFacts(categories), "empty"
}

type directStrategy struct{ defaultConfidence float64 }

func (directStrategy) Name() string { return "direct" }

func (s directStrategy) Decode(reply, _ string, categories []string) (model.Facts, error) {
	var obj map[string]any
	if err := sonic.UnmarshalString(strings.TrimSpace(reply), &obj); err != nil {
		return nil, err
	}
	return factsFromObject(obj, categories, s.defaultConfidence), nil
}

type bracesStrategy struct{ defaultConfidence float64 }

func (bracesStrategy) Name() string { return "braces" }

func (s bracesStrategy) Decode(reply, _ string, categories []string) (model.Facts, error) {
	inner, err := outermostObject(reply)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := sonic.UnmarshalString(inner, &obj); err != nil {
		return nil, err
	}
	return factsFromObject(obj, categories, s.defaultConfidence), nil
}

// keywordStrategy ignores the reply and scans the utterance itself
type keywordStrategy struct {
	keywords   map[string][]string
	confidence float64
}

func (keywordStrategy) Name() string { return "keywords" }

func (s keywordStrategy) Decode(_, utterance string, categories []string) (model.Facts, error) {
	text := strings.ToLower(utterance)
	facts := model.NewFacts(categories)
	for _, category := range categories {
		for _, kw := range s.keywords[category] {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				facts.Add(category, kw, s.confidence)
			}
		}
	}
	if facts.Empty() {
		return nil, fmt.Errorf("no keywords matched")
	}
	return facts, nil
}

func outermostObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errNoObject
	}
	return text[start : end+1], nil
}

// DecodeJSON decodes a reply into v, first as a whole, then from its outermost braces
func DecodeJSON(reply string, v any) error {
	err := sonic.UnmarshalString(strings.TrimSpace(reply), v)
	if err == nil {
		return nil
	}
	inner, ierr := outermostObject(reply)
	if ierr != nil {
		return err
	}
	return sonic.UnmarshalString(inner, v)
}

// FindDestinations returns "City, Country" mentions in order of appearance
func FindDestinations(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range destinationPattern.FindAllStringSubmatch(text, -1) {
		d := m[1] + ", " + m[2]
		if key := model.NormalizeDestination(d); !seen[key] {
			seen[key] = true
			out = append(out, d)
		}
	}
	return out
}

func factsFromObject(obj map[string]any, categories []string, defaultConfidence float64) model.Facts {
	lowered := make(map[string]any, len(obj))
	for k, v := range obj {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}

	facts := model.NewFacts(categories)
	for _, category := range categories {
		switch v := lowered[category].(type) {
		case map[string]any:
			for value, score := range v {
				if isNullValue(value) {
					continue
				}
				if c, ok := confidenceOf(score, defaultConfidence); ok {
					facts.Add(category, value, c)
				}
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && !isNullValue(s) {
					facts.Add(category, s, defaultConfidence)
				}
			}
		case string:
			if !isNullValue(v) {
				facts.Add(category, v, defaultConfidence)
			}
		}
	}
	return facts
}

func confidenceOf(v any, fallback float64) (float64, bool) {
	switch s := v.(type) {
	case float64:
		return model.ClampConfidence(s), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fallback, true
		}
		return model.ClampConfidence(f), true
	case bool:
		return fallback, s
	case nil:
		return 0, false
	}
	return fallback, true
}

func isNullValue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null", "n/a", "unknown":
		return true
	}
	return false
}
