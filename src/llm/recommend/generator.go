package recommend

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"travel_agent/src/llm"
	"travel_agent/src/llm/extract"
	"travel_agent/src/logger"
	"travel_agent/src/model"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"
)

// Memory is the slice of the profile store the generator reads from
type Memory interface {
	SimilarityQuery(ctx context.Context, userID, query string, k int) ([]string, error)
	MemoryCount(ctx context.Context, userID string) (int, error)
}

type Request struct {
	Profile      *model.UserProfile
	Trip         model.TripContext
	Exclude      []string
	History      []*schema.Message
	Previous     string
	Personalized bool
}

type Recommendation struct {
	Destination string
	Alternative string
	Rationale   string
	Text        string
	// Fallback is set when the text came from the catalogue instead of the oracle
	Fallback bool
}

type Generator struct {
	oracle     llm.Oracle
	memory     Memory
	tmpl       prompt.ChatTemplate
	catalog    *Catalog
	categories []string
	sentences  int
	maxK       int
}

func NewGenerator(oracle llm.Oracle, memory Memory, config model.DialogueConfig) *Generator {
	return &Generator{
		oracle:     oracle,
		memory:     memory,
		tmpl:       createRecommendTemplate(),
		catalog:    NewCatalog(),
		categories: config.RequiredCategories,
		sentences:  config.RecommendationSentences,
		maxK:       config.MemoryK,
	}
}

type reply struct {
	Destination  string   `json:"destination"`
	Alternative  string   `json:"alternative"`
	Destinations []string `json:"destinations"`
	Rationale    string   `json:"rationale"`
}

// Recommend refuses to call the oracle unless budget, companions and travel
// time are all known; it returns a *model.MissingInfoError instead. The result
// never names a destination from req.Exclude.
func (g *Generator) Recommend(ctx context.Context, req Request) (*Recommendation, error) {
	if missing := req.Trip.Missing(); len(missing) > 0 {
		return nil, &model.MissingInfoError{Fields: missing}
	}
	if req.Profile == nil {
		return nil, fmt.Errorf("recommend: profile is required")
	}

	memories := g.memories(ctx, req)
	messages, err := g.tmpl.Format(ctx, map[string]any{
		"profile":     strings.TrimRight(req.Profile.Summary(g.categories), "\n"),
		"memories":    bulletList(memories, "- none yet"),
		"budget":      req.Trip.Budget,
		"companions":  req.Trip.Companions,
		"travel_time": req.Trip.TravelTime,
		"focus":       focus(req.Personalized),
		"exclude":     orNone(strings.Join(req.Exclude, "; ")),
		"previous":    orNone(req.Previous),
		"sentences":   g.sentences,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("recommendation prompt formatting failed")
		return g.fallback(req), nil
	}

	history := append(append([]*schema.Message{}, req.History...), schema.UserMessage("Where should I go next?"))
	text, err := g.oracle.Complete(ctx, messages[0].Content, history)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", req.Profile.UserID).Msg("recommendation oracle failed, using catalogue")
		return g.fallback(req), nil
	}

	rec := g.shape(text, req.Exclude)
	if rec == nil {
		logger.Warn().Str("user_id", req.Profile.UserID).Msg("no usable destination in reply, using catalogue")
		return g.fallback(req), nil
	}
	return rec, nil
}

func (g *Generator) memories(ctx context.Context, req Request) []string {
	if g.memory == nil {
		return nil
	}
	userID := req.Profile.UserID
	total, err := g.memory.MemoryCount(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("memory count failed")
		return nil
	}
	k := min(g.maxK, max(1, total))
	query := strings.Join(lo.Compact([]string{
		strings.Join(req.Profile.Values("activities"), " "),
		strings.Join(req.Profile.Values("travel_style"), " "),
		req.Trip.Companions,
		req.Trip.TravelTime,
	}), " ")
	snippets, err := g.memory.SimilarityQuery(ctx, userID, query, k)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("memory retrieval failed")
		return nil
	}
	return snippets
}

// shape enforces one primary destination plus at most one alternative and the
// exclusion list. It returns nil when nothing usable is left.
func (g *Generator) shape(text string, exclude []string) *Recommendation {
	var (
		names     []string
		rationale string
		r         reply
	)
	if err := extract.DecodeJSON(text, &r); err == nil {
		names = append(names, r.Destination, r.Alternative)
		names = append(names, r.Destinations...)
		rationale = r.Rationale
	} else {
		names = extract.FindDestinations(text)
		rationale = text
	}

	names = lo.UniqBy(lo.FilterMap(names, func(n string, _ int) (string, bool) {
		return model.CanonicalDestination(n)
	}), model.NormalizeDestination)
	mentioned := append(append(append([]string{}, names...), extract.FindDestinations(rationale)...), exclude...)
	if len(names) > 2 {
		names = names[:1]
	}
	names = lo.Reject(names, func(n string, _ int) bool { return model.ContainsDestination(exclude, n) })
	if len(names) == 0 {
		return nil
	}

	rec := &Recommendation{Destination: names[0]}
	if len(names) > 1 {
		rec.Alternative = names[1]
	}
	rec.Rationale = FirstSentences(scrubRationale(rationale, names, mentioned), g.sentences)
	if rec.Rationale == "" {
		rec.Rationale = g.catalog.Summary(rec.Destination)
	}
	rec.Text = render(rec)
	return rec
}

// scrubRationale drops every sentence naming a destination from mentioned
// that is not in keep.
func scrubRationale(text string, keep, mentioned []string) string {
	keepCities := lo.Map(keep, func(d string, _ int) string { return cityOf(d) })
	others := lo.Uniq(lo.FilterMap(mentioned, func(d string, _ int) (string, bool) {
		city := cityOf(d)
		return city, city != "" && !model.ContainsDestination(keep, d) && !lo.Contains(keepCities, city)
	}))
	if len(others) == 0 {
		return text
	}
	kept := lo.Reject(splitSentences(text), func(s string, _ int) bool {
		lower := strings.ToLower(s)
		return lo.SomeBy(others, func(city string) bool { return strings.Contains(lower, city) })
	})
	return strings.Join(kept, " ")
}

func cityOf(dest string) string {
	city, _, _ := strings.Cut(model.NormalizeDestination(dest), ",")
	return strings.TrimSpace(city)
}

// splitSentences breaks text on '.', '!' or '?' followed by whitespace
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = append(out, strings.TrimSpace(string(runes[start:i+1])))
		start = i + 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

func (g *Generator) fallback(req Request) *Recommendation {
	d, ok := g.catalog.Best(req.Profile, req.Exclude)
	if !ok {
		return &Recommendation{
			Fallback: true,
			Text:     "I couldn't come up with a new destination right now. Let's try again a little later.",
		}
	}
	rec := &Recommendation{
		Destination: d.Name,
		Rationale:   FirstSentences(d.Summary, g.sentences),
		Fallback:    true,
	}
	rec.Text = render(rec)
	return rec
}

func render(rec *Recommendation) string {
	var b strings.Builder
	b.WriteString("How about " + rec.Destination + "?")
	if rec.Rationale != "" {
		b.WriteString(" " + rec.Rationale)
	}
	if rec.Alternative != "" {
		b.WriteString(" If that doesn't appeal, " + rec.Alternative + " is a good alternative.")
	}
	return b.String()
}

// FirstSentences keeps at most n sentences of text
func FirstSentences(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if n <= 0 || text == "" {
		return text
	}
	count := 0
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		count++
		if count == n {
			return string(runes[:i+1])
		}
	}
	return text
}

func focus(personalized bool) string {
	if personalized {
		return "Base the suggestion on the past trips and memories above: find somewhere new with what they enjoyed before."
	}
	return "Base the suggestion on the profile and trip details above."
}

func bulletList(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return "- " + strings.Join(items, "\n- ")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}
