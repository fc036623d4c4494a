package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"travel_agent/src/llm"
	"travel_agent/src/logger"
	"travel_agent/src/model"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"
)

// Extractor turns one utterance into candidate facts through the oracle
type Extractor struct {
	factsChain compose.Runnable[map[string]any, string]
	tripChain  compose.Runnable[map[string]any, string]
	decoder    *Decoder
}

func NewExtractor(ctx context.Context, oracle llm.Oracle, config model.DialogueConfig) (*Extractor, error) {
	factsChain, err := newOracleChain(ctx, createFactsTemplate(), oracle)
	if err != nil {
		return nil, fmt.Errorf("error creating facts chain: %w", err)
	}
	tripChain, err := newOracleChain(ctx, createTripTemplate(), oracle)
	if err != nil {
		return nil, fmt.Errorf("error creating trip chain: %w", err)
	}
	return &Extractor{
		factsChain: factsChain,
		tripChain:  tripChain,
		decoder:    NewFactsDecoder(config.Keywords, config.DefaultConfidence),
	}, nil
}

// newOracleChain compiles Template → Oracle into one runnable
func newOracleChain(ctx context.Context, tmpl prompt.ChatTemplate, oracle llm.Oracle) (compose.Runnable[map[string]any, string], error) {
	complete := compose.InvokableLambda(func(ctx context.Context, messages []*schema.Message) (string, error) {
		system, history := splitSystem(messages)
		return oracle.Complete(ctx, system, history)
	})
	return compose.NewChain[map[string]any, string]().
		AppendChatTemplate(tmpl).
		AppendLambda(complete).
		Compile(ctx)
}

// Extract never fails. An oracle failure yields the empty-but-typed result;
// an unreadable reply falls through the decoder cascade.
func (e *Extractor) Extract(ctx context.Context, utterance string, categories []string) model.Facts {
	start := time.Now()
	reply, err := e.factsChain.Invoke(ctx, map[string]any{
		"categories": strings.Join(categories, ", "),
		"notes":      describeCategories(categories),
		"utterance":  utterance,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("fact extraction failed, continuing without facts")
		return model.NewFacts(categories)
	}

	facts, strategy := e.decoder.Decode(reply, utterance, categories)
	logger.Debug().
		Str("strategy", strategy).
		Strs("touched", facts.Touched()).
		Dur("elapsed", time.Since(start)).
		Msg("facts extracted")
	return facts
}

type tripReply struct {
	Destination *string  `json:"destination"`
	Activities  []string `json:"activities"`
	Liked       []string `json:"liked"`
	Disliked    []string `json:"disliked"`
}

// ExtractTrip pulls destination, activities and likes out of a trip account.
// Destination is left empty unless it is in "City, Country" form.
func (e *Extractor) ExtractTrip(ctx context.Context, utterance string) model.TripFacts {
	var out model.TripFacts

	reply, err := e.tripChain.Invoke(ctx, map[string]any{"utterance": utterance})
	if err != nil {
		logger.Warn().Err(err).Msg("trip extraction failed")
	} else {
		var tr tripReply
		if err := DecodeJSON(reply, &tr); err != nil {
			logger.Warn().Err(err).Msg("trip reply not decodable")
		} else {
			if tr.Destination != nil {
				out.Destination, _ = model.CanonicalDestination(*tr.Destination)
			}
			out.Activities = cleanList(tr.Activities)
			out.Liked = cleanList(tr.Liked)
			out.Disliked = cleanList(tr.Disliked)
		}
	}

	if out.Destination == "" {
		if found := FindDestinations(utterance); len(found) > 0 {
			out.Destination = found[0]
		}
	}
	return out
}

func splitSystem(messages []*schema.Message) (string, []*schema.Message) {
	var system string
	var history []*schema.Message
	for _, m := range messages {
		if m.Role == schema.System && system == "" {
			system = m.Content
			continue
		}
		history = append(history, m)
	}
	return system, history
}

func cleanList(items []string) []string {
	items = lo.Map(items, func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Uniq(lo.Filter(items, func(s string, _ int) bool { return !isNullValue(s) }))
}
