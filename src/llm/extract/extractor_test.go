package extract

import (
	"context"
	"testing"

	"travel_agent/src"
	"travel_agent/src/llm"
	"travel_agent/src/llm/llmtest"
	"travel_agent/src/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T, oracle llm.Oracle) *Extractor {
	t.Helper()
	e, err := NewExtractor(context.Background(), oracle, mustDialogue(t))
	require.NoError(t, err)
	return e
}

func TestExtractUsesOracleReply(t *testing.T) {
	oracle := llmtest.NewScriptedOracle(llmtest.Texts(`{"name": {"Ana": 0.95}, "activities": {"diving": 0.8}}`)...)
	e := newTestExtractor(t, oracle)

	facts := e.Extract(context.Background(), "I'm Ana and I love diving", []string{"name", "activities", "budget"})
	assert.Equal(t, 0.95, facts["name"]["Ana"])
	assert.Equal(t, 0.8, facts["activities"]["diving"])
	assert.Empty(t, facts["budget"])

	require.Equal(t, 1, oracle.CallCount())
	call := oracle.Calls[0]
	assert.Contains(t, call.System, "name, activities, budget")
	assert.Contains(t, call.System, `{"activities": {"snorkeling": 0.9`)
	require.Len(t, call.History, 1)
	assert.Contains(t, call.History[0].Content, "I love diving")
}

func TestExtractKeywordFallbackScenario(t *testing.T) {
	oracle := llmtest.NewScriptedOracle(llmtest.Texts("The user seems to enjoy the beach.")...)
	e := newTestExtractor(t, oracle)

	categories := []string{"activities", "travel_style", "climate_preference", "budget_level"}
	facts := e.Extract(context.Background(), "I love relaxing on tropical beaches with my family, budget is moderate", categories)

	assert.NotEmpty(t, facts["activities"])
	assert.True(t, len(facts["travel_style"]) > 0 || len(facts["climate_preference"]) > 0)
	assert.NotEmpty(t, facts["budget_level"])
	for _, values := range facts {
		for _, c := range values {
			assert.Greater(t, c, 0.0)
		}
	}
}

func TestExtractOracleFailureYieldsTypedEmpty(t *testing.T) {
	e := newTestExtractor(t, llmtest.Failing{})

	facts := e.Extract(context.Background(), "I love tropical beaches", []string{"activities", "climate_preference"})
	assert.True(t, facts.Empty())
	assert.Len(t, facts, 2)
}

func TestExtractTrip(t *testing.T) {
	oracle := llmtest.NewScriptedOracle(llmtest.Texts(
		`{"destination": "  Lisbon ,  Portugal", "activities": ["surfing", " ", "eating pastéis"], "liked": ["the food"], "disliked": null}`,
		`{"destination": "Portugal", "activities": []}`,
		"cannot tell",
	)...)
	e := newTestExtractor(t, oracle)
	ctx := context.Background()

	trip := e.ExtractTrip(ctx, "We went to Lisbon last year")
	assert.Equal(t, "Lisbon, Portugal", trip.Destination)
	assert.Equal(t, []string{"surfing", "eating pastéis"}, trip.Activities)
	assert.Equal(t, []string{"the food"}, trip.Liked)
	assert.Empty(t, trip.Disliked)

	trip = e.ExtractTrip(ctx, "We toured Portugal")
	assert.Empty(t, trip.Destination)

	trip = e.ExtractTrip(ctx, "Two weeks in Kyoto, Japan eating ramen")
	assert.Equal(t, "Kyoto, Japan", trip.Destination)
}

func mustDialogue(t *testing.T) model.DialogueConfig {
	t.Helper()
	dc, err := src.LoadDialogueConfig("")
	require.NoError(t, err)
	return *dc
}
