package extract

import (
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

var categoryNotes = map[string]string{
	"name":               "the traveller's first name, only if they say it",
	"activities":         "things they enjoy doing on a trip (hiking, swimming, food tours, museums)",
	"travel_style":       "pace or focus of their travel (relaxed, busy, cultural, nature, adventure)",
	"climate_preference": "weather they enjoy on holiday (tropical, moderate, cold)",
	"budget_level":       "how they usually spend (budget, moderate, luxury)",
	"budget":             "the amount or range they mention for this trip",
	"companions":         "who is coming along (solo, partner, family, friends)",
	"travel_time":        "when they want to go (month, season, dates)",
}

func getFactsSystemTemplate() string {
	return `You extract travel facts from one message. Follow the rules exactly.

Categories to extract (and nothing else): {categories}

Category notes:
{notes}

RULES:
1. Return ONLY one JSON object, no prose and no code fences.
2. Every listed category is a key. Its value is an object mapping each stated value to a confidence between 0 and 1.
3. Use an empty object for a category the message does not mention.
4. Only extract what the message states. Do not guess.

Example for categories activities, budget_level:
{{"activities": {{"snorkeling": 0.9, "eating street food": 0.8}}, "budget_level": {{}}}}`
}

func getTripSystemTemplate() string {
	return `You read a traveller's account of a past trip and return ONLY one JSON object:
{{"destination": "City, Country", "activities": ["..."], "liked": ["..."], "disliked": ["..."]}}

RULES:
1. destination is a single city and its country written as "City, Country". Use null when the city or the country is unclear.
2. activities are short phrases describing what they did.
3. liked and disliked are short phrases about what they enjoyed or did not enjoy. Use empty lists when nothing is said.
4. No prose and no code fences.`
}

func createFactsTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(getFactsSystemTemplate()),
		schema.UserMessage("Message: {utterance}"),
	)
}

func createTripTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(getTripSystemTemplate()),
		schema.UserMessage("Trip description: {utterance}"),
	)
}

func describeCategories(categories []string) string {
	var b strings.Builder
	for _, c := range categories {
		note, ok := categoryNotes[c]
		if !ok {
			note = "anything the traveller states about " + strings.ReplaceAll(c, "_", " ")
		}
		b.WriteString("- " + c + ": " + note + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
