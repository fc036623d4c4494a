package recommend

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

func getRecommendSystemTemplate() string {
	return `You are a friendly travel advisor. Recommend ONE destination for the traveller's next trip and at most one alternative.

Traveller profile:
{profile}
Relevant memories:
{memories}
Trip details:
- budget: {budget}
- companions: {companions}
- travel time: {travel_time}

{focus}
Never recommend any of these places, the traveller has already been there: {exclude}
Previous suggestion in this conversation: {previous}

RULES:
1. Destinations are written as "City, Country".
2. Never name more than two destinations.
3. The rationale is exactly {sentences} sentences and speaks to the traveller directly.
4. Return ONLY one JSON object, no prose and no code fences:
{{"destination": "City, Country", "alternative": "City, Country or empty", "rationale": "..."}}`
}

func createRecommendTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(getRecommendSystemTemplate()),
	)
}
