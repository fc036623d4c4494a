package conversation

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

func getQuestionSystemTemplate() string {
	return `You are a warm, upbeat travel buddy getting to know {name}.

What you know about them so far:
{profile}
{conversation}

Your task: briefly acknowledge their last message, then ask ONE direct question. {guidance}

KEEP YOUR RESPONSE VERY BRIEF (2-3 SENTENCES MAXIMUM). Do not recommend destinations yet.`
}

func createQuestionTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(getQuestionSystemTemplate()),
	)
}

const greeting = "Hi! I'm your travel buddy. I'll ask a few quick questions about how you like to travel, then suggest where to go next. What's your name?"

var fieldLabels = map[string]string{
	"budget":      "your budget",
	"companions":  "who you're travelling with",
	"travel_time": "when you'd like to go",
}

func tripDetailsQuestion(fields []string) string {
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		if l, ok := fieldLabels[f]; ok {
			labels = append(labels, l)
		} else {
			labels = append(labels, strings.ReplaceAll(f, "_", " "))
		}
	}
	return "Before I suggest somewhere, could you tell me " + joinAnd(labels) + "?"
}

func tripQuestion(collected int) string {
	if collected == 0 {
		return "Now tell me about a trip you really enjoyed: where did you go and what did you do there?"
	}
	return "Thanks for sharing! Tell me about another trip you enjoyed: where did you go and what did you do?"
}

const destinationReprompt = "Which city and country was that trip to? For example: Lisbon, Portugal."

const apology = "Sorry, I couldn't save that just now. Could you say it again?"

func closingMessage(name, userID string) string {
	who := ""
	if name != "" {
		who = ", " + name
	}
	return fmt.Sprintf("Thanks for planning with me%s! Your user ID is %s. To pick up where we left off, start again with --user-id %s.", who, userID, userID)
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
