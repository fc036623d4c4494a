package conversation

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

type ContextStrategy interface {
	BuildContext(messages []*schema.Message) string
}

// WindowStrategy renders the last maxTurns messages for a prompt
type WindowStrategy struct {
	maxTurns int
}

func NewWindowStrategy(maxTurns int) *WindowStrategy {
	return &WindowStrategy{maxTurns: maxTurns}
}

func (s *WindowStrategy) BuildContext(messages []*schema.Message) string {
	recentMessages := trimTail(messages, s.maxTurns)
	if len(recentMessages) == 0 {
		return "<conversation_context>\n(no earlier messages)\n</conversation_context>"
	}

	var contextBuilder strings.Builder
	contextBuilder.WriteString("<conversation_context>\n")
	for _, msg := range recentMessages {
		switch msg.Role {
		case schema.User:
			contextBuilder.WriteString("UserMessage(" + msg.Content + ")\n")
		case schema.Assistant:
			contextBuilder.WriteString("AssistantMessage(" + msg.Content + ")\n")
		}
	}
	contextBuilder.WriteString("</conversation_context>")
	return contextBuilder.String()
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
