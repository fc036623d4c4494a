package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"travel_agent/src/logger"
	"travel_agent/src/model"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Oracle is the language model seen as a black box: instructions and history in, text out
type Oracle interface {
	Complete(ctx context.Context, system string, history []*schema.Message) (string, error)
}

// ChatOracle adapts any eino chat model to Oracle
type ChatOracle struct {
	model   einomodel.BaseChatModel
	timeout time.Duration
}

func NewChatOracle(m einomodel.BaseChatModel, timeout time.Duration) *ChatOracle {
	return &ChatOracle{model: m, timeout: timeout}
}

// Complete makes one attempt. Every failure comes back as *model.OracleError.
func (o *ChatOracle) Complete(ctx context.Context, system string, history []*schema.Message) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	messages := make([]*schema.Message, 0, len(history)+1)
	if system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	messages = append(messages, history...)

	start := time.Now()
	out, err := o.model.Generate(ctx, messages)
	elapsed := time.Since(start)
	if err != nil {
		op := "generate"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			op = "timeout"
		}
		return "", &model.OracleError{Op: op, Err: err}
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", &model.OracleError{Op: "generate", Err: errors.New("empty reply")}
	}

	logger.Debug().
		Int("messages", len(messages)).
		Dur("elapsed", elapsed).
		Msg("oracle completed")
	return out.Content, nil
}
