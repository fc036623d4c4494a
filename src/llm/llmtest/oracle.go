// Package llmtest provides a scripted Oracle for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"travel_agent/src/model"

	"github.com/cloudwego/eino/schema"
)

// Call records what the oracle was asked
type Call struct {
	System  string
	History []*schema.Message
}

// Reply is one scripted answer
type Reply struct {
	Text string
	Err  error
}

// ScriptedOracle answers from a queue. Once the queue is empty it keeps
// returning Fallback, or an OracleError when Fallback is empty.
type ScriptedOracle struct {
	mu       sync.Mutex
	replies  []Reply
	Fallback string
	Calls    []Call
}

func NewScriptedOracle(replies ...Reply) *ScriptedOracle {
	return &ScriptedOracle{replies: replies}
}

// Texts is shorthand for a queue of successful replies
func Texts(texts ...string) []Reply {
	out := make([]Reply, len(texts))
	for i, t := range texts {
		out[i] = Reply{Text: t}
	}
	return out
}

func (o *ScriptedOracle) Push(replies ...Reply) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replies = append(o.replies, replies...)
}

func (o *ScriptedOracle) Complete(_ context.Context, system string, history []*schema.Message) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Calls = append(o.Calls, Call{System: system, History: history})
	if len(o.replies) == 0 {
		if o.Fallback == "" {
			return "", &model.OracleError{Op: "generate", Err: errors.New("script exhausted")}
		}
		return o.Fallback, nil
	}
	r := o.replies[0]
	o.replies = o.replies[1:]
	return r.Text, r.Err
}

func (o *ScriptedOracle) CallCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Calls)
}

// Failing always returns an OracleError
type Failing struct{ Err error }

func (f Failing) Complete(context.Context, string, []*schema.Message) (string, error) {
	err := f.Err
	if err == nil {
		err = context.DeadlineExceeded
	}
	return "", &model.OracleError{Op: "timeout", Err: err}
}
