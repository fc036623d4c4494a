package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"travel_agent/src/model"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	reply    string
	err      error
	delay    time.Duration
	received []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.received = input
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestChatOraclePrependsSystemMessage(t *testing.T) {
	fake := &fakeChatModel{reply: "Hello there"}
	o := NewChatOracle(fake, time.Second)

	out, err := o.Complete(context.Background(), "be brief", []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)

	require.Len(t, fake.received, 2)
	assert.Equal(t, schema.System, fake.received[0].Role)
	assert.Equal(t, "be brief", fake.received[0].Content)
	assert.Equal(t, schema.User, fake.received[1].Role)
}

func TestChatOracleTimeout(t *testing.T) {
	o := NewChatOracle(&fakeChatModel{reply: "late", delay: time.Second}, 20*time.Millisecond)

	_, err := o.Complete(context.Background(), "", nil)
	var oe *model.OracleError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "timeout", oe.Op)
}

func TestChatOracleWrapsFailures(t *testing.T) {
	_, err := NewChatOracle(&fakeChatModel{err: errors.New("boom")}, 0).Complete(context.Background(), "x", nil)
	var oe *model.OracleError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "generate", oe.Op)

	_, err = NewChatOracle(&fakeChatModel{reply: "   "}, 0).Complete(context.Background(), "x", nil)
	assert.ErrorAs(t, err, &oe)
}

func TestNewChatModelRejectsUnknownProvider(t *testing.T) {
	_, err := NewChatModel(context.Background(), model.LLMConfig{Provider: "parrot"})
	var ve *model.ValidationError
	assert.ErrorAs(t, err, &ve)
}
