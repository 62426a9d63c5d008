package testutil

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// FakeChatModel is a scripted eino chat model for tests.
type FakeChatModel struct {
	// Reply is returned as the assistant content when Respond is nil.
	Reply string
	// Err, when set, fails every call.
	Err error
	// Respond computes the reply from the input messages.
	Respond func(input []*schema.Message) (string, error)
	// Block makes every call wait until ctx is done.
	Block bool

	mu    sync.Mutex
	calls [][]*schema.Message
}

var _ model.ChatModel = (*FakeChatModel)(nil)

// Generate records the input and returns the scripted reply.
func (f *FakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, input)
	f.mu.Unlock()

	if f.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.Err != nil {
		return nil, f.Err
	}

	reply := f.Reply
	if f.Respond != nil {
		var err error
		reply, err = f.Respond(input)
		if err != nil {
			return nil, err
		}
	}
	return schema.AssistantMessage(reply, nil), nil
}

// Stream returns the scripted reply as a single chunk.
func (f *FakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is a no-op.
func (f *FakeChatModel) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

// Calls returns the recorded inputs in call order.
func (f *FakeChatModel) Calls() [][]*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]*schema.Message, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times the model was invoked.
func (f *FakeChatModel) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
