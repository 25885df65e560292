package llm

import (
	"context"
	"sync"
)

// FakeReply is one scripted answer for FakeClient.
type FakeReply struct {
	Text string
	Err  error
}

// FakeClient serves scripted responses for offline runs and tests.
// Replies are consumed in order; when the queue is empty, Default is
// called if set, otherwise ErrEmptyResponse is returned.
type FakeClient struct {
	// Default handles requests after the scripted queue is drained.
	// Set it before handing the client to concurrent callers.
	Default func(req Request) (Response, error)

	mu    sync.Mutex
	queue []FakeReply
	calls []Request
}

func NewFakeClient(replies ...FakeReply) *FakeClient {
	return &FakeClient{queue: append([]FakeReply(nil), replies...)}
}

func (f *FakeClient) Name() string { return "fake" }

func (f *FakeClient) Close() error { return nil }

// Enqueue appends replies to the scripted queue.
func (f *FakeClient) Enqueue(replies ...FakeReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, replies...)
}

// Calls returns a copy of every request seen so far.
func (f *FakeClient) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}

func (f *FakeClient) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, req)
	var reply *FakeReply
	if len(f.queue) > 0 {
		r := f.queue[0]
		f.queue = f.queue[1:]
		reply = &r
	}
	f.mu.Unlock()

	if reply != nil {
		if reply.Err != nil {
			return Response{}, reply.Err
		}
		return Response{
			Text:         reply.Text,
			InputTokens:  approxTokens(req.Prompt),
			OutputTokens: approxTokens(reply.Text),
		}, nil
	}
	if f.Default != nil {
		return f.Default(req)
	}
	return Response{}, ErrEmptyResponse
}

func approxTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return len(text) / 4
}
