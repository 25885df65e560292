package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"laddergen/internal/runctx"
	"laddergen/internal/tester"
)

type taggingClient struct {
	next Client
	tag  string
	log  *[]string
}

func (c *taggingClient) Name() string { return c.next.Name() }

func (c *taggingClient) Generate(ctx context.Context, req Request) (Response, error) {
	*c.log = append(*c.log, c.tag)
	return c.next.Generate(ctx, req)
}

func (c *taggingClient) Close() error { return c.next.Close() }

func tag(name string, log *[]string) Middleware {
	return func(next Client) Client {
		return &taggingClient{next: next, tag: name, log: log}
	}
}

func TestWrapAppliesFirstMiddlewareOutermost(t *testing.T) {
	var order []string
	c := Wrap(NewFakeClient(FakeReply{Text: "ok"}), tag("outer", &order), tag("inner", &order))

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	tester.NoErr(t, err)
	tester.Eq(t, order, []string{"outer", "inner"})
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	fake := NewFakeClient(
		FakeReply{Err: errors.New("transient")},
		FakeReply{Text: "recovered"},
	)
	c := Wrap(fake, Retry(2, time.Millisecond))

	resp, err := c.Generate(context.Background(), Request{Prompt: "p"})
	tester.NoErr(t, err)
	tester.Eq(t, resp.Text, "recovered")
	tester.Eq(t, len(fake.Calls()), 2)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	perm := &PermanentError{Provider: "fake", Reason: "bad key"}
	fake := NewFakeClient(FakeReply{Err: perm}, FakeReply{Text: "never"})
	c := Wrap(fake, Retry(2, time.Millisecond))

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	tester.Err(t, err)
	tester.True(t, IsPermanent(err))
	tester.Eq(t, len(fake.Calls()), 1)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	fake := NewFakeClient()
	fake.Default = func(Request) (Response, error) { return Response{}, boom }
	c := Wrap(fake, Retry(2, time.Millisecond))

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	tester.True(t, errors.Is(err, boom))
	tester.Eq(t, len(fake.Calls()), 3)
}

func TestRetryCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := NewFakeClient()
	fake.Default = func(Request) (Response, error) {
		cancel()
		return Response{}, errors.New("boom")
	}
	c := Wrap(fake, Retry(2, time.Hour))

	_, err := c.Generate(ctx, Request{Prompt: "p"})
	tester.True(t, errors.Is(err, context.Canceled))
	tester.Eq(t, len(fake.Calls()), 1)
}

func TestBackoffCaps(t *testing.T) {
	tester.Eq(t, backoff(time.Second, 0, maxBackoff), time.Second)
	tester.Eq(t, backoff(time.Second, 1, maxBackoff), 2*time.Second)
	tester.Eq(t, backoff(time.Second, 2, maxBackoff), 4*time.Second)
	tester.Eq(t, backoff(time.Second, 10, maxBackoff), maxBackoff)
	tester.Eq(t, backoff(10*time.Second, 0, maxRateLimitBackoff), 10*time.Second)
	tester.Eq(t, backoff(10*time.Second, 3, maxRateLimitBackoff), maxRateLimitBackoff)
}

func TestRateLimitMiddlewarePassesThrough(t *testing.T) {
	fake := NewFakeClient(FakeReply{Text: "ok"})
	c := Wrap(fake, RateLimit(100))
	defer c.Close()

	resp, err := c.Generate(context.Background(), Request{Prompt: "p"})
	tester.NoErr(t, err)
	tester.Eq(t, resp.Text, "ok")
}

func TestUsageLedgerAttributesByRoutine(t *testing.T) {
	ledger := NewUsageLedger()
	fake := NewFakeClient(
		FakeReply{Text: "aaaaaaaa"},
		FakeReply{Text: "bbbb"},
		FakeReply{Err: errors.New("boom")},
	)
	c := Wrap(fake, WithUsage(ledger))

	ctx := runctx.WithRoutine(context.Background(), "Safety_Interlocks")
	_, err := c.Generate(ctx, Request{Prompt: "12345678"})
	tester.NoErr(t, err)
	_, err = c.Generate(ctx, Request{Prompt: "12345678"})
	tester.NoErr(t, err)
	_, err = c.Generate(ctx, Request{Prompt: "12345678"})
	tester.Err(t, err)

	total := ledger.Total()
	tester.Eq(t, total.Requests, 2)
	tester.Eq(t, total.InputTokens, 4)
	tester.Eq(t, total.OutputTokens, 3)

	byRoutine := ledger.ByRoutine()
	tester.Eq(t, byRoutine["Safety_Interlocks"].Requests, 2)
}

func TestFakeClientScriptedQueue(t *testing.T) {
	fake := NewFakeClient(FakeReply{Text: "first"}, FakeReply{Text: "second"})

	resp, err := fake.Generate(context.Background(), Request{Prompt: "a"})
	tester.NoErr(t, err)
	tester.Eq(t, resp.Text, "first")

	resp, err = fake.Generate(context.Background(), Request{Prompt: "b"})
	tester.NoErr(t, err)
	tester.Eq(t, resp.Text, "second")

	_, err = fake.Generate(context.Background(), Request{Prompt: "c"})
	tester.True(t, errors.Is(err, ErrEmptyResponse))

	calls := fake.Calls()
	tester.Eq(t, len(calls), 3)
	tester.Eq(t, calls[0].Prompt, "a")
	tester.Eq(t, calls[2].Prompt, "c")
}

func TestRetryAfterHeader(t *testing.T) {
	tester.Eq(t, retryAfter("7"), 7*time.Second)
	tester.Eq(t, retryAfter(""), time.Duration(0))
	tester.Eq(t, retryAfter("soon"), time.Duration(0))
}

func TestRateLimitErrorRoundTrip(t *testing.T) {
	rl := &RateLimitError{Provider: "openrouter", RetryAfter: 3 * time.Second}
	wrapped := errors.Join(errors.New("outer"), rl)
	tester.True(t, IsRateLimit(wrapped))
	tester.False(t, IsPermanent(wrapped))
	tester.Contains(t, rl.Error(), "retry after 3s")
}
