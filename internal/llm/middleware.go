package llm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"laddergen/internal/metrics"
	"laddergen/internal/runctx"
)

// Middleware decorates a Client with cross-cutting behavior.
type Middleware func(Client) Client

// Wrap applies middlewares so the first one listed is the outermost.
func Wrap(c Client, mws ...Middleware) Client {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

// RateLimit caps Generate calls at rps requests per second. Close
// stops the limiter before closing the wrapped client.
func RateLimit(rps int) Middleware {
	return func(next Client) Client {
		return &limitedClient{next: next, limiter: newRPSLimiter(rps)}
	}
}

type limitedClient struct {
	next    Client
	limiter *rpsLimiter
}

func (c *limitedClient) Name() string { return c.next.Name() }

func (c *limitedClient) Generate(ctx context.Context, req Request) (Response, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return Response{}, err
	}
	return c.next.Generate(ctx, req)
}

func (c *limitedClient) Close() error {
	c.limiter.stop()
	return c.next.Close()
}

// WithLogging records every Generate call with prompt size, token
// usage and latency. Failures log at warn, successes at debug.
func WithLogging(log zerolog.Logger) Middleware {
	return func(next Client) Client {
		return &loggingClient{next: next, log: log}
	}
}

type loggingClient struct {
	next Client
	log  zerolog.Logger
}

func (c *loggingClient) Name() string { return c.next.Name() }

func (c *loggingClient) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := c.next.Generate(ctx, req)
	ev := c.log.Debug()
	if err != nil {
		ev = c.log.Warn().Err(err)
	}
	ev.Str("provider", c.next.Name()).
		Str("run_id", runctx.RunIDFrom(ctx)).
		Str("routine", runctx.RoutineFrom(ctx)).
		Int("prompt_bytes", len(req.Prompt)).
		Int("input_tokens", resp.InputTokens).
		Int("output_tokens", resp.OutputTokens).
		Dur("elapsed", time.Since(start)).
		Msg("llm generate")
	return resp, err
}

func (c *loggingClient) Close() error { return c.next.Close() }

// Usage accumulates provider-reported token counts.
type Usage struct {
	Requests     int
	InputTokens  int
	OutputTokens int
}

// UsageLedger tallies token usage per routine across a run. Safe for
// concurrent use.
type UsageLedger struct {
	mu        sync.Mutex
	total     Usage
	byRoutine map[string]Usage
}

func NewUsageLedger() *UsageLedger {
	return &UsageLedger{byRoutine: map[string]Usage{}}
}

// Record adds one request's usage under the given routine name. The
// empty name collects calls made outside routine generation.
func (l *UsageLedger) Record(routine string, in, out int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total.Requests++
	l.total.InputTokens += in
	l.total.OutputTokens += out
	u := l.byRoutine[routine]
	u.Requests++
	u.InputTokens += in
	u.OutputTokens += out
	l.byRoutine[routine] = u
}

func (l *UsageLedger) Total() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *UsageLedger) ByRoutine() map[string]Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Usage, len(l.byRoutine))
	for k, v := range l.byRoutine {
		out[k] = v
	}
	return out
}

// WithMetrics counts every Generate call by provider and outcome.
func WithMetrics(m *metrics.Metrics) Middleware {
	return func(next Client) Client {
		return &metricsClient{next: next, metrics: m}
	}
}

type metricsClient struct {
	next    Client
	metrics *metrics.Metrics
}

func (c *metricsClient) Name() string { return c.next.Name() }

func (c *metricsClient) Generate(ctx context.Context, req Request) (Response, error) {
	resp, err := c.next.Generate(ctx, req)
	outcome := "ok"
	switch {
	case IsRateLimit(err):
		outcome = "rate_limited"
	case IsPermanent(err):
		outcome = "permanent_error"
	case err != nil:
		outcome = "error"
	}
	c.metrics.RecordLLMRequest(c.next.Name(), outcome)
	return resp, err
}

func (c *metricsClient) Close() error { return c.next.Close() }

// WithUsage records token usage from successful calls into ledger,
// attributed to the routine in the request context.
func WithUsage(ledger *UsageLedger) Middleware {
	return func(next Client) Client {
		return &usageClient{next: next, ledger: ledger}
	}
}

type usageClient struct {
	next   Client
	ledger *UsageLedger
}

func (c *usageClient) Name() string { return c.next.Name() }

func (c *usageClient) Generate(ctx context.Context, req Request) (Response, error) {
	resp, err := c.next.Generate(ctx, req)
	if err == nil {
		c.ledger.Record(runctx.RoutineFrom(ctx), resp.InputTokens, resp.OutputTokens)
	}
	return resp, err
}

func (c *usageClient) Close() error { return c.next.Close() }
