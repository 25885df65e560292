package llm

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultMaxRetries is the number of extra attempts after the
	// first failed call.
	DefaultMaxRetries = 2
	// DefaultRetryBase seeds the exponential backoff.
	DefaultRetryBase = time.Second

	maxBackoff          = 30 * time.Second
	maxRateLimitBackoff = 60 * time.Second
)

// Retry wraps a client with bounded exponential backoff. Permanent
// errors return immediately; rate-limit errors back off ten times as
// hard, and a provider retry-after hint wins when it is longer.
func Retry(maxRetries int, base time.Duration) Middleware {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if base <= 0 {
		base = DefaultRetryBase
	}
	return func(next Client) Client {
		return &retryClient{next: next, maxRetries: maxRetries, base: base}
	}
}

type retryClient struct {
	next       Client
	maxRetries int
	base       time.Duration
}

func (c *retryClient) Name() string { return c.next.Name() }

func (c *retryClient) Generate(ctx context.Context, req Request) (Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.next.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if IsPermanent(err) || attempt >= c.maxRetries {
			return Response{}, lastErr
		}

		delay := backoff(c.base, attempt, maxBackoff)
		var rl *RateLimitError
		if errors.As(err, &rl) {
			delay = backoff(10*c.base, attempt, maxRateLimitBackoff)
			if rl.RetryAfter > delay {
				delay = rl.RetryAfter
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Response{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *retryClient) Close() error { return c.next.Close() }

func backoff(base time.Duration, attempt int, limit time.Duration) time.Duration {
	d := base << uint(attempt)
	if d <= 0 || d > limit {
		return limit
	}
	return d
}
