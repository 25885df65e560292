package llm

import (
	"context"
	"time"
)

// rpsLimiter is a token bucket refilled at a fixed rate. The bucket
// starts full so short bursts up to rps go through immediately.
type rpsLimiter struct {
	tokens chan struct{}
	ticker *time.Ticker
	done   chan struct{}
}

func newRPSLimiter(rps int) *rpsLimiter {
	if rps <= 0 {
		rps = 1
	}
	l := &rpsLimiter{
		tokens: make(chan struct{}, rps),
		ticker: time.NewTicker(time.Second / time.Duration(rps)),
		done:   make(chan struct{}),
	}
	for i := 0; i < rps; i++ {
		l.tokens <- struct{}{}
	}
	go l.refill()
	return l
}

func (l *rpsLimiter) refill() {
	for {
		select {
		case <-l.ticker.C:
			select {
			case l.tokens <- struct{}{}:
			default:
			}
		case <-l.done:
			return
		}
	}
}

func (l *rpsLimiter) wait(ctx context.Context) error {
	select {
	case <-l.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *rpsLimiter) stop() {
	l.ticker.Stop()
	close(l.done)
}
