package tradingapi

import (
	"context"
	"sync"
	"time"
)

// tokenBucket implements a token-bucket rate limiter with continuous
// refill. Callers block in Wait until a token is available or the context
// is cancelled.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
}

func newTokenBucket(capacity, ratePerSecond float64) *tokenBucket {
	return &tokenBucket{tokens: capacity, capacity: capacity, rate: ratePerSecond, lastTime: time.Now()}
}

func (tb *tokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// rateLimiter groups token buckets by CLOB API endpoint category, sized
// from Polymarket's published per-10-second limits: capacity is the burst
// allowance; the book bucket refills at 1/10th of its capacity per second
// (15/s) and the order bucket at 50/s.
type rateLimiter struct {
	order *tokenBucket
	book  *tokenBucket
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		order: newTokenBucket(350, 50),
		book:  newTokenBucket(150, 15),
	}
}
