package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TokenBucket refills continuously at refillRate tokens per second up to
// capacity.
type TokenBucket struct {
	capacity   float64
	tokens     float64
	refillRate float64
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	tb := &TokenBucket{capacity: capacity, tokens: capacity, refillRate: refillRate, now: time.Now}
	tb.lastRefill = tb.now()
	return tb
}

// reserve takes a token if one is available, otherwise it reports how long
// until the next one.
func (tb *TokenBucket) reserve() (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.tokens = min(tb.capacity, tb.tokens+now.Sub(tb.lastRefill).Seconds()*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}
	missing := 1 - tb.tokens
	return false, time.Duration(missing / tb.refillRate * float64(time.Second))
}

// Take returns false instead of waiting when the bucket is empty.
func (tb *TokenBucket) Take() bool {
	ok, _ := tb.reserve()
	return ok
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		ok, delay := tb.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RateLimitedSender paces calls to the relay so a large campaign does not
// exceed the account's submission rate.
type RateLimitedSender struct {
	sender Sender
	bucket *TokenBucket
}

var _ Sender = (*RateLimitedSender)(nil)

func NewRateLimitedSender(sender Sender, perSecond float64, burst int) *RateLimitedSender {
	return &RateLimitedSender{sender: sender, bucket: NewTokenBucket(float64(burst), perSecond)}
}

// Send waits for a token; a cancelled wait is reported as unreachable so the
// reservation is released.
func (s *RateLimitedSender) Send(ctx context.Context, req Request) (*Response, error) {
	if err := s.bucket.Wait(ctx); err != nil {
		slog.WarnContext(ctx, "Gave up waiting for gateway rate limit", slog.Any("error", err))
		return nil, &UnreachableError{Cause: err}
	}
	return s.sender.Send(ctx, req)
}
