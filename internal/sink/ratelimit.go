package sink

import (
	"context"
	"fmt"
	"time"
)

// tokenBucket is a minimal rate limiter for outbound webhook calls.
type tokenBucket struct {
	capacity float64
	rate     float64 // tokens per second

	tokens     float64
	lastUpdate time.Time
}

func newTokenBucket(capacity, rate float64) *tokenBucket {
	return &tokenBucket{
		capacity: capacity,
		rate:     rate,
		tokens:   capacity,
	}
}

// allow consumes one token if available, refilling based on elapsed time.
func (b *tokenBucket) allow(now time.Time) bool {
	if b.lastUpdate.IsZero() {
		b.lastUpdate = now
	}
	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
		b.lastUpdate = now
	}
	if b.tokens >= 1 {
		b.tokens -= 1
		return true
	}
	return false
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

type rateLimitedSender struct {
	inner  Sender
	bucket *tokenBucket
	now    func() time.Time
}

// NewRateLimitedSender caps a sink at perMinute sends, with a burst allowance
// of the same size. Events over the budget are dropped with an error so the
// caller can count them; they are not queued.
func NewRateLimitedSender(inner Sender, perMinute int) Sender {
	if perMinute <= 0 {
		return inner
	}
	return &rateLimitedSender{
		inner:  inner,
		bucket: newTokenBucket(float64(perMinute), float64(perMinute)/60),
		now:    time.Now,
	}
}

func (s *rateLimitedSender) Send(ctx context.Context, payload BurnPayload) error {
	if !s.bucket.allow(s.now()) {
		return fmt.Errorf("rate limit exceeded, dropping event %s", payload.Signature)
	}
	return s.inner.Send(ctx, payload)
}
