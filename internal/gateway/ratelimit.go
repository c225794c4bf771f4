package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter is a cache-backed token bucket keyed by provider. Buckets
// refill continuously at RefillPerMinute tokens per minute of wall-clock
// time, capped at MaxTokens. An absent bucket is treated as full.
type RateLimiter struct {
	store  StateStore
	locks  *keyedMutex
	logger *logrus.Entry

	maxTokens       float64
	refillPerMinute float64

	now func() time.Time
}

// NewRateLimiter creates a rate limiter over the given state store.
func NewRateLimiter(store StateStore, maxTokens, refillPerMinute float64, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		store:           store,
		locks:           newKeyedMutex(),
		logger:          logger.WithField("component", "ratelimit"),
		maxTokens:       maxTokens,
		refillPerMinute: refillPerMinute,
		now:             time.Now,
	}
}

func bucketKey(p Provider) string {
	return fmt.Sprintf("gateway:bucket:%s", p)
}

// TryConsume refills the provider's bucket for elapsed time and attempts
// to take one token. Returns false when the bucket is empty; the caller
// is expected to wait and retry.
func (rl *RateLimiter) TryConsume(ctx context.Context, provider Provider) (bool, error) {
	lock := rl.locks.get(provider)
	lock.Lock()
	defer lock.Unlock()

	now := rl.now()

	bucket := TokenBucket{
		Provider:   string(provider),
		Tokens:     rl.maxTokens,
		LastRefill: now,
	}
	if _, err := rl.store.GetJSON(ctx, bucketKey(provider), &bucket); err != nil {
		return false, fmt.Errorf("failed to load token bucket: %w", err)
	}

	elapsedMinutes := now.Sub(bucket.LastRefill).Minutes()
	if elapsedMinutes > 0 {
		bucket.Tokens += elapsedMinutes * rl.refillPerMinute
	}
	if bucket.Tokens > rl.maxTokens {
		bucket.Tokens = rl.maxTokens
	}
	bucket.LastRefill = now

	if bucket.Tokens < 1 {
		if err := rl.persist(ctx, provider, &bucket); err != nil {
			return false, err
		}
		rl.logger.WithFields(logrus.Fields{
			"provider": provider,
			"tokens":   bucket.Tokens,
		}).Debug("Token bucket empty")
		return false, nil
	}

	bucket.Tokens--
	if err := rl.persist(ctx, provider, &bucket); err != nil {
		return false, err
	}

	return true, nil
}

// Tokens reports the current token count after refill, without consuming.
func (rl *RateLimiter) Tokens(ctx context.Context, provider Provider) (float64, error) {
	lock := rl.locks.get(provider)
	lock.Lock()
	defer lock.Unlock()

	now := rl.now()
	bucket := TokenBucket{
		Provider:   string(provider),
		Tokens:     rl.maxTokens,
		LastRefill: now,
	}
	if _, err := rl.store.GetJSON(ctx, bucketKey(provider), &bucket); err != nil {
		return 0, fmt.Errorf("failed to load token bucket: %w", err)
	}

	tokens := bucket.Tokens + now.Sub(bucket.LastRefill).Minutes()*rl.refillPerMinute
	if tokens > rl.maxTokens {
		tokens = rl.maxTokens
	}
	return tokens, nil
}

func (rl *RateLimiter) persist(ctx context.Context, provider Provider, bucket *TokenBucket) error {
	// A bucket idle long enough to fully refill can be recreated from
	// defaults, so cap the entry lifetime at the full-refill interval.
	ttl := time.Duration(rl.maxTokens/rl.refillPerMinute*float64(time.Minute)) + time.Minute
	if err := rl.store.SetJSON(ctx, bucketKey(provider), bucket, ttl); err != nil {
		return fmt.Errorf("failed to persist token bucket: %w", err)
	}
	return nil
}
