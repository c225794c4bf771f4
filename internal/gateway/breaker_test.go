package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(store StateStore, threshold int, timeout time.Duration) *Breaker {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewBreaker(store, threshold, timeout, logger)
}

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	b := newTestBreaker(newMemStore(), 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, b.RecordFailure(ctx, ProviderCoinGecko))
	}

	open, err := b.IsOpen(ctx, ProviderCoinGecko)
	require.NoError(t, err)
	assert.False(t, open)

	state, err := b.State(ctx, ProviderCoinGecko)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state.State)
	assert.Equal(t, 4, state.FailureCount)
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := newTestBreaker(newMemStore(), 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, b.RecordFailure(ctx, ProviderCoinGecko))
	}

	open, err := b.IsOpen(ctx, ProviderCoinGecko)
	require.NoError(t, err)
	assert.True(t, open)
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b := newTestBreaker(newMemStore(), 2, time.Minute)
	ctx := context.Background()

	now := time.Now()
	b.now = func() time.Time { return now }

	require.NoError(t, b.RecordFailure(ctx, ProviderCoinMarketCap))
	require.NoError(t, b.RecordFailure(ctx, ProviderCoinMarketCap))

	open, err := b.IsOpen(ctx, ProviderCoinMarketCap)
	require.NoError(t, err)
	require.True(t, open)

	// Once the cooldown elapses a probe request is allowed through.
	now = now.Add(61 * time.Second)

	open, err = b.IsOpen(ctx, ProviderCoinMarketCap)
	require.NoError(t, err)
	assert.False(t, open, "probe should be allowed after cooldown")

	state, err := b.State(ctx, ProviderCoinMarketCap)
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, state.State)
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b := newTestBreaker(newMemStore(), 2, time.Minute)
	ctx := context.Background()

	now := time.Now()
	b.now = func() time.Time { return now }

	require.NoError(t, b.RecordFailure(ctx, ProviderCoinGecko))
	require.NoError(t, b.RecordFailure(ctx, ProviderCoinGecko))

	now = now.Add(61 * time.Second)
	open, err := b.IsOpen(ctx, ProviderCoinGecko)
	require.NoError(t, err)
	require.False(t, open)

	// Probe fails: circuit reopens immediately with a fresh count.
	require.NoError(t, b.RecordFailure(ctx, ProviderCoinGecko))

	state, err := b.State(ctx, ProviderCoinGecko)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, state.State)
	assert.Equal(t, 1, state.FailureCount)

	open, err = b.IsOpen(ctx, ProviderCoinGecko)
	require.NoError(t, err)
	assert.True(t, open)
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	b := newTestBreaker(newMemStore(), 2, time.Minute)
	ctx := context.Background()

	now := time.Now()
	b.now = func() time.Time { return now }

	require.NoError(t, b.RecordFailure(ctx, ProviderCoinGecko))
	require.NoError(t, b.RecordFailure(ctx, ProviderCoinGecko))

	now = now.Add(61 * time.Second)
	_, err := b.IsOpen(ctx, ProviderCoinGecko)
	require.NoError(t, err)

	require.NoError(t, b.RecordSuccess(ctx, ProviderCoinGecko))

	state, err := b.State(ctx, ProviderCoinGecko)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state.State)
	assert.Equal(t, 0, state.FailureCount)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker(newMemStore(), 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, b.RecordFailure(ctx, ProviderCoinGecko))
	}
	require.NoError(t, b.RecordSuccess(ctx, ProviderCoinGecko))
	require.NoError(t, b.RecordFailure(ctx, ProviderCoinGecko))

	state, err := b.State(ctx, ProviderCoinGecko)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state.State)
	assert.Equal(t, 1, state.FailureCount)
}

func TestBreaker_MissingStateIsClosed(t *testing.T) {
	b := newTestBreaker(newMemStore(), 5, time.Minute)

	open, err := b.IsOpen(context.Background(), ProviderMassive)
	require.NoError(t, err)
	assert.False(t, open)
}
