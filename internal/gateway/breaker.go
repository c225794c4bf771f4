package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Breaker states as persisted in the cache store.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// Breaker is a cache-backed circuit breaker keyed by provider. A provider
// opens after FailureThreshold consecutive failures and stays open for
// Timeout, after which a single probe request is let through (half-open).
// A success closes the circuit; a failure while half-open reopens it with
// the failure count reset to 1.
type Breaker struct {
	store  StateStore
	locks  *keyedMutex
	logger *logrus.Entry

	failureThreshold int
	timeout          time.Duration

	now func() time.Time
}

// NewBreaker creates a circuit breaker over the given state store.
func NewBreaker(store StateStore, failureThreshold int, timeout time.Duration, logger *logrus.Logger) *Breaker {
	return &Breaker{
		store:            store,
		locks:            newKeyedMutex(),
		logger:           logger.WithField("component", "breaker"),
		failureThreshold: failureThreshold,
		timeout:          timeout,
		now:              time.Now,
	}
}

func breakerKey(p Provider) string {
	return fmt.Sprintf("gateway:breaker:%s", p)
}

// IsOpen reports whether requests to the provider should be rejected.
// An open circuit whose timeout has elapsed transitions to half-open and
// lets the request through as a probe.
func (b *Breaker) IsOpen(ctx context.Context, provider Provider) (bool, error) {
	lock := b.locks.get(provider)
	lock.Lock()
	defer lock.Unlock()

	state, found, err := b.load(ctx, provider)
	if err != nil {
		return false, err
	}
	if !found || state.State != StateOpen {
		return false, nil
	}

	if b.now().Sub(state.LastFailure) > b.timeout {
		state.State = StateHalfOpen
		if err := b.persist(ctx, provider, state); err != nil {
			return false, err
		}
		b.logger.WithField("provider", provider).Info("Circuit half-open, allowing probe request")
		return false, nil
	}

	return true, nil
}

// RecordFailure counts a failed call. A failure while half-open reopens
// the circuit immediately with the count reset to 1.
func (b *Breaker) RecordFailure(ctx context.Context, provider Provider) error {
	lock := b.locks.get(provider)
	lock.Lock()
	defer lock.Unlock()

	state, _, err := b.load(ctx, provider)
	if err != nil {
		return err
	}

	state.LastFailure = b.now()

	switch state.State {
	case StateHalfOpen:
		state.State = StateOpen
		state.FailureCount = 1
		b.logger.WithField("provider", provider).Warn("Circuit reopened, probe request failed")
	default:
		state.FailureCount++
		if state.FailureCount >= b.failureThreshold {
			state.State = StateOpen
			b.logger.WithFields(logrus.Fields{
				"provider": provider,
				"failures": state.FailureCount,
			}).Warn("Circuit opened")
		}
	}

	return b.persist(ctx, provider, state)
}

// RecordSuccess resets the provider's circuit to closed.
func (b *Breaker) RecordSuccess(ctx context.Context, provider Provider) error {
	lock := b.locks.get(provider)
	lock.Lock()
	defer lock.Unlock()

	state, found, err := b.load(ctx, provider)
	if err != nil {
		return err
	}
	if found && state.State != StateClosed {
		b.logger.WithField("provider", provider).Info("Circuit closed")
	}

	state.State = StateClosed
	state.FailureCount = 0

	return b.persist(ctx, provider, state)
}

// State returns the current persisted state for monitoring.
func (b *Breaker) State(ctx context.Context, provider Provider) (*CircuitState, error) {
	state, _, err := b.load(ctx, provider)
	return state, err
}

func (b *Breaker) load(ctx context.Context, provider Provider) (*CircuitState, bool, error) {
	state := &CircuitState{
		Provider: string(provider),
		State:    StateClosed,
	}
	found, err := b.store.GetJSON(ctx, breakerKey(provider), state)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load circuit state: %w", err)
	}
	return state, found, nil
}

func (b *Breaker) persist(ctx context.Context, provider Provider, state *CircuitState) error {
	// Open circuits need to outlive the cooldown so the half-open probe
	// path is reachable; everything else may expire after one cooldown.
	ttl := b.timeout
	if state.State != StateClosed {
		ttl = 2 * b.timeout
	}
	if err := b.store.SetJSON(ctx, breakerKey(provider), state, ttl); err != nil {
		return fmt.Errorf("failed to persist circuit state: %w", err)
	}
	return nil
}
