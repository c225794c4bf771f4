package gateway

import (
	"context"
	"sync"
	"time"
)

// Provider identifies an upstream market-data provider.
type Provider string

const (
	ProviderCoinGecko     Provider = "coingecko"
	ProviderCoinMarketCap Provider = "coinmarketcap"
	ProviderCoinPaprika   Provider = "coinpaprika"
	ProviderMassive       Provider = "massive"
)

// AllProviders lists every upstream provider, in fallback order.
var AllProviders = []Provider{
	ProviderCoinGecko,
	ProviderCoinMarketCap,
	ProviderCoinPaprika,
	ProviderMassive,
}

// String returns the provider name.
func (p Provider) String() string { return string(p) }

// StateStore is the cache-store surface the gateway needs for breaker and
// bucket state. The Redis client satisfies it; tests use an in-memory fake.
type StateStore interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CircuitState is the persisted breaker state for one provider.
type CircuitState struct {
	Provider     string    `json:"provider"`
	State        string    `json:"state"`
	FailureCount int       `json:"failure_count"`
	LastFailure  time.Time `json:"last_failure"`
}

// TokenBucket is the persisted rate-limiter state for one provider.
type TokenBucket struct {
	Provider   string    `json:"provider"`
	Tokens     float64   `json:"tokens"`
	LastRefill time.Time `json:"last_refill"`
}

// keyedMutex serializes read-modify-write cycles on shared cache-backed
// state per provider. Cross-process updates remain best-effort.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[Provider]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[Provider]*sync.Mutex)}
}

func (k *keyedMutex) get(p Provider) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	lock, ok := k.locks[p]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[p] = lock
	}
	return lock
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
