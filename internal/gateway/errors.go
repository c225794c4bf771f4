// Package gateway implements the resilient market-data gateway: a
// per-provider circuit breaker, a token-bucket rate limiter, and an HTTP
// client composing both with retry and backoff around upstream calls.
package gateway

import "errors"

// Error taxonomy for gateway failures. Callers classify with errors.Is;
// everything below the taxonomy is wrapped context.
var (
	// ErrProviderUnavailable means the provider's circuit is open and the
	// request was rejected without network I/O.
	ErrProviderUnavailable = errors.New("provider unavailable: circuit open")

	// ErrRateLimitExceeded means the provider kept answering 429 until the
	// rate-limit retry budget was exhausted.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrRequestFailed means all retry attempts failed with transport or
	// HTTP errors.
	ErrRequestFailed = errors.New("request failed after retries")

	// ErrInvalidCategory means the requested chart category is not one of
	// forex, stock, crypto.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrPairNotFound means the symbol has no provider ticker mapping.
	ErrPairNotFound = errors.New("pair not found")

	// ErrMissingAPIKey means the provider requires an API key and none is
	// configured.
	ErrMissingAPIKey = errors.New("missing provider API key")

	// ErrInvalidResponseShape means the provider payload did not decode
	// into the expected structure.
	ErrInvalidResponseShape = errors.New("invalid response shape")
)
