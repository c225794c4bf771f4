package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/pkg/config"
)

// Client is the resilient HTTP client used for all upstream provider
// calls. Each request is gated by the provider's circuit breaker and
// token bucket, retried with exponential backoff, and given a separate
// retry budget for 429 responses.
// ErrorReporter receives terminal provider failures for monitoring.
// Retried attempts are not reported, only the error the caller sees.
type ErrorReporter interface {
	PublishGatewayError(provider string, err error) error
}

type Client struct {
	httpClient *http.Client
	limiter    *RateLimiter
	breaker    *Breaker
	reporter   ErrorReporter
	cfg        *config.GatewayConfig
	providers  *config.ProvidersConfig
	logger     *logrus.Entry
}

// NewClient creates a resilient client over the given state store.
func NewClient(store StateStore, cfg *config.GatewayConfig, providers *config.ProvidersConfig, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		limiter:    NewRateLimiter(store, cfg.MaxTokens, cfg.RefillPerMinute, logger),
		breaker:    NewBreaker(store, cfg.FailureThreshold, cfg.BreakerTimeout, logger),
		cfg:        cfg,
		providers:  providers,
		logger:     logger.WithField("component", "gateway"),
	}
}

// SetErrorReporter wires terminal-failure publishing. May be left unset.
func (c *Client) SetErrorReporter(reporter ErrorReporter) {
	c.reporter = reporter
}

// Limiter exposes the rate limiter for monitoring endpoints.
func (c *Client) Limiter() *RateLimiter { return c.limiter }

// Breaker exposes the circuit breaker for monitoring endpoints.
func (c *Client) Breaker() *Breaker { return c.breaker }

// Get issues a GET against the provider with the default request timeout.
func (c *Client) Get(ctx context.Context, provider Provider, rawURL string, params url.Values) ([]byte, error) {
	return c.GetWithTimeout(ctx, provider, rawURL, params, c.cfg.RequestTimeout)
}

// GetWithTimeout issues a GET with an explicit per-request timeout.
//
// Failure modes: ErrProviderUnavailable when the circuit is open,
// ErrRateLimitExceeded when 429 retries are exhausted, ErrRequestFailed
// when all retry attempts fail.
func (c *Client) GetWithTimeout(ctx context.Context, provider Provider, rawURL string, params url.Values, timeout time.Duration) ([]byte, error) {
	reqURL, headers, err := c.buildRequest(provider, rawURL, params)
	if err != nil {
		return nil, err
	}

	open, err := c.breaker.IsOpen(ctx, provider)
	if err != nil {
		return nil, err
	}
	if open {
		c.logger.WithField("provider", provider).Warn("Circuit open, rejecting request")
		rejection := fmt.Errorf("%w: %s", ErrProviderUnavailable, provider)
		c.reportError(provider, rejection)
		return nil, rejection
	}

	var lastErr error
	rateLimitRetries := 0

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		// Waiting for a token does not consume a retry attempt.
		for {
			ok, err := c.limiter.TryConsume(ctx, provider)
			if err != nil {
				return nil, err
			}
			if ok {
				break
			}
			if err := sleepCtx(ctx, c.cfg.QueueCheckInterval); err != nil {
				return nil, err
			}
		}

		status, body, err := c.do(ctx, reqURL, headers, timeout)
		if err != nil {
			if recErr := c.breaker.RecordFailure(ctx, provider); recErr != nil {
				c.logger.WithError(recErr).Warn("Failed to record circuit failure")
			}
			c.logger.WithFields(logrus.Fields{
				"provider": provider,
				"url":      rawURL,
				"attempt":  attempt + 1,
			}).WithError(err).Warn("Request transport error")
			lastErr = err
		} else if status == http.StatusTooManyRequests {
			if recErr := c.breaker.RecordFailure(ctx, provider); recErr != nil {
				c.logger.WithError(recErr).Warn("Failed to record circuit failure")
			}
			if rateLimitRetries >= c.cfg.RateLimitMaxRetries {
				exhausted := fmt.Errorf("%w: %s", ErrRateLimitExceeded, provider)
				c.reportError(provider, exhausted)
				return nil, exhausted
			}
			rateLimitRetries++
			c.logger.WithFields(logrus.Fields{
				"provider": provider,
				"retry":    rateLimitRetries,
			}).Warn("Provider rate limited, backing off")
			if err := sleepCtx(ctx, c.cfg.RateLimitRetryDelay); err != nil {
				return nil, err
			}
			attempt--
			continue
		} else if status >= 200 && status < 300 {
			if err := c.breaker.RecordSuccess(ctx, provider); err != nil {
				c.logger.WithError(err).Warn("Failed to record circuit success")
			}
			return body, nil
		} else {
			if recErr := c.breaker.RecordFailure(ctx, provider); recErr != nil {
				c.logger.WithError(recErr).Warn("Failed to record circuit failure")
			}
			lastErr = fmt.Errorf("provider %s returned status %d", provider, status)
			c.logger.WithFields(logrus.Fields{
				"provider": provider,
				"url":      rawURL,
				"status":   status,
				"attempt":  attempt + 1,
			}).Warn("Request failed with HTTP error")
		}

		if attempt < c.cfg.MaxRetries-1 {
			backoff := c.cfg.RetryBaseDelay * time.Duration(1<<attempt)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}

	failure := fmt.Errorf("%w: %s: %v", ErrRequestFailed, provider, lastErr)
	c.reportError(provider, failure)
	return nil, failure
}

// reportError publishes a terminal failure without blocking the caller.
func (c *Client) reportError(provider Provider, err error) {
	if c.reporter == nil {
		return
	}

	go func() {
		if pubErr := c.reporter.PublishGatewayError(string(provider), err); pubErr != nil {
			c.logger.WithError(pubErr).WithField("provider", provider).Warn("Failed to publish gateway error")
		}
	}()
}

// buildRequest appends query params and injects provider-specific auth:
// query-string key for CoinGecko, header for CoinMarketCap, none for
// providers whose URLs are already keyed by the adapter.
func (c *Client) buildRequest(provider Provider, rawURL string, params url.Values) (string, http.Header, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid request URL %q: %w", rawURL, err)
	}

	query := u.Query()
	for key, values := range params {
		for _, v := range values {
			query.Add(key, v)
		}
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")

	switch provider {
	case ProviderCoinGecko:
		if c.providers.CoinGeckoKey != "" {
			query.Set("x_cg_demo_api_key", c.providers.CoinGeckoKey)
		}
	case ProviderCoinMarketCap:
		if c.providers.CoinMarketCapKey != "" {
			headers.Set("X-CMC_PRO_API_KEY", c.providers.CoinMarketCapKey)
		}
	}

	u.RawQuery = query.Encode()
	return u.String(), headers, nil
}

func (c *Client) do(ctx context.Context, reqURL string, headers http.Header, timeout time.Duration) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = headers

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}
