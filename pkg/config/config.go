package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `env:", prefix=SERVER_"`
	MySQL     MySQLConfig     `env:", prefix=MYSQL_"`
	InfluxDB  InfluxConfig    `env:", prefix=INFLUXDB_"`
	Redis     RedisConfig     `env:", prefix=REDIS_"`
	NATS      NATSConfig      `env:", prefix=NATS_"`
	Gateway   GatewayConfig   `env:", prefix=GATEWAY_"`
	Providers ProvidersConfig `env:", prefix=PROVIDER_"`
	Security  SecurityConfig  `env:", prefix=SECURITY_"`
	Logging   LoggingConfig   `env:", prefix=LOG_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host            string        `env:"HOST, default=localhost"`
	Port            int           `env:"PORT, default=3306"`
	Database        string        `env:"DATABASE, default=incrypto"`
	User            string        `env:"USER, default=incrypto"`
	Password        string        `env:"PASSWORD, default=incrypto123"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS, default=25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS, default=5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=5m"`
}

// InfluxConfig holds InfluxDB configuration for bar persistence
type InfluxConfig struct {
	URL     string        `env:"URL, default=http://localhost:8086"`
	Token   string        `env:"TOKEN"`
	Org     string        `env:"ORG, default=incrypto-org"`
	Bucket  string        `env:"BUCKET, default=charts"`
	Timeout time.Duration `env:"TIMEOUT, default=10s"`
	Enabled bool          `env:"ENABLED, default=false"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS, default=5"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	DrainTimeout  time.Duration `env:"DRAIN_TIMEOUT, default=30s"`
}

// GatewayConfig holds the resilience parameters for the market-data gateway.
type GatewayConfig struct {
	MaxRetries          int           `env:"MAX_RETRIES, default=3"`
	RetryBaseDelay      time.Duration `env:"RETRY_BASE_DELAY, default=1s"`
	RateLimitMaxRetries int           `env:"RATE_LIMIT_MAX_RETRIES, default=2"`
	RateLimitRetryDelay time.Duration `env:"RATE_LIMIT_RETRY_DELAY, default=5s"`
	QueueCheckInterval  time.Duration `env:"QUEUE_CHECK_INTERVAL, default=1s"`
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT, default=10s"`
	FailureThreshold    int           `env:"FAILURE_THRESHOLD, default=5"`
	BreakerTimeout      time.Duration `env:"BREAKER_TIMEOUT, default=60s"`
	MaxTokens           float64       `env:"MAX_TOKENS, default=30"`
	RefillPerMinute     float64       `env:"REFILL_PER_MINUTE, default=30"`
	FallbackChartBars   int           `env:"FALLBACK_CHART_BARS, default=120"`
}

// ProvidersConfig holds API keys and base URLs for the upstream
// market-data providers. Base URLs are overridable for testing.
type ProvidersConfig struct {
	CoinGeckoKey     string `env:"COINGECKO_KEY"`
	CoinGeckoURL     string `env:"COINGECKO_URL, default=https://api.coingecko.com/api/v3"`
	CoinMarketCapKey string `env:"COINMARKETCAP_KEY"`
	CoinMarketCapURL string `env:"COINMARKETCAP_URL, default=https://pro-api.coinmarketcap.com"`
	CoinPaprikaURL   string `env:"COINPAPRIKA_URL, default=https://api.coinpaprika.com"`
	MassiveKey       string `env:"MASSIVE_KEY"`
	MassiveURL       string `env:"MASSIVE_URL, default=https://api.massive.com"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=true"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,PUT,DELETE,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=*"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.MySQL.Host == "" {
		return fmt.Errorf("MySQL host is required")
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("Redis host is required")
	}

	if c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}

	if c.Gateway.MaxRetries < 1 {
		return fmt.Errorf("gateway max retries must be at least 1")
	}

	if c.Gateway.MaxTokens < 1 {
		return fmt.Errorf("gateway max tokens must be at least 1")
	}

	return nil
}

// DSN returns the MySQL connection string.
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Addr returns the Redis host:port address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the server listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
