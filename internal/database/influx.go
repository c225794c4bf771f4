package database

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/pkg/config"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// InfluxClient persists chart bars fetched from real providers so the
// platform keeps its own OHLC history.
type InfluxClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	logger   *logrus.Entry
	bucket   string
}

// NewInfluxClient creates a new InfluxDB client
func NewInfluxClient(cfg *config.InfluxConfig, logger *logrus.Logger) *InfluxClient {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds())).
			SetLogLevel(0),
	)

	return &InfluxClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		logger:   logger.WithField("component", "influxdb"),
		bucket:   cfg.Bucket,
	}
}

// Close closes the InfluxDB client
func (ic *InfluxClient) Close() {
	ic.client.Close()
}

// Health checks InfluxDB health
func (ic *InfluxClient) Health(ctx context.Context) error {
	health, err := ic.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influxdb health check failed: %s", msg)
	}

	return nil
}

// WriteCandles writes daily OHLC bars for a symbol.
func (ic *InfluxClient) WriteCandles(ctx context.Context, symbol, category string, candles []models.Candle) error {
	for _, candle := range candles {
		point := influxdb2.NewPoint(
			"bars",
			map[string]string{
				"symbol":   symbol,
				"category": category,
			},
			map[string]interface{}{
				"open":   candle.Open,
				"high":   candle.High,
				"low":    candle.Low,
				"close":  candle.Close,
				"volume": candle.Volume,
			},
			time.Unix(candle.Time, 0),
		)

		if err := ic.writeAPI.WritePoint(ctx, point); err != nil {
			return fmt.Errorf("failed to write bar for %s: %w", symbol, err)
		}
	}

	ic.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"bars":   len(candles),
	}).Debug("Persisted chart bars")

	return nil
}
