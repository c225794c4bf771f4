// Package app wires the application together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/api"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/cache"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/database"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway/providers"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/market"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/messaging"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/services"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/ws"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/config"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Infrastructure
	mysqlDB    *database.MySQLClient
	influxDB   *database.InfluxClient
	redisCache *cache.RedisClient
	natsClient *messaging.NATSClient

	// Market data gateway
	gatewayClient *gateway.Client
	chartService  *market.ChartService
	marketFacade  *market.Facade

	// Account services
	walletService       *services.WalletService
	tradeService        *services.TradeService
	kycService          *services.KYCService
	notificationService *services.NotificationService

	wsHub     *ws.Hub
	apiServer *api.Server
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize initializes all application components
func (a *App) Initialize() error {
	if err := a.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := a.initializeMessaging(); err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	a.initializeGateway()
	a.initializeServices()

	a.wsHub = ws.NewHub(a.natsClient, a.logger)

	a.apiServer = api.NewServer(
		a.cfg,
		a.logger,
		a.mysqlDB,
		a.redisCache,
		a.natsClient,
		a.gatewayClient,
		a.chartService,
		a.marketFacade,
		a.walletService,
		a.tradeService,
		a.kycService,
		a.notificationService,
		a.wsHub,
	)

	return nil
}

// Start starts the application
func (a *App) Start() error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.wsHub.Run(a.ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil {
			if err != http.ErrServerClosed {
				a.logger.WithError(err).Error("API server error")
			}
		}
	}()

	return nil
}

// Stop gracefully stops the application
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	a.cancel()

	if a.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Error("Error stopping API server")
		}
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("All goroutines stopped")
	case <-time.After(3 * time.Second):
		a.logger.Warn("Timeout waiting for goroutines to finish")
	}

	a.closeConnections()

	a.logger.Info("Application stopped")
	return nil
}

// GetContext returns the application context
func (a *App) GetContext() context.Context {
	return a.ctx
}

// Private initialization methods

func (a *App) initializeStorage() error {
	mysqlClient, err := database.NewMySQLClient(&a.cfg.MySQL, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	a.mysqlDB = mysqlClient

	redisClient, err := cache.NewRedisClient(&a.cfg.Redis, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.redisCache = redisClient

	if a.cfg.InfluxDB.Enabled {
		a.influxDB = database.NewInfluxClient(&a.cfg.InfluxDB, a.logger)
		if err := a.influxDB.Health(a.ctx); err != nil {
			return fmt.Errorf("failed to connect to InfluxDB: %w", err)
		}
	}

	return nil
}

func (a *App) initializeMessaging() error {
	natsClient, err := messaging.NewNATSClient(&a.cfg.NATS, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.natsClient = natsClient

	return nil
}

func (a *App) initializeGateway() {
	a.gatewayClient = gateway.NewClient(a.redisCache, &a.cfg.Gateway, &a.cfg.Providers, a.logger)
	a.gatewayClient.SetErrorReporter(a.natsClient)

	coingecko := providers.NewCoinGecko(a.gatewayClient, a.cfg.Providers.CoinGeckoURL, a.logger)
	coinmarketcap := providers.NewCoinMarketCap(a.gatewayClient, a.cfg.Providers.CoinMarketCapURL, a.logger)
	coinpaprika := providers.NewCoinPaprika(a.gatewayClient, a.cfg.Providers.CoinPaprikaURL, a.logger)
	massive := providers.NewMassive(a.gatewayClient, a.cfg.Providers.MassiveURL, a.cfg.Providers.MassiveKey, a.logger)

	// Fallback order: CoinGecko first, then CoinMarketCap, then CoinPaprika.
	history := []market.HistoryProvider{coingecko, coinmarketcap, coinpaprika}

	var bars market.BarWriter
	if a.influxDB != nil {
		bars = a.influxDB
	}

	a.chartService = market.NewChartService(a.redisCache, history, massive, bars, &a.cfg.Gateway, a.logger)
	a.marketFacade = market.NewFacade(a.redisCache, coingecko, a.natsClient, a.logger)
}

func (a *App) initializeServices() {
	a.notificationService = services.NewNotificationService(a.mysqlDB, a.natsClient, a.logger)
	a.walletService = services.NewWalletService(a.mysqlDB, a.redisCache, a.notificationService, a.logger)
	a.tradeService = services.NewTradeService(a.mysqlDB, a.marketFacade, a.notificationService, a.logger)
	a.kycService = services.NewKYCService(a.mysqlDB, a.notificationService, a.logger)
}

func (a *App) closeConnections() {
	if a.mysqlDB != nil {
		if err := a.mysqlDB.Close(); err != nil {
			a.logger.WithError(err).Error("Failed to close MySQL")
		}
	}

	if a.influxDB != nil {
		a.influxDB.Close()
	}

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.logger.WithError(err).Error("Failed to close Redis")
		}
	}

	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil {
			a.logger.WithError(err).Error("Failed to close NATS")
		}
	}
}
