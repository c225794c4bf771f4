// Package api hosts the HTTP server and its middleware.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	apiHandlers "github.com/ken-de-nigerian/incrypto-sub000/internal/api/handlers"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/cache"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/database"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/market"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/messaging"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/services"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/ws"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/config"
	applog "github.com/ken-de-nigerian/incrypto-sub000/pkg/logger"
)

// Server represents the HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	// Dependencies
	mysqlDB       *database.MySQLClient
	redisCache    *cache.RedisClient
	natsClient    *messaging.NATSClient
	gatewayClient *gateway.Client
	wsHub         *ws.Hub

	// API handlers
	chartsHandler  *apiHandlers.ChartsHandler
	marketsHandler *apiHandlers.MarketsHandler
	accountHandler *apiHandlers.AccountHandler
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	mysqlDB *database.MySQLClient,
	redisCache *cache.RedisClient,
	natsClient *messaging.NATSClient,
	gatewayClient *gateway.Client,
	charts *market.ChartService,
	facade *market.Facade,
	wallet *services.WalletService,
	trades *services.TradeService,
	kyc *services.KYCService,
	notifications *services.NotificationService,
	wsHub *ws.Hub,
) *Server {
	s := &Server{
		cfg:           cfg,
		logger:        logger,
		mysqlDB:       mysqlDB,
		redisCache:    redisCache,
		natsClient:    natsClient,
		gatewayClient: gatewayClient,
		wsHub:         wsHub,
	}

	s.chartsHandler = apiHandlers.NewChartsHandler(charts, logger)
	s.marketsHandler = apiHandlers.NewMarketsHandler(facade, logger)
	s.accountHandler = apiHandlers.NewAccountHandler(wallet, trades, kyc, notifications, logger)

	s.setupRoutes()

	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// Apply middleware FIRST, before defining routes
	s.router.Use(applog.Middleware(s.logger))
	s.router.Use(s.recoveryMiddleware)

	if s.cfg.Security.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Health and gateway monitoring
	apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")
	apiV1.HandleFunc("/gateway/status", s.handleGatewayStatus).Methods("GET")

	// WebSocket endpoint
	apiV1.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	// Domain endpoints
	s.chartsHandler.RegisterRoutes(s.router)
	s.marketsHandler.RegisterRoutes(s.router)
	s.accountHandler.RegisterRoutes(s.router)
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	err := s.httpServer.ListenAndServe()
	if err != nil && !strings.Contains(err.Error(), "Server closed") {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Middleware functions

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
		handlers.AllowedMethods(s.cfg.Security.CORSMethods),
		handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
		handlers.AllowCredentials(),
	)(next)
}

// Handler functions

// handleHealth checks the health status of all system components
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	services := map[string]bool{
		"mysql": s.mysqlDB != nil && s.mysqlDB.Health(ctx) == nil,
		"redis": s.redisCache != nil && s.redisCache.Health(ctx) == nil,
		"nats":  s.natsClient != nil && s.natsClient.IsConnected(),
	}

	status := "healthy"
	code := http.StatusOK
	for _, ok := range services {
		if !ok {
			status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	health := map[string]interface{}{
		"status":            status,
		"services":          services,
		"websocket_clients": s.wsHub.ConnectionCount(),
		"timestamp":         time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}

// handleGatewayStatus reports circuit and rate-limit state per provider
func (s *Server) handleGatewayStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	providerStatus := make(map[string]interface{})
	for _, provider := range gateway.AllProviders {
		circuit := gateway.StateClosed
		failures := 0
		if state, err := s.gatewayClient.Breaker().State(ctx, provider); err == nil && state != nil {
			circuit = state.State
			failures = state.FailureCount
		}
		tokens, err := s.gatewayClient.Limiter().Tokens(ctx, provider)
		if err != nil {
			tokens = 0
		}
		providerStatus[string(provider)] = map[string]interface{}{
			"circuit":  circuit,
			"failures": failures,
			"tokens":   tokens,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"providers": providerStatus,
		"timestamp": time.Now().Unix(),
	})
}

// handleWebSocket establishes WebSocket connection for real-time data
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.wsHub == nil {
		http.Error(w, "WebSocket service unavailable", http.StatusInternalServerError)
		return
	}
	s.wsHub.HandleWebSocket(w, r)
}
