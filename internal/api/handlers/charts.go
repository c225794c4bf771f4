// Package handlers holds the HTTP handlers behind the API server's
// routes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/market"
)

// ChartsHandler serves price history and OHLC chart endpoints.
type ChartsHandler struct {
	charts *market.ChartService
	logger *logrus.Entry
}

// NewChartsHandler creates a new charts handler
func NewChartsHandler(charts *market.ChartService, logger *logrus.Logger) *ChartsHandler {
	return &ChartsHandler{
		charts: charts,
		logger: logger.WithField("component", "charts-api"),
	}
}

// RegisterRoutes registers chart endpoints
func (h *ChartsHandler) RegisterRoutes(router *mux.Router) {
	charts := router.PathPrefix("/api/v1/charts").Subrouter()
	charts.HandleFunc("/paginated", h.GetPaginatedChart).Methods("GET")
	charts.HandleFunc("/trade/{category}/{symbol}", h.GetTradeChart).Methods("GET")
	charts.HandleFunc("/{symbol}", h.GetChart).Methods("GET")
}

// GetChart handles GET /api/v1/charts/{symbol}
//
// The response always carries HTTP 200; provider exhaustion is reported
// in the body so chart widgets can degrade without an error path.
func (h *ChartsHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			h.writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = parsed
	}

	chart := h.charts.FetchChartData(r.Context(), symbol, days)
	h.writeJSON(w, http.StatusOK, chart)
}

// GetTradeChart handles GET /api/v1/charts/trade/{category}/{symbol}
func (h *ChartsHandler) GetTradeChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	chart, err := h.charts.FetchTradeChartData(r.Context(), vars["symbol"], vars["category"])
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, chart)
}

// GetPaginatedChart handles GET /api/v1/charts/paginated
func (h *ChartsHandler) GetPaginatedChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	category := q.Get("category")
	cursor := q.Get("cursor")

	if symbol == "" || category == "" || cursor == "" {
		h.writeError(w, http.StatusBadRequest, "symbol, category and cursor are required")
		return
	}

	chart, err := h.charts.FetchPaginatedChartData(r.Context(), symbol, category, cursor, q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, chart)
}

func (h *ChartsHandler) writeGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrInvalidCategory):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrPairNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, gateway.ErrRateLimitExceeded):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, gateway.ErrProviderUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.WithError(err).Error("Chart request failed")
		h.writeError(w, http.StatusBadGateway, "upstream provider error")
	}
}

func (h *ChartsHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *ChartsHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
