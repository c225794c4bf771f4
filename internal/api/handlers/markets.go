package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/market"
)

// defaultMarketSymbols is served when the request names no symbols.
var defaultMarketSymbols = []string{
	"btc", "eth", "usdt", "bnb", "sol", "xrp", "ada", "doge", "trx", "ltc",
}

// MarketsHandler serves live market quote endpoints.
type MarketsHandler struct {
	facade *market.Facade
	logger *logrus.Entry
}

// NewMarketsHandler creates a new markets handler
func NewMarketsHandler(facade *market.Facade, logger *logrus.Logger) *MarketsHandler {
	return &MarketsHandler{
		facade: facade,
		logger: logger.WithField("component", "markets-api"),
	}
}

// RegisterRoutes registers market data endpoints
func (h *MarketsHandler) RegisterRoutes(router *mux.Router) {
	markets := router.PathPrefix("/api/v1/markets").Subrouter()
	markets.HandleFunc("", h.GetMarkets).Methods("GET")
	markets.HandleFunc("/{symbol}/price", h.GetPrice).Methods("GET")
}

// GetMarkets handles GET /api/v1/markets?symbols=btc,eth
func (h *MarketsHandler) GetMarkets(w http.ResponseWriter, r *http.Request) {
	symbols := defaultMarketSymbols
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		symbols = nil
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(strings.ToLower(s))
			if s != "" {
				symbols = append(symbols, s)
			}
		}
	}
	if len(symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "no symbols requested")
		return
	}

	quotes, err := h.facade.GetMarketData(r.Context(), symbols)
	if err != nil {
		h.logger.WithError(err).Error("Market data request failed")
		h.writeError(w, http.StatusBadGateway, "upstream provider error")
		return
	}

	h.writeJSON(w, http.StatusOK, quotes)
}

// GetPrice handles GET /api/v1/markets/{symbol}/price
func (h *MarketsHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToLower(mux.Vars(r)["symbol"])

	price, err := h.facade.GetPrice(r.Context(), symbol)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Warn("Price lookup failed")
		h.writeError(w, http.StatusNotFound, "price unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"price":  price,
	})
}

func (h *MarketsHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *MarketsHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
