package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/services"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// AccountHandler serves wallet, trade, KYC and notification endpoints.
// The user is identified by the {userID} path segment; authentication
// sits in front of this service.
type AccountHandler struct {
	wallet        *services.WalletService
	trades        *services.TradeService
	kyc           *services.KYCService
	notifications *services.NotificationService
	logger        *logrus.Entry
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(
	wallet *services.WalletService,
	trades *services.TradeService,
	kyc *services.KYCService,
	notifications *services.NotificationService,
	logger *logrus.Logger,
) *AccountHandler {
	return &AccountHandler{
		wallet:        wallet,
		trades:        trades,
		kyc:           kyc,
		notifications: notifications,
		logger:        logger.WithField("component", "account-api"),
	}
}

// RegisterRoutes registers account endpoints
func (h *AccountHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/wallet/currencies", h.GetCurrencies).Methods("GET")
	api.HandleFunc("/wallet/{userID}", h.GetBalances).Methods("GET")
	api.HandleFunc("/wallet/{userID}/deposit", h.Deposit).Methods("POST")
	api.HandleFunc("/wallet/{userID}/withdraw", h.Withdraw).Methods("POST")
	api.HandleFunc("/wallet/{userID}/transfer", h.Transfer).Methods("POST")

	api.HandleFunc("/trades/{userID}", h.GetTrades).Methods("GET")
	api.HandleFunc("/trades/{userID}", h.ExecuteTrade).Methods("POST")

	api.HandleFunc("/kyc/{userID}", h.GetKYCStatus).Methods("GET")
	api.HandleFunc("/kyc/{userID}", h.SubmitKYC).Methods("POST")
	api.HandleFunc("/kyc/{userID}/review", h.ReviewKYC).Methods("POST")

	api.HandleFunc("/notifications/{userID}", h.GetNotifications).Methods("GET")
}

// Wallet endpoints

// GetCurrencies handles GET /api/v1/wallet/currencies
func (h *AccountHandler) GetCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.wallet.SupportedCurrencies(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load currencies")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"currencies": currencies})
}

// GetBalances handles GET /api/v1/wallet/{userID}
func (h *AccountHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	balances, err := h.wallet.Balances(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load balances")
		h.writeError(w, http.StatusInternalServerError, "failed to load balances")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"balances": balances,
	})
}

// amountRequest is the body for deposit and withdrawal requests.
type amountRequest struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// Deposit handles POST /api/v1/wallet/{userID}/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.wallet.Deposit(r.Context(), userID, strings.ToUpper(req.Currency), req.Amount); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Withdraw handles POST /api/v1/wallet/{userID}/withdraw
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.wallet.Withdraw(r.Context(), userID, strings.ToUpper(req.Currency), req.Amount); err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "insufficient balance") {
			status = http.StatusConflict
		}
		h.writeError(w, status, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// transferRequest is the body for wallet-to-wallet transfers.
type transferRequest struct {
	ToUserID string  `json:"to_user_id"`
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// Transfer handles POST /api/v1/wallet/{userID}/transfer
func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ToUserID == "" {
		h.writeError(w, http.StatusBadRequest, "to_user_id is required")
		return
	}

	if err := h.wallet.Transfer(r.Context(), userID, req.ToUserID, strings.ToUpper(req.Currency), req.Amount); err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "insufficient balance") {
			status = http.StatusConflict
		}
		h.writeError(w, status, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Trade endpoints

// tradeRequest is the body for trade execution requests.
type tradeRequest struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Amount float64 `json:"amount"`
}

// ExecuteTrade handles POST /api/v1/trades/{userID}
func (h *AccountHandler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trade, err := h.trades.Execute(r.Context(), userID, strings.ToLower(req.Symbol), req.Side, req.Amount)
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "insufficient balance") {
			status = http.StatusConflict
		}
		h.writeError(w, status, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, trade)
}

// GetTrades handles GET /api/v1/trades/{userID}
func (h *AccountHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	trades, err := h.trades.History(r.Context(), userID, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load trades")
		h.writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"trades":  trades,
	})
}

// KYC endpoints

// kycRequest is the body for verification submissions.
type kycRequest struct {
	FullName    string `json:"full_name"`
	Country     string `json:"country"`
	DocumentRef string `json:"document_ref"`
}

// SubmitKYC handles POST /api/v1/kyc/{userID}
func (h *AccountHandler) SubmitKYC(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req kycRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record := &models.KYCRecord{
		UserID:      userID,
		FullName:    req.FullName,
		Country:     req.Country,
		DocumentRef: req.DocumentRef,
	}
	if err := h.kyc.Submit(r.Context(), record); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": models.KYCStatusPending})
}

// kycReviewRequest is the body for review decisions.
type kycReviewRequest struct {
	Status string `json:"status"`
}

// ReviewKYC handles POST /api/v1/kyc/{userID}/review
func (h *AccountHandler) ReviewKYC(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req kycReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.kyc.Review(r.Context(), userID, req.Status); err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "no kyc submission") {
			status = http.StatusNotFound
		}
		h.writeError(w, status, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// GetKYCStatus handles GET /api/v1/kyc/{userID}
func (h *AccountHandler) GetKYCStatus(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	record, err := h.kyc.Status(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load kyc record")
		h.writeError(w, http.StatusInternalServerError, "failed to load kyc record")
		return
	}
	if record == nil {
		h.writeError(w, http.StatusNotFound, "no kyc submission")
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// Notification endpoints

// GetNotifications handles GET /api/v1/notifications/{userID}
func (h *AccountHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	notifications, err := h.notifications.List(r.Context(), userID, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load notifications")
		h.writeError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":       userID,
		"notifications": notifications,
	})
}

func (h *AccountHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *AccountHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
