package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/database"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// PriceSource supplies the execution price for a symbol.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// TradeService executes simulated spot trades against wallet balances.
// A buy debits USD and credits the asset; a sell does the reverse. Both
// legs and the trade row commit in one transaction.
type TradeService struct {
	mysql    *database.MySQLClient
	prices   PriceSource
	notifier *NotificationService
	logger   *logrus.Entry
}

// NewTradeService creates a new trade service
func NewTradeService(mysql *database.MySQLClient, prices PriceSource, notifier *NotificationService, logger *logrus.Logger) *TradeService {
	return &TradeService{
		mysql:    mysql,
		prices:   prices,
		notifier: notifier,
		logger:   logger.WithField("component", "trade-service"),
	}
}

// Execute runs a market order at the current provider price.
func (ts *TradeService) Execute(ctx context.Context, userID, symbol, side string, amount float64) (*models.Trade, error) {
	if side != models.TradeSideBuy && side != models.TradeSideSell {
		return nil, fmt.Errorf("invalid trade side: %s", side)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	currency := currencyForSymbol(symbol)
	if !isSupportedCurrency(currency) {
		return nil, fmt.Errorf("unsupported currency: %s", currency)
	}

	price, err := ts.prices.GetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to price %s: %w", symbol, err)
	}
	// A missing quote comes back as a zero price, never book against it.
	if price <= 0 {
		return nil, fmt.Errorf("no price available for %s", symbol)
	}

	trade := &models.Trade{
		UserID: userID,
		Symbol: symbol,
		Side:   side,
		Amount: amount,
		Price:  price,
		Total:  amount * price,
	}

	err = ts.mysql.WithTx(ctx, func(tx *sql.Tx) error {
		if side == models.TradeSideBuy {
			if err := ts.mysql.AdjustBalanceTx(ctx, tx, userID, "USD", -trade.Total); err != nil {
				return err
			}
			if err := ts.mysql.AdjustBalanceTx(ctx, tx, userID, currency, amount); err != nil {
				return err
			}
		} else {
			if err := ts.mysql.AdjustBalanceTx(ctx, tx, userID, currency, -amount); err != nil {
				return err
			}
			if err := ts.mysql.AdjustBalanceTx(ctx, tx, userID, "USD", trade.Total); err != nil {
				return err
			}
		}
		return ts.mysql.InsertTradeTx(ctx, tx, trade)
	})
	if err != nil {
		return nil, err
	}

	payload := fmt.Sprintf("%s %.8f %s @ %.8f", side, amount, symbol, price)
	if err := ts.notifier.Notify(ctx, userID, NotificationKindTrade, payload); err != nil {
		ts.logger.WithError(err).Warn("Failed to record trade notification")
	}

	ts.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"symbol":  symbol,
		"side":    side,
		"total":   trade.Total,
	}).Info("Trade executed")

	return trade, nil
}

// History returns a user's trades, most recent first.
func (ts *TradeService) History(ctx context.Context, userID string, limit int) ([]*models.Trade, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return ts.mysql.ListTrades(ctx, userID, limit)
}

// currencyForSymbol maps a market symbol to its wallet currency. Network
// suffixes like usdt_trc20 collapse to the base currency.
func currencyForSymbol(symbol string) string {
	if i := strings.IndexByte(symbol, '_'); i > 0 {
		symbol = symbol[:i]
	}
	return strings.ToUpper(symbol)
}
