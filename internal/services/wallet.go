package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/cache"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/database"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// supportedCurrencies is the set of currencies a wallet may hold.
var supportedCurrencies = []string{
	"USD", "BTC", "ETH", "USDT", "BNB", "SOL", "XRP", "ADA", "DOGE", "TRX", "LTC",
}

// WalletService manages user balances.
type WalletService struct {
	mysql    *database.MySQLClient
	redis    *cache.RedisClient
	notifier *NotificationService
	logger   *logrus.Entry
}

// NewWalletService creates a new wallet service
func NewWalletService(mysql *database.MySQLClient, redis *cache.RedisClient, notifier *NotificationService, logger *logrus.Logger) *WalletService {
	return &WalletService{
		mysql:    mysql,
		redis:    redis,
		notifier: notifier,
		logger:   logger.WithField("component", "wallet-service"),
	}
}

// SupportedCurrencies returns the currencies wallets may hold. The list is
// static today but cached so a future DB-backed list keeps the same path.
func (ws *WalletService) SupportedCurrencies(ctx context.Context) ([]string, error) {
	var currencies []string
	err := ws.redis.Remember(ctx, "wallet:currencies", cache.TTLWalletRef, &currencies, func() (interface{}, error) {
		return supportedCurrencies, nil
	})
	if err != nil {
		return supportedCurrencies, nil
	}
	return currencies, nil
}

// Balances returns all of a user's balances.
func (ws *WalletService) Balances(ctx context.Context, userID string) ([]*models.WalletBalance, error) {
	return ws.mysql.GetBalances(ctx, userID)
}

// Balance returns a user's balance in one currency.
func (ws *WalletService) Balance(ctx context.Context, userID, currency string) (*models.WalletBalance, error) {
	if !ws.isSupported(currency) {
		return nil, fmt.Errorf("unsupported currency: %s", currency)
	}
	return ws.mysql.GetBalance(ctx, userID, currency)
}

// Deposit credits a user's balance.
func (ws *WalletService) Deposit(ctx context.Context, userID, currency string, amount float64) error {
	if err := ws.validate(currency, amount); err != nil {
		return err
	}

	err := ws.mysql.WithTx(ctx, func(tx *sql.Tx) error {
		return ws.mysql.AdjustBalanceTx(ctx, tx, userID, currency, amount)
	})
	if err != nil {
		return err
	}

	payload := fmt.Sprintf("Deposited %.8f %s", amount, currency)
	if err := ws.notifier.Notify(ctx, userID, NotificationKindDeposit, payload); err != nil {
		ws.logger.WithError(err).Warn("Failed to record deposit notification")
	}
	return nil
}

// Withdraw debits a user's balance. Fails when the balance is insufficient.
func (ws *WalletService) Withdraw(ctx context.Context, userID, currency string, amount float64) error {
	if err := ws.validate(currency, amount); err != nil {
		return err
	}

	err := ws.mysql.WithTx(ctx, func(tx *sql.Tx) error {
		return ws.mysql.AdjustBalanceTx(ctx, tx, userID, currency, -amount)
	})
	if err != nil {
		return err
	}

	payload := fmt.Sprintf("Withdrew %.8f %s", amount, currency)
	if err := ws.notifier.Notify(ctx, userID, NotificationKindWithdraw, payload); err != nil {
		ws.logger.WithError(err).Warn("Failed to record withdrawal notification")
	}
	return nil
}

// Transfer moves funds between two users in one transaction. The debit
// runs first so an insufficient balance aborts before any credit.
func (ws *WalletService) Transfer(ctx context.Context, fromUserID, toUserID, currency string, amount float64) error {
	if err := ws.validate(currency, amount); err != nil {
		return err
	}
	if fromUserID == toUserID {
		return fmt.Errorf("cannot transfer to the same user")
	}

	err := ws.mysql.WithTx(ctx, func(tx *sql.Tx) error {
		if err := ws.mysql.AdjustBalanceTx(ctx, tx, fromUserID, currency, -amount); err != nil {
			return err
		}
		return ws.mysql.AdjustBalanceTx(ctx, tx, toUserID, currency, amount)
	})
	if err != nil {
		return err
	}

	sent := fmt.Sprintf("Sent %.8f %s", amount, currency)
	if err := ws.notifier.Notify(ctx, fromUserID, NotificationKindTransfer, sent); err != nil {
		ws.logger.WithError(err).Warn("Failed to record transfer notification")
	}
	received := fmt.Sprintf("Received %.8f %s", amount, currency)
	if err := ws.notifier.Notify(ctx, toUserID, NotificationKindTransfer, received); err != nil {
		ws.logger.WithError(err).Warn("Failed to record transfer notification")
	}
	return nil
}

func (ws *WalletService) validate(currency string, amount float64) error {
	if !ws.isSupported(currency) {
		return fmt.Errorf("unsupported currency: %s", currency)
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

func (ws *WalletService) isSupported(currency string) bool {
	return isSupportedCurrency(currency)
}

// isSupportedCurrency reports whether wallets may hold the currency.
func isSupportedCurrency(currency string) bool {
	for _, c := range supportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}
