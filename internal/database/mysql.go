// Package database holds the persistent stores: MySQL for wallet, trade,
// KYC and notification rows, InfluxDB for chart bars.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/pkg/config"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// MySQLClient handles MySQL database operations
type MySQLClient struct {
	db     *sql.DB
	logger *logrus.Entry
	cfg    *config.MySQLConfig
}

// NewMySQLClient creates a new MySQL client
func NewMySQLClient(cfg *config.MySQLConfig, logger *logrus.Logger) (*MySQLClient, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &MySQLClient{
		db:     db,
		logger: logger.WithField("component", "mysql"),
		cfg:    cfg,
	}, nil
}

// Close closes the database connection
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// Health checks database health
func (mc *MySQLClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return mc.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction, rolling back on error.
func (mc *MySQLClient) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := mc.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			mc.logger.WithError(rbErr).Error("Rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Wallet operations

// GetBalance fetches a user's balance in a currency. A missing row is
// returned as a zero balance.
func (mc *MySQLClient) GetBalance(ctx context.Context, userID, currency string) (*models.WalletBalance, error) {
	query := `
		SELECT id, user_id, currency, amount, updated_at
		FROM wallet_balances
		WHERE user_id = ? AND currency = ?
	`

	balance := &models.WalletBalance{UserID: userID, Currency: currency}
	err := mc.db.QueryRowContext(ctx, query, userID, currency).Scan(
		&balance.ID,
		&balance.UserID,
		&balance.Currency,
		&balance.Amount,
		&balance.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return balance, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query balance: %w", err)
	}

	return balance, nil
}

// GetBalances fetches all of a user's balances.
func (mc *MySQLClient) GetBalances(ctx context.Context, userID string) ([]*models.WalletBalance, error) {
	query := `
		SELECT id, user_id, currency, amount, updated_at
		FROM wallet_balances
		WHERE user_id = ?
		ORDER BY currency
	`

	rows, err := mc.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var balances []*models.WalletBalance
	for rows.Next() {
		balance := &models.WalletBalance{}
		if err := rows.Scan(
			&balance.ID,
			&balance.UserID,
			&balance.Currency,
			&balance.Amount,
			&balance.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, balance)
	}

	return balances, rows.Err()
}

// AdjustBalanceTx applies a signed delta to a balance inside tx. The row
// is created on first credit. Debits that would go negative fail without
// mutating state.
func (mc *MySQLClient) AdjustBalanceTx(ctx context.Context, tx *sql.Tx, userID, currency string, delta float64) error {
	var amount float64
	err := tx.QueryRowContext(ctx,
		`SELECT amount FROM wallet_balances WHERE user_id = ? AND currency = ? FOR UPDATE`,
		userID, currency,
	).Scan(&amount)

	switch {
	case err == sql.ErrNoRows:
		if delta < 0 {
			return fmt.Errorf("insufficient balance: %s %s", userID, currency)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO wallet_balances (user_id, currency, amount, updated_at) VALUES (?, ?, ?, NOW())`,
			userID, currency, delta,
		)
		if err != nil {
			return fmt.Errorf("failed to insert balance: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to lock balance row: %w", err)
	}

	if amount+delta < 0 {
		return fmt.Errorf("insufficient balance: %s %s", userID, currency)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE wallet_balances SET amount = amount + ?, updated_at = NOW() WHERE user_id = ? AND currency = ?`,
		delta, userID, currency,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

// Trade operations

// InsertTradeTx records an executed trade inside tx.
func (mc *MySQLClient) InsertTradeTx(ctx context.Context, tx *sql.Tx, trade *models.Trade) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO trades (user_id, symbol, side, amount, price, total, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, NOW())`,
		trade.UserID, trade.Symbol, trade.Side, trade.Amount, trade.Price, trade.Total,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// ListTrades fetches a user's trades, most recent first.
func (mc *MySQLClient) ListTrades(ctx context.Context, userID string, limit int) ([]*models.Trade, error) {
	query := `
		SELECT id, user_id, symbol, side, amount, price, total, created_at
		FROM trades
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := mc.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		trade := &models.Trade{}
		if err := rows.Scan(
			&trade.ID,
			&trade.UserID,
			&trade.Symbol,
			&trade.Side,
			&trade.Amount,
			&trade.Price,
			&trade.Total,
			&trade.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}

	return trades, rows.Err()
}

// KYC operations

// UpsertKYC inserts or replaces a user's KYC submission, resetting its
// status to pending.
func (mc *MySQLClient) UpsertKYC(ctx context.Context, record *models.KYCRecord) error {
	_, err := mc.db.ExecContext(ctx,
		`INSERT INTO kyc_records (user_id, full_name, country, document_ref, status, submitted_at)
		 VALUES (?, ?, ?, ?, ?, NOW())
		 ON DUPLICATE KEY UPDATE
		   full_name = VALUES(full_name),
		   country = VALUES(country),
		   document_ref = VALUES(document_ref),
		   status = VALUES(status),
		   submitted_at = NOW(),
		   reviewed_at = NULL`,
		record.UserID, record.FullName, record.Country, record.DocumentRef, models.KYCStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert kyc record: %w", err)
	}
	return nil
}

// GetKYC fetches a user's KYC record, or nil when none exists.
func (mc *MySQLClient) GetKYC(ctx context.Context, userID string) (*models.KYCRecord, error) {
	query := `
		SELECT id, user_id, full_name, country, document_ref, status, submitted_at, reviewed_at
		FROM kyc_records
		WHERE user_id = ?
	`

	record := &models.KYCRecord{}
	var reviewedAt sql.NullTime
	err := mc.db.QueryRowContext(ctx, query, userID).Scan(
		&record.ID,
		&record.UserID,
		&record.FullName,
		&record.Country,
		&record.DocumentRef,
		&record.Status,
		&record.SubmittedAt,
		&reviewedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query kyc record: %w", err)
	}
	if reviewedAt.Valid {
		record.ReviewedAt = &reviewedAt.Time
	}

	return record, nil
}

// ReviewKYC moves a submission out of pending, stamping the review time.
func (mc *MySQLClient) ReviewKYC(ctx context.Context, userID, status string) error {
	_, err := mc.db.ExecContext(ctx,
		`UPDATE kyc_records SET status = ?, reviewed_at = NOW() WHERE user_id = ?`,
		status, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to review kyc record: %w", err)
	}
	return nil
}

// Notification operations

// InsertNotification records a user notification.
func (mc *MySQLClient) InsertNotification(ctx context.Context, n *models.Notification) error {
	_, err := mc.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, kind, payload, is_read, created_at)
		 VALUES (?, ?, ?, 0, NOW())`,
		n.UserID, n.Kind, n.Payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListNotifications fetches a user's notifications, most recent first.
func (mc *MySQLClient) ListNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, kind, payload, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := mc.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Payload, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// Migrate creates the schema when it does not exist.
func (mc *MySQLClient) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS wallet_balances (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			currency VARCHAR(16) NOT NULL,
			amount DOUBLE NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY user_currency (user_id, currency)
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			symbol VARCHAR(32) NOT NULL,
			side VARCHAR(8) NOT NULL,
			amount DOUBLE NOT NULL,
			price DOUBLE NOT NULL,
			total DOUBLE NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			KEY user_created (user_id, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS kyc_records (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL UNIQUE,
			full_name VARCHAR(128) NOT NULL,
			country VARCHAR(64) NOT NULL,
			document_ref VARCHAR(128) NOT NULL,
			status VARCHAR(16) NOT NULL,
			submitted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			reviewed_at TIMESTAMP NULL DEFAULT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INT AUTO_INCREMENT PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			payload TEXT NOT NULL,
			is_read TINYINT(1) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			KEY user_created (user_id, created_at)
		)`,
	}

	for _, stmt := range statements {
		if _, err := mc.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	mc.logger.Info("Schema migration complete")
	return nil
}
