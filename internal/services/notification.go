// Package services holds the account-facing business logic: wallets,
// trade execution, KYC and notifications.
package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/database"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/messaging"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// Notification kinds.
const (
	NotificationKindDeposit  = "deposit"
	NotificationKindWithdraw = "withdraw"
	NotificationKindTransfer = "transfer"
	NotificationKindTrade    = "trade"
	NotificationKindKYC      = "kyc"
)

// NotificationService records notifications and pushes them to connected
// clients over NATS. A NATS outage never fails the triggering operation.
type NotificationService struct {
	mysql  *database.MySQLClient
	nats   *messaging.NATSClient
	logger *logrus.Entry
}

// NewNotificationService creates a new notification service
func NewNotificationService(mysql *database.MySQLClient, nats *messaging.NATSClient, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		mysql:  mysql,
		nats:   nats,
		logger: logger.WithField("component", "notification-service"),
	}
}

// Notify persists a notification and publishes it for live delivery.
func (ns *NotificationService) Notify(ctx context.Context, userID, kind, payload string) error {
	notification := &models.Notification{
		UserID:  userID,
		Kind:    kind,
		Payload: payload,
	}

	if err := ns.mysql.InsertNotification(ctx, notification); err != nil {
		return err
	}

	if ns.nats != nil {
		if err := ns.nats.PublishNotification(notification); err != nil {
			ns.logger.WithError(err).WithFields(logrus.Fields{
				"user_id": userID,
				"kind":    kind,
			}).Warn("Failed to publish notification")
		}
	}

	return nil
}

// List returns a user's notifications, most recent first.
func (ns *NotificationService) List(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return ns.mysql.ListNotifications(ctx, userID, limit)
}
