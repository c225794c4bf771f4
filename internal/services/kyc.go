package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/database"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// KYCService handles identity verification submissions. Submissions land
// in pending state; review happens out of band.
type KYCService struct {
	mysql    *database.MySQLClient
	notifier *NotificationService
	logger   *logrus.Entry
}

// NewKYCService creates a new KYC service
func NewKYCService(mysql *database.MySQLClient, notifier *NotificationService, logger *logrus.Logger) *KYCService {
	return &KYCService{
		mysql:    mysql,
		notifier: notifier,
		logger:   logger.WithField("component", "kyc-service"),
	}
}

// Submit records a verification submission. Resubmitting replaces the
// previous record and resets the status to pending.
func (ks *KYCService) Submit(ctx context.Context, record *models.KYCRecord) error {
	if record.UserID == "" || record.FullName == "" || record.Country == "" || record.DocumentRef == "" {
		return fmt.Errorf("all kyc fields are required")
	}

	if err := ks.mysql.UpsertKYC(ctx, record); err != nil {
		return err
	}

	if err := ks.notifier.Notify(ctx, record.UserID, NotificationKindKYC, "Verification submitted for review"); err != nil {
		ks.logger.WithError(err).Warn("Failed to record kyc notification")
	}
	return nil
}

// Status returns a user's verification record, or nil when none exists.
func (ks *KYCService) Status(ctx context.Context, userID string) (*models.KYCRecord, error) {
	return ks.mysql.GetKYC(ctx, userID)
}

// Review resolves a pending submission and notifies the user.
func (ks *KYCService) Review(ctx context.Context, userID, status string) error {
	if status != models.KYCStatusApproved && status != models.KYCStatusRejected {
		return fmt.Errorf("invalid review status: %s", status)
	}

	record, err := ks.mysql.GetKYC(ctx, userID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("no kyc submission for user %s", userID)
	}

	if err := ks.mysql.ReviewKYC(ctx, userID, status); err != nil {
		return err
	}

	if err := ks.notifier.Notify(ctx, userID, NotificationKindKYC, fmt.Sprintf("Verification %s", status)); err != nil {
		ks.logger.WithError(err).Warn("Failed to record kyc notification")
	}
	return nil
}
