package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

func newTestKYCService() *KYCService {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewKYCService(nil, nil, logger)
}

func TestSubmit_RequiresAllFields(t *testing.T) {
	ks := newTestKYCService()

	err := ks.Submit(context.Background(), &models.KYCRecord{
		UserID:   "user-1",
		FullName: "Ada Lovelace",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all kyc fields are required")
}

func TestReview_RejectsInvalidStatus(t *testing.T) {
	ks := newTestKYCService()

	for _, status := range []string{"", "pending", "maybe"} {
		err := ks.Review(context.Background(), "user-1", status)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid review status")
	}
}
