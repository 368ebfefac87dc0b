package persistence

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/chatwork/chatwork/gateway/pkg/errors"
)

// GormDeliveryStore backs reply idempotency with the deliveries table.
// Reserve relies on the unique key constraint, which makes it safe
// across processes, not just goroutines.
type GormDeliveryStore struct {
	db *gorm.DB
}

func NewGormDeliveryStore(db *gorm.DB) *GormDeliveryStore {
	return &GormDeliveryStore{db: db}
}

func (s *GormDeliveryStore) Reserve(ctx context.Context, key, chatID, inboundID string) (bool, error) {
	model := &models.DeliveryModel{
		Key:       key,
		ChatID:    chatID,
		InboundID: inboundID,
		Status:    string(repository.DeliveryPending),
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return false, nil
		}
		return false, domainErrors.NewUnavailable("failed to reserve delivery", err)
	}
	return true, nil
}

func (s *GormDeliveryStore) MarkDelivered(ctx context.Context, key, outboundID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.DeliveryModel{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"status":      string(repository.DeliveryDelivered),
			"outbound_id": outboundID,
		}).Error
	if err != nil {
		return domainErrors.NewUnavailable("failed to mark delivery complete", err)
	}
	return nil
}

func (s *GormDeliveryStore) MarkFailed(ctx context.Context, key, reason string) error {
	err := s.db.WithContext(ctx).
		Model(&models.DeliveryModel{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"status": string(repository.DeliveryFailed),
			"reason": reason,
		}).Error
	if err != nil {
		return domainErrors.NewUnavailable("failed to mark delivery failed", err)
	}
	return nil
}
