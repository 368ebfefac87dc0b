package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/chatwork/chatwork/gateway/pkg/errors"
)

// GormAuditLog writes audit records to the audit_records table.
type GormAuditLog struct {
	db *gorm.DB
}

func NewGormAuditLog(db *gorm.DB) *GormAuditLog {
	return &GormAuditLog{db: db}
}

func (l *GormAuditLog) Record(ctx context.Context, rec repository.AuditRecord) error {
	model := &models.AuditModel{
		ID:        rec.ID,
		ChatID:    rec.ChatID,
		SenderID:  rec.SenderID,
		Verdict:   rec.Verdict,
		Reason:    rec.Reason,
		MessageID: rec.MessageID,
		CreatedAt: rec.CreatedAt,
	}
	if err := l.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewUnavailable("failed to record audit entry", err)
	}
	return nil
}
