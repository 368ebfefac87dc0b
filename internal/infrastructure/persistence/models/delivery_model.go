package models

import "time"

// DeliveryModel is the deliveries table. Key is the idempotency key
// derived from the inbound platform message id; the unique constraint
// is what makes Reserve atomic.
type DeliveryModel struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Key        string `gorm:"size:160;not null;uniqueIndex"`
	ChatID     string `gorm:"size:64;not null;index"`
	InboundID  string `gorm:"size:64;not null"`
	OutboundID string `gorm:"size:64"`
	Status     string `gorm:"size:16;not null"`
	Reason     string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (DeliveryModel) TableName() string {
	return "deliveries"
}
