package models

import "time"

// AuditModel is the audit_records table: one row per Deny, RateLimited
// or failed-delivery outcome.
type AuditModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	ChatID    string    `gorm:"size:64;index"`
	SenderID  string    `gorm:"size:64"`
	Verdict   string    `gorm:"size:32;not null"`
	Reason    string    `gorm:"type:text"`
	MessageID string    `gorm:"size:64"`
	CreatedAt time.Time `gorm:"index"`
}

func (AuditModel) TableName() string {
	return "audit_records"
}
