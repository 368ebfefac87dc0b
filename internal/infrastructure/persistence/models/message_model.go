package models

import "time"

// MessageModel is the messages table. The unique index on
// (chat_id, platform_message_id) rejects duplicate ingestion of the
// same platform message; the (chat_id, created_at) index serves the
// history and search queries.
type MessageModel struct {
	ID                string    `gorm:"primaryKey;size:64"`
	ChatID            string    `gorm:"size:64;not null;uniqueIndex:idx_chat_platform,priority:1;index:idx_chat_created,priority:1"`
	PlatformMessageID string    `gorm:"size:64;uniqueIndex:idx_chat_platform,priority:2"`
	SenderID          string    `gorm:"size:64;not null"`
	SenderName        string    `gorm:"size:128"`
	SenderType        string    `gorm:"size:16;not null"`
	Body              string    `gorm:"type:text;not null"`
	Direction         string    `gorm:"size:16;not null"`
	Kind              string    `gorm:"size:16;not null"`
	Attachments       string    `gorm:"type:text"`
	Metadata          string    `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"not null;index:idx_chat_created,priority:2"`
}

func (MessageModel) TableName() string {
	return "messages"
}
