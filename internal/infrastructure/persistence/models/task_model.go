package models

import "time"

// TaskModel is the tasks table backing the durable background queue.
type TaskModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	ChatID        string `gorm:"size:64;not null;index"`
	Workspace     string `gorm:"size:64"`
	CorrelationID string `gorm:"size:64;not null"`
	Payload       string `gorm:"type:text;not null"`
	Status        string `gorm:"size:16;not null;index"`
	Result        string `gorm:"type:text"`
	Error         string `gorm:"type:text"`
	CreatedAt     time.Time
	StartedAt     *time.Time
	DoneAt        *time.Time
}

func (TaskModel) TableName() string {
	return "tasks"
}
