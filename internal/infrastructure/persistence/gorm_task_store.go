package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/chatwork/chatwork/gateway/pkg/errors"
)

// GormTaskStore persists delegated tasks. Pending includes tasks left
// in running state by a crashed process so they are retried on startup.
type GormTaskStore struct {
	db *gorm.DB
}

func NewGormTaskStore(db *gorm.DB) *GormTaskStore {
	return &GormTaskStore{db: db}
}

func (s *GormTaskStore) Enqueue(ctx context.Context, task *repository.Task) error {
	model := &models.TaskModel{
		ID:            task.ID,
		ChatID:        task.ChatID,
		Workspace:     task.Workspace,
		CorrelationID: task.CorrelationID,
		Payload:       task.Payload,
		Status:        string(repository.TaskPending),
		CreatedAt:     task.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewUnavailable("failed to enqueue task", err)
	}
	return nil
}

func (s *GormTaskStore) Pending(ctx context.Context) ([]*repository.Task, error) {
	var rows []models.TaskModel
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{string(repository.TaskPending), string(repository.TaskRunning)}).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewUnavailable("failed to load pending tasks", err)
	}

	tasks := make([]*repository.Task, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, taskFromModel(&rows[i]))
	}
	return tasks, nil
}

func (s *GormTaskStore) MarkRunning(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.update(ctx, id, map[string]interface{}{
		"status":     string(repository.TaskRunning),
		"started_at": &now,
	})
}

func (s *GormTaskStore) MarkComplete(ctx context.Context, id, result string) error {
	now := time.Now().UTC()
	return s.update(ctx, id, map[string]interface{}{
		"status":  string(repository.TaskComplete),
		"result":  result,
		"done_at": &now,
	})
}

func (s *GormTaskStore) MarkFailed(ctx context.Context, id, reason string) error {
	now := time.Now().UTC()
	return s.update(ctx, id, map[string]interface{}{
		"status":  string(repository.TaskFailed),
		"error":   reason,
		"done_at": &now,
	})
}

func (s *GormTaskStore) update(ctx context.Context, id string, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).
		Model(&models.TaskModel{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return domainErrors.NewUnavailable("failed to update task", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFound("task not found")
	}
	return nil
}

func taskFromModel(m *models.TaskModel) *repository.Task {
	t := &repository.Task{
		ID:            m.ID,
		ChatID:        m.ChatID,
		Workspace:     m.Workspace,
		CorrelationID: m.CorrelationID,
		Payload:       m.Payload,
		Status:        repository.TaskStatus(m.Status),
		Result:        m.Result,
		Error:         m.Error,
		CreatedAt:     m.CreatedAt,
	}
	if m.StartedAt != nil {
		t.StartedAt = *m.StartedAt
	}
	if m.DoneAt != nil {
		t.DoneAt = *m.DoneAt
	}
	return t
}
