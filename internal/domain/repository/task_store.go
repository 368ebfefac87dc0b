package repository

import (
	"context"
	"time"
)

// TaskStatus is the lifecycle of a delegated background task.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "complete"
	TaskFailed   TaskStatus = "failed"
)

// Task is a durable record of delegated long-running work. The
// correlation id ties completion back to the originating chat and
// inbound message so the result re-enters the delivery path.
type Task struct {
	ID            string
	ChatID        string
	Workspace     string
	CorrelationID string
	Payload       string
	Status        TaskStatus
	Result        string
	Error         string
	CreatedAt     time.Time
	StartedAt     time.Time
	DoneAt        time.Time
}

// TaskStore persists delegated tasks so they survive restarts. Pending
// tasks are re-enqueued on startup.
type TaskStore interface {
	Enqueue(ctx context.Context, task *Task) error
	Pending(ctx context.Context) ([]*Task, error)
	MarkRunning(ctx context.Context, id string) error
	MarkComplete(ctx context.Context, id, result string) error
	MarkFailed(ctx context.Context, id, reason string) error
}
