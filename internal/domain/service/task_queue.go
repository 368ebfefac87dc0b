package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	apperrors "github.com/chatwork/chatwork/gateway/pkg/errors"
	"github.com/chatwork/chatwork/gateway/pkg/safego"
)

// TaskMetrics receives task outcome counts. Optional.
type TaskMetrics interface {
	IncTaskCompleted()
	IncTaskFailed()
}

// TaskQueue is the durable background queue for delegated long tasks.
// Enqueue persists before dispatch, so a crash between enqueue and
// execution loses nothing: Start re-enqueues every pending row.
type TaskQueue struct {
	store        repository.TaskStore
	orchestrator *AgentOrchestrator
	responses    *ResponseManager
	doneText     string
	logger       *zap.Logger
	metrics      TaskMetrics

	workers int
	ch      chan *repository.Task
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewTaskQueue(
	store repository.TaskStore,
	orchestrator *AgentOrchestrator,
	responses *ResponseManager,
	cfg config.TasksConfig,
	doneText string,
	logger *zap.Logger,
) *TaskQueue {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	return &TaskQueue{
		store:        store,
		orchestrator: orchestrator,
		responses:    responses,
		doneText:     doneText,
		logger:       logger,
		workers:      workers,
		ch:           make(chan *repository.Task, workers*8),
	}
}

// SetMetrics attaches an outcome counter sink.
func (q *TaskQueue) SetMetrics(m TaskMetrics) {
	q.metrics = m
}

func (q *TaskQueue) countOutcome(completed bool) {
	if q.metrics == nil {
		return
	}
	if completed {
		q.metrics.IncTaskCompleted()
	} else {
		q.metrics.IncTaskFailed()
	}
}

// Start launches the consumer pool and re-enqueues tasks left pending by
// a previous run.
func (q *TaskQueue) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		safego.Go(q.logger, fmt.Sprintf("task-worker-%d", i), func() {
			defer q.wg.Done()
			q.run(runCtx)
		})
	}

	pending, err := q.store.Pending(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUnavailable, "load pending tasks", err)
	}
	for _, t := range pending {
		q.dispatch(t)
	}
	if len(pending) > 0 {
		q.logger.Info("Re-enqueued pending tasks", zap.Int("count", len(pending)))
	}
	return nil
}

// Stop cancels in-flight tasks and waits for workers to exit. The
// channel stays open: a straggling Submit after Stop only leaves a
// persisted row for the next Start to recover.
func (q *TaskQueue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// Submit persists and dispatches one delegated task. The correlation id
// is the inbound platform message id, which makes completion delivery
// idempotent.
func (q *TaskQueue) Submit(ctx context.Context, chatID, workspace, correlationID, payload string) (*repository.Task, error) {
	task := &repository.Task{
		ID:            uuid.NewString(),
		ChatID:        chatID,
		Workspace:     workspace,
		CorrelationID: correlationID,
		Payload:       payload,
		Status:        repository.TaskPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := q.store.Enqueue(ctx, task); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "enqueue task", err)
	}
	q.dispatch(task)
	return task, nil
}

func (q *TaskQueue) dispatch(task *repository.Task) {
	select {
	case q.ch <- task:
	default:
		// Channel full: the row is persisted, the next Start picks it
		// up. Better than blocking the pipeline.
		q.logger.Warn("Task channel full, deferring to recovery",
			zap.String("task_id", task.ID),
		)
	}
}

func (q *TaskQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.ch:
			q.execute(ctx, task)
		}
	}
}

func (q *TaskQueue) execute(ctx context.Context, task *repository.Task) {
	log := q.logger.With(zap.String("task_id", task.ID), zap.String("chat_id", task.ChatID))

	if err := q.store.MarkRunning(ctx, task.ID); err != nil {
		log.Error("Failed to mark task running", zap.Error(err))
		return
	}

	outcome := q.orchestrator.InvokeTask(ctx, AgentRequest{
		ChatID:    task.ChatID,
		Workspace: task.Workspace,
		Body:      task.Payload,
	})

	switch outcome.Kind {
	case OutcomeCompleted:
		q.countOutcome(true)
		if err := q.store.MarkComplete(ctx, task.ID, outcome.Text); err != nil {
			log.Error("Failed to mark task complete", zap.Error(err))
		}
		text := q.doneText + "\n\n" + outcome.Text
		if _, err := q.responses.Deliver(ctx, task.ChatID, "task-"+task.CorrelationID, task.ID, text); err != nil {
			log.Error("Failed to deliver task result", zap.Error(err))
		}
	default:
		q.countOutcome(false)
		if err := q.store.MarkFailed(ctx, task.ID, outcome.Reason); err != nil {
			log.Error("Failed to mark task failed", zap.Error(err))
		}
		if _, err := q.responses.DeliverDegraded(ctx, task.ChatID, "task-"+task.CorrelationID, task.ID, outcome); err != nil {
			log.Error("Failed to deliver task failure notice", zap.Error(err))
		}
	}
}
