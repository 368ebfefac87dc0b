package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
)

// memoryTaskStore is a map-backed task store.
type memoryTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*repository.Task
	order []string
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{tasks: make(map[string]*repository.Task)}
}

func (s *memoryTaskStore) Enqueue(ctx context.Context, task *repository.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	s.order = append(s.order, task.ID)
	return nil
}

func (s *memoryTaskStore) Pending(ctx context.Context) ([]*repository.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.Task
	for _, id := range s.order {
		t := s.tasks[id]
		if t.Status == repository.TaskPending || t.Status == repository.TaskRunning {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryTaskStore) MarkRunning(ctx context.Context, id string) error {
	return s.setStatus(id, repository.TaskRunning, "", "")
}

func (s *memoryTaskStore) MarkComplete(ctx context.Context, id, result string) error {
	return s.setStatus(id, repository.TaskComplete, result, "")
}

func (s *memoryTaskStore) MarkFailed(ctx context.Context, id, reason string) error {
	return s.setStatus(id, repository.TaskFailed, "", reason)
}

func (s *memoryTaskStore) setStatus(id string, st repository.TaskStatus, result, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	t.Status = st
	if result != "" {
		t.Result = result
	}
	if errText != "" {
		t.Error = errText
	}
	return nil
}

func (s *memoryTaskStore) status(id string) repository.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].Status
}

func newTestTaskQueue(t *testing.T, agent AgentClient) (*TaskQueue, *memoryTaskStore, *fakeTransport) {
	t.Helper()
	store := newMemoryTaskStore()
	transport := &fakeTransport{}
	responses, _, _ := newTestManager(transport)
	orchestrator := NewAgentOrchestrator(agent, config.AgentConfig{
		InvokeTimeout: time.Second,
		TaskTimeout:   time.Second,
	}, zap.NewNop())
	q := NewTaskQueue(store, orchestrator, responses, config.TasksConfig{Workers: 2},
		"Task finished:", zap.NewNop())
	return q, store, transport
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTaskQueueRunsSubmittedTask(t *testing.T) {
	agent := &scriptedAgent{script: func(_ int, _ context.Context, onEvent func(AgentEvent)) error {
		onEvent(AgentEvent{Type: AgentEventDelta, Text: "deployed"})
		onEvent(AgentEvent{Type: AgentEventDone})
		return nil
	}}
	q, store, transport := newTestTaskQueue(t, agent)

	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer q.Stop()

	task, err := q.Submit(context.Background(), "c1", "proj", "100", "deploy the service")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, func() bool { return store.status(task.ID) == repository.TaskComplete })
	waitFor(t, func() bool { return transport.sentCount() == 1 })

	transport.mu.Lock()
	body := transport.sent[0]
	transport.mu.Unlock()
	if !strings.Contains(body, "Task finished:") || !strings.Contains(body, "deployed") {
		t.Fatalf("completion message = %q", body)
	}
}

func TestTaskQueueReportsFailure(t *testing.T) {
	agent := &scriptedAgent{script: func(_ int, _ context.Context, onEvent func(AgentEvent)) error {
		onEvent(AgentEvent{Type: AgentEventError, Err: "workspace gone"})
		return nil
	}}
	q, store, transport := newTestTaskQueue(t, agent)

	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer q.Stop()

	task, err := q.Submit(context.Background(), "c1", "proj", "100", "doomed work")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, func() bool { return store.status(task.ID) == repository.TaskFailed })
	waitFor(t, func() bool { return transport.sentCount() == 1 })

	transport.mu.Lock()
	body := transport.sent[0]
	transport.mu.Unlock()
	if strings.Contains(body, "workspace gone") {
		t.Fatalf("raw failure reason leaked to user: %q", body)
	}
}

func TestTaskQueueSubmitAfterStop(t *testing.T) {
	agent := &scriptedAgent{script: func(_ int, _ context.Context, onEvent func(AgentEvent)) error {
		onEvent(AgentEvent{Type: AgentEventDone})
		return nil
	}}
	q, store, _ := newTestTaskQueue(t, agent)

	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	q.Stop()

	// A pipeline worker outliving the drain may still submit; the task
	// must land in the store for recovery, not panic.
	task, err := q.Submit(context.Background(), "c1", "proj", "100", "late submission")
	if err != nil {
		t.Fatalf("Submit after Stop: %v", err)
	}
	pending, err := store.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	found := false
	for _, p := range pending {
		if p.ID == task.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("late task not persisted for recovery")
	}
}

func TestTaskQueueRecoversPendingOnStart(t *testing.T) {
	agent := &scriptedAgent{script: func(_ int, _ context.Context, onEvent func(AgentEvent)) error {
		onEvent(AgentEvent{Type: AgentEventDone})
		return nil
	}}
	q, store, _ := newTestTaskQueue(t, agent)

	// A task persisted by a previous run that never executed.
	stale := &repository.Task{
		ID:            "stale-1",
		ChatID:        "c1",
		CorrelationID: "99",
		Payload:       "unfinished business",
		Status:        repository.TaskPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.Enqueue(context.Background(), stale); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer q.Stop()

	waitFor(t, func() bool { return store.status("stale-1") == repository.TaskComplete })
}
