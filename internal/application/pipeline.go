// Copyright 2026 Chatwork Authors
// SPDX-License-Identifier: Apache-2.0

package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/entity"
	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/domain/service"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/monitoring"
	apperrors "github.com/chatwork/chatwork/gateway/pkg/errors"
	"github.com/chatwork/chatwork/gateway/pkg/safego"
)

// chatQueue holds the not-yet-processed messages of one chat. running
// marks that a worker currently owns the chat; only one worker ever
// drains a chat at a time, which gives per-chat FIFO.
type chatQueue struct {
	msgs    []*service.InboundMessage
	running bool
}

// Coordinator runs the message pipeline: admission, context, routing,
// agent invocation, delivery. Messages from the same chat are processed
// strictly in arrival order; distinct chats run in parallel bounded by
// the worker pool.
type Coordinator struct {
	registry     *service.WorkspaceRegistry
	gate         *service.SecurityGate
	builder      *service.ContextBuilder
	router       *service.TypeRouter
	orchestrator *service.AgentOrchestrator
	responses    *service.ResponseManager
	tasks        *service.TaskQueue
	store        repository.ConversationStore
	monitor      *monitoring.Monitor
	cfg          config.PipelineConfig
	logger       *zap.Logger

	mu     sync.Mutex
	queues map[string]*chatQueue
	work   chan string

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCoordinator(
	registry *service.WorkspaceRegistry,
	gate *service.SecurityGate,
	builder *service.ContextBuilder,
	router *service.TypeRouter,
	orchestrator *service.AgentOrchestrator,
	responses *service.ResponseManager,
	tasks *service.TaskQueue,
	store repository.ConversationStore,
	monitor *monitoring.Monitor,
	cfg config.PipelineConfig,
	logger *zap.Logger,
) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}
	return &Coordinator{
		registry:     registry,
		gate:         gate,
		builder:      builder,
		router:       router,
		orchestrator: orchestrator,
		responses:    responses,
		tasks:        tasks,
		store:        store,
		monitor:      monitor,
		cfg:          cfg,
		logger:       logger,
		queues:       make(map[string]*chatQueue),
		work:         make(chan string, cfg.QueueDepth),
	}
}

// Start launches the worker pool.
func (c *Coordinator) Start() {
	c.runCtx, c.cancel = context.WithCancel(context.Background())
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		safego.Go(c.logger, fmt.Sprintf("pipeline-worker-%d", i), func() {
			defer c.wg.Done()
			c.worker()
		})
	}
}

// Stop drains in-flight work. Agent invocations are cancelled; replies
// already being delivered run to completion. Returns false when the
// shutdown timeout elapsed first.
func (c *Coordinator) Stop() bool {
	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	timeout := c.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		c.logger.Warn("Pipeline drain timed out", zap.Duration("timeout", timeout))
		return false
	}
}

// Handle accepts one normalized inbound message. It never blocks on
// pipeline work: the message is queued for its chat and a worker picks
// the chat up in order.
func (c *Coordinator) Handle(msg *service.InboundMessage) {
	if msg == nil || msg.ChatID == "" {
		return
	}

	c.mu.Lock()
	q, ok := c.queues[msg.ChatID]
	if !ok {
		q = &chatQueue{}
		c.queues[msg.ChatID] = q
	}
	q.msgs = append(q.msgs, msg)
	schedule := !q.running
	if schedule {
		q.running = true
	}
	c.mu.Unlock()

	if !schedule {
		return
	}
	select {
	case c.work <- msg.ChatID:
	case <-c.runCtx.Done():
	}
}

func (c *Coordinator) worker() {
	for {
		select {
		case <-c.runCtx.Done():
			return
		case chatID := <-c.work:
			c.drain(chatID)
		}
	}
}

// drain processes the chat's queue to exhaustion, then releases the
// chat so the next arrival reschedules it.
func (c *Coordinator) drain(chatID string) {
	for {
		c.mu.Lock()
		q := c.queues[chatID]
		if q == nil || len(q.msgs) == 0 {
			if q != nil {
				q.running = false
				delete(c.queues, chatID)
			}
			c.mu.Unlock()
			return
		}
		msg := q.msgs[0]
		q.msgs = q.msgs[1:]
		c.mu.Unlock()

		c.process(msg)

		if c.runCtx.Err() != nil {
			return
		}
	}
}

// process runs one message through every stage. Stage errors degrade or
// terminate this message only; the worker moves on regardless.
func (c *Coordinator) process(msg *service.InboundMessage) {
	started := time.Now()
	defer func() { c.monitor.RecordPipelineLatency(time.Since(started)) }()
	c.monitor.IncReceived()

	ctx := c.runCtx
	log := c.logger.With(
		zap.String("chat_id", msg.ChatID),
		zap.String("platform_message_id", msg.PlatformMessageID),
	)

	binding := c.registry.Resolve(msg.ChatID, msg.ChatKind)

	verdict := c.gate.Evaluate(ctx, msg, binding)
	if !verdict.Allowed() {
		// Audited inside the gate. Denied traffic gets no reply and is
		// not persisted.
		if verdict.Status == service.VerdictRateLimited {
			c.monitor.IncRateLimited()
		} else {
			c.monitor.IncDenied()
		}
		return
	}

	inbound, err := c.toEntity(msg)
	if err != nil {
		log.Error("Failed to construct message entity", zap.Error(err))
		return
	}
	if err := c.store.Append(ctx, inbound); err != nil {
		if apperrors.IsInvalidInput(err) {
			// A platform message id already on record means this
			// inbound was processed before; redeliveries get no second
			// reply.
			log.Info("Duplicate inbound message, skipping")
			return
		}
		// Other persistence failures degrade; the user still gets a
		// reply.
		log.Warn("Failed to persist inbound message", zap.Error(err))
	}

	pc := c.builder.Build(ctx, inbound, msg, binding)
	decision := c.router.Route(pc)

	switch decision.Kind {
	case service.RouteSilent:
		// Persisted above, nothing else.
		c.monitor.IncSilent()
		log.Debug("Message silently ignored")
	case service.RouteCommand:
		c.handleCommand(ctx, log, pc, decision)
	case service.RoutePlainReply, service.RouteMedia:
		c.invokeAndReply(ctx, log, pc, decision)
	}
}

func (c *Coordinator) handleCommand(ctx context.Context, log *zap.Logger, pc *service.ProcessingContext, decision service.RoutingDecision) {
	msg := pc.Inbound

	if decision.Delegated {
		payload := strings.Join(decision.Args, " ")
		if payload == "" {
			payload = pc.Message.Body()
		}
		if _, err := c.tasks.Submit(ctx, msg.ChatID, pc.Binding.WorkspaceName(), msg.PlatformMessageID, payload); err == nil {
			c.monitor.IncTaskSubmitted()
		} else {
			log.Error("Failed to enqueue delegated task", zap.Error(err))
			c.deliverDegraded(ctx, log, pc, service.AgentOutcome{Kind: service.OutcomeFailed, Reason: err.Error()})
			return
		}
		deliverCtx := context.WithoutCancel(ctx)
		if _, err := c.responses.AckTask(deliverCtx, msg.ChatID, msg.PlatformMessageID, pc.Message.ID()); err != nil {
			log.Error("Failed to acknowledge task", zap.Error(err))
		}
		return
	}

	// Other commands go to the agent as-is; it owns command semantics.
	// Commands get the wider time-boxed window: recaps and summaries
	// need more than the recent tail.
	if wide, err := c.builder.Wide(ctx, msg.ChatID, pc.Message.ID()); err != nil {
		log.Warn("Wide context unavailable, using recent history", zap.Error(err))
	} else if len(wide) > 0 {
		pc.History = wide
	}
	c.invokeAndReply(ctx, log, pc, decision)
}

// invokeAndReply is the interactive path: stream the agent's reply into
// a throttled draft, then finalize through the idempotent delivery path.
func (c *Coordinator) invokeAndReply(ctx context.Context, log *zap.Logger, pc *service.ProcessingContext, decision service.RoutingDecision) {
	msg := pc.Inbound
	req := service.AgentRequest{
		ChatID:    msg.ChatID,
		Workspace: pc.Binding.WorkspaceName(),
		Body:      pc.Message.Body(),
		History:   renderHistory(pc.History),
		Degraded:  pc.Degraded,
	}
	if decision.Kind == service.RouteMedia {
		for _, a := range pc.Message.Attachments() {
			req.Media = append(req.Media, a.Ref)
		}
	}

	// Delivery must outlive shutdown cancellation once a reply exists.
	deliverCtx := context.WithoutCancel(ctx)

	// The reservation is taken before the agent runs: a redelivered
	// inbound neither invokes the agent nor replies again.
	draft, err := c.responses.StartDraft(deliverCtx, msg.ChatID, msg.PlatformMessageID, pc.Message.ID())
	if err != nil {
		c.monitor.IncFailed()
		log.Error("Failed to reserve delivery", zap.Error(err))
		return
	}
	if draft == nil {
		log.Info("Reply already delivered, skipping")
		return
	}

	outcome := c.orchestrator.Invoke(ctx, req, func(text string) {
		draft.Update(deliverCtx, text)
	})

	switch outcome.Kind {
	case service.OutcomeCompleted:
		if _, err := draft.Finalize(deliverCtx, outcome.Text); err != nil {
			c.monitor.IncFailed()
			log.Error("Failed to deliver reply", zap.Error(err))
		} else {
			c.monitor.IncDelivered()
		}
	default:
		if _, err := draft.FinalizeDegraded(deliverCtx, outcome); err != nil {
			c.monitor.IncFailed()
			log.Error("Failed to deliver degraded reply", zap.Error(err))
		} else {
			c.monitor.IncDegraded()
		}
	}
}

func (c *Coordinator) deliverDegraded(ctx context.Context, log *zap.Logger, pc *service.ProcessingContext, outcome service.AgentOutcome) {
	msg := pc.Inbound
	if _, err := c.responses.DeliverDegraded(ctx, msg.ChatID, msg.PlatformMessageID, pc.Message.ID(), outcome); err != nil {
		c.monitor.IncFailed()
		log.Error("Failed to deliver degraded reply", zap.Error(err))
		return
	}
	c.monitor.IncDegraded()
}

func (c *Coordinator) toEntity(msg *service.InboundMessage) (*entity.Message, error) {
	kind := entity.KindText
	switch {
	case strings.HasPrefix(strings.TrimSpace(msg.Body), "/"):
		kind = entity.KindCommand
	case len(msg.Attachments) > 0:
		kind = entity.KindMedia
	}
	sender := msg.Sender()
	return entity.NewInbound(
		uuid.NewString(),
		msg.ChatID,
		msg.PlatformMessageID,
		sender,
		msg.Body,
		msg.Attachments,
		kind,
		msg.Timestamp,
	)
}

func renderHistory(history []*entity.Message) []string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Sender().DisplayName()+": "+m.Body())
	}
	return lines
}
