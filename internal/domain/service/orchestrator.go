// Copyright 2026 Chatwork Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
)

// AgentEventType discriminates the events an agent stream can emit.
type AgentEventType string

const (
	AgentEventDelta    AgentEventType = "delta"
	AgentEventToolCall AgentEventType = "tool_call"
	AgentEventDone     AgentEventType = "done"
	AgentEventError    AgentEventType = "error"
)

// AgentEvent is one element of an agent invocation stream.
type AgentEvent struct {
	Type     AgentEventType
	Text     string
	ToolName string
	ToolArgs string
	Err      string
}

// AgentRequest is the single input shape for an agent invocation.
type AgentRequest struct {
	ChatID    string
	Workspace string
	Body      string
	History   []string
	Media     []string
	Degraded  bool
}

// AgentClient is the collaborator boundary to the agent backend. Invoke
// streams events until done, error, or context cancellation. OnEvent is
// called in stream order from a single goroutine.
type AgentClient interface {
	Invoke(ctx context.Context, req AgentRequest, onEvent func(AgentEvent)) error
}

// OutcomeKind is the closed set of invocation results.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeTimedOut  OutcomeKind = "timed_out"
)

// ToolCallRecord captures one tool invocation reported by the agent.
type ToolCallRecord struct {
	Name string
	Args string
}

// AgentOutcome is the terminal result of one orchestrated invocation.
type AgentOutcome struct {
	Kind      OutcomeKind
	Text      string
	ToolCalls []ToolCallRecord
	Reason    string
}

// AgentOrchestrator owns the only call site into the agent backend. It
// applies the wall-clock timeout, retries a timed-out invocation exactly
// once, and folds the event stream into an AgentOutcome.
type AgentOrchestrator struct {
	client AgentClient
	cfg    config.AgentConfig
	logger *zap.Logger
}

func NewAgentOrchestrator(client AgentClient, cfg config.AgentConfig, logger *zap.Logger) *AgentOrchestrator {
	return &AgentOrchestrator{client: client, cfg: cfg, logger: logger}
}

// Invoke runs one agent invocation with the interactive timeout. The
// onUpdate callback receives the reply text accumulated so far after
// each increment; a timeout retry restarts it from empty. It may be nil
// for callers that only want the final outcome.
func (o *AgentOrchestrator) Invoke(ctx context.Context, req AgentRequest, onUpdate func(string)) AgentOutcome {
	return o.invokeWithTimeout(ctx, req, o.cfg.InvokeTimeout, onUpdate)
}

// InvokeTask runs a delegated long task with the extended timeout and no
// streaming consumer.
func (o *AgentOrchestrator) InvokeTask(ctx context.Context, req AgentRequest) AgentOutcome {
	return o.invokeWithTimeout(ctx, req, o.cfg.TaskTimeout, nil)
}

func (o *AgentOrchestrator) invokeWithTimeout(ctx context.Context, req AgentRequest, timeout time.Duration, onUpdate func(string)) AgentOutcome {
	outcome := o.attempt(ctx, req, timeout, onUpdate)
	if outcome.Kind != OutcomeTimedOut {
		return outcome
	}
	// Exactly one retry, and only for timeouts. Other failures are
	// surfaced as-is.
	if ctx.Err() != nil {
		return outcome
	}
	o.logger.Warn("Agent invocation timed out, retrying once",
		zap.String("chat_id", req.ChatID),
		zap.Duration("timeout", timeout),
	)
	return o.attempt(ctx, req, timeout, onUpdate)
}

func (o *AgentOrchestrator) attempt(ctx context.Context, req AgentRequest, timeout time.Duration, onUpdate func(string)) AgentOutcome {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		text      strings.Builder
		toolCalls []ToolCallRecord
		agentErr  string
		done      bool
	)

	err := o.client.Invoke(attemptCtx, req, func(ev AgentEvent) {
		switch ev.Type {
		case AgentEventDelta:
			text.WriteString(ev.Text)
			if onUpdate != nil {
				// Accumulated per attempt, so a retry starts a fresh
				// stream for the consumer.
				onUpdate(text.String())
			}
		case AgentEventToolCall:
			toolCalls = append(toolCalls, ToolCallRecord{Name: ev.ToolName, Args: ev.ToolArgs})
		case AgentEventDone:
			done = true
		case AgentEventError:
			agentErr = ev.Err
		}
	})

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return AgentOutcome{Kind: OutcomeTimedOut, Reason: "invocation exceeded timeout"}
		}
		o.logger.Error("Agent invocation failed",
			zap.String("chat_id", req.ChatID),
			zap.Error(err),
		)
		return AgentOutcome{Kind: OutcomeFailed, Reason: err.Error()}
	}
	if agentErr != "" {
		return AgentOutcome{Kind: OutcomeFailed, Reason: agentErr}
	}
	if !done {
		return AgentOutcome{Kind: OutcomeFailed, Reason: "stream ended without completion"}
	}
	return AgentOutcome{
		Kind:      OutcomeCompleted,
		Text:      text.String(),
		ToolCalls: toolCalls,
	}
}
