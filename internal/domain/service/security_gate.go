// Copyright 2026 Chatwork Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
)

// VerdictStatus is the admission decision for one message.
type VerdictStatus string

const (
	VerdictAllow       VerdictStatus = "allow"
	VerdictDeny        VerdictStatus = "deny"
	VerdictRateLimited VerdictStatus = "rate_limited"
)

// SecurityVerdict is produced once per message and is terminal unless
// Allow.
type SecurityVerdict struct {
	Status     VerdictStatus
	Reason     string
	RetryAfter time.Duration
}

// Allowed reports whether the pipeline may continue.
func (v SecurityVerdict) Allowed() bool {
	return v.Status == VerdictAllow
}

// SecurityGate is the admission-control stage: self-message filter,
// default-deny allow-lists, and a per-chat token bucket. Every Deny and
// RateLimited verdict is written to the audit log.
type SecurityGate struct {
	cfg     config.SecurityConfig
	limiter *ChatRateLimiter
	audit   repository.AuditLog
	logger  *zap.Logger
}

// NewSecurityGate creates the gate from static configuration.
func NewSecurityGate(cfg config.SecurityConfig, audit repository.AuditLog, logger *zap.Logger) *SecurityGate {
	return &SecurityGate{
		cfg:     cfg,
		limiter: NewChatRateLimiter(cfg.RateLimitBurst, cfg.RateLimitPerMin),
		audit:   audit,
		logger:  logger,
	}
}

// Evaluate produces the verdict for one inbound message. A malformed or
// unresolvable binding fails closed: Deny, never Allow.
func (g *SecurityGate) Evaluate(ctx context.Context, msg *InboundMessage, binding valueobject.ChatBinding) SecurityVerdict {
	if msg == nil || msg.ChatID == "" || binding.ChatID() == "" || binding.ChatID() != msg.ChatID {
		return g.deny(ctx, msg, "unresolvable chat binding")
	}

	// Fixed rule: never process our own messages. Prevents feedback
	// loops regardless of configuration.
	if g.cfg.SelfID != "" && msg.SenderID == g.cfg.SelfID {
		return g.deny(ctx, msg, "self message")
	}

	// Default-deny allow-lists. An empty list for a chat type means
	// deny all for that type.
	if binding.IsGroup() {
		if !contains(g.cfg.GroupAllow, msg.ChatID) {
			return g.deny(ctx, msg, "group chat not in allow-list")
		}
	} else {
		if !contains(g.cfg.DirectAllow, msg.SenderID) {
			return g.deny(ctx, msg, "user not in allow-list")
		}
	}

	// Workspace-bound chats additionally restrict to authorized users.
	if _, bound := binding.Workspace(); bound && !binding.Authorizes(msg.SenderID) {
		return g.deny(ctx, msg, "user not authorized for workspace")
	}

	if ok, retryAfter := g.limiter.Allow(msg.ChatID); !ok {
		g.recordAudit(ctx, msg, string(VerdictRateLimited), "rate limit exhausted")
		g.logger.Warn("Message rate limited",
			zap.String("chat_id", msg.ChatID),
			zap.Duration("retry_after", retryAfter),
		)
		return SecurityVerdict{
			Status:     VerdictRateLimited,
			Reason:     "rate limit exhausted",
			RetryAfter: retryAfter,
		}
	}

	return SecurityVerdict{Status: VerdictAllow}
}

func (g *SecurityGate) deny(ctx context.Context, msg *InboundMessage, reason string) SecurityVerdict {
	g.recordAudit(ctx, msg, string(VerdictDeny), reason)
	chatID, senderID := "", ""
	if msg != nil {
		chatID, senderID = msg.ChatID, msg.SenderID
	}
	g.logger.Warn("Message denied",
		zap.String("chat_id", chatID),
		zap.String("sender_id", senderID),
		zap.String("reason", reason),
	)
	return SecurityVerdict{Status: VerdictDeny, Reason: reason}
}

func (g *SecurityGate) recordAudit(ctx context.Context, msg *InboundMessage, verdict, reason string) {
	if g.audit == nil {
		return
	}
	rec := repository.AuditRecord{
		ID:        uuid.NewString(),
		Verdict:   verdict,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if msg != nil {
		rec.ChatID = msg.ChatID
		rec.SenderID = msg.SenderID
		rec.MessageID = msg.PlatformMessageID
	}
	if err := g.audit.Record(ctx, rec); err != nil {
		g.logger.Error("Failed to write audit record", zap.Error(err))
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
