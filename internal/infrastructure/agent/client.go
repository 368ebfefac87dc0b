// Copyright 2026 Chatwork Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the HTTP client for the agent collaborator.
// One invocation is one POST; the response is a server-sent event
// stream folded into AgentEvent callbacks.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/service"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	domainErrors "github.com/chatwork/chatwork/gateway/pkg/errors"
)

// invokeRequest is the wire shape of one invocation.
type invokeRequest struct {
	ChatID    string   `json:"chat_id"`
	Workspace string   `json:"workspace,omitempty"`
	Body      string   `json:"body"`
	History   []string `json:"history,omitempty"`
	Media     []string `json:"media,omitempty"`
	Degraded  bool     `json:"degraded,omitempty"`
}

// Client talks to the agent backend over HTTP with SSE responses.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cfg        config.AgentConfig
	logger     *zap.Logger
}

func NewClient(cfg config.AgentConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		// No client-level timeout: the per-invocation context carries
		// the deadline, and streams outlive any fixed request timeout.
		httpClient: &http.Client{},
		cfg:        cfg,
		logger:     logger,
	}
}

var _ service.AgentClient = (*Client)(nil)

// Invoke posts the request and relays the SSE stream to onEvent.
func (c *Client) Invoke(ctx context.Context, req service.AgentRequest, onEvent func(service.AgentEvent)) error {
	body, err := json.Marshal(invokeRequest{
		ChatID:    req.ChatID,
		Workspace: req.Workspace,
		Body:      req.Body,
		History:   req.History,
		Media:     req.Media,
		Degraded:  req.Degraded,
	})
	if err != nil {
		return domainErrors.NewInternal("failed to marshal agent request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/invoke", bytes.NewReader(body))
	if err != nil {
		return domainErrors.NewInternal("failed to build agent request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domainErrors.NewUnavailable("agent request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Agent returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload),
		)
		return domainErrors.New(domainErrors.CodeUnavailable,
			fmt.Sprintf("agent returned status %d", resp.StatusCode))
	}

	return parseEventStream(ctx, resp.Body, c.cfg.StreamIdle, onEvent, c.logger)
}
