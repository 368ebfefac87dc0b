package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/domain/service"
	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
)

// Ingress is the pipeline entry. Mirrors the Telegram adapter's view of
// the coordinator.
type Ingress interface {
	Handle(msg *service.InboundMessage)
}

// ingestRequest is the JSON body of POST /api/v1/messages.
type ingestRequest struct {
	ChatID            string `json:"chat_id" binding:"required"`
	ChatKind          string `json:"chat_kind"`
	SenderID          string `json:"sender_id" binding:"required"`
	SenderName        string `json:"sender_name"`
	Body              string `json:"body" binding:"required"`
	PlatformMessageID string `json:"platform_message_id" binding:"required"`
	Timestamp         int64  `json:"timestamp"`
}

// MessageHandler serves message ingestion and conversation search.
type MessageHandler struct {
	ingress   Ingress
	store     repository.ConversationStore
	searchCfg config.SearchConfig
	logger    *zap.Logger
}

func NewMessageHandler(ingress Ingress, store repository.ConversationStore, searchCfg config.SearchConfig, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{ingress: ingress, store: store, searchCfg: searchCfg, logger: logger}
}

// Ingest accepts a normalized message from a non-Telegram source and
// feeds it to the pipeline. Processing is asynchronous; the response
// only acknowledges acceptance.
func (h *MessageHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := valueobject.ChatDirect
	if req.ChatKind == string(valueobject.ChatGroup) {
		kind = valueobject.ChatGroup
	}
	ts := time.Now().UTC()
	if req.Timestamp > 0 {
		ts = time.Unix(req.Timestamp, 0).UTC()
	}

	h.ingress.Handle(&service.InboundMessage{
		ChatID:            req.ChatID,
		ChatKind:          kind,
		SenderID:          req.SenderID,
		SenderName:        req.SenderName,
		Body:              req.Body,
		PlatformMessageID: req.PlatformMessageID,
		Timestamp:         ts,
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Search runs the relevance+recency query for one chat.
func (h *MessageHandler) Search(c *gin.Context) {
	chatID := c.Query("chat_id")
	query := c.Query("q")
	if chatID == "" || query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id and q are required"})
		return
	}

	maxAgeDays := h.searchCfg.MaxAgeDays
	if v := c.Query("max_age_days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxAgeDays = n
		}
	}
	maxResults := h.searchCfg.MaxResults
	if v := c.Query("max_results"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxResults = n
		}
	}

	results, err := h.store.Search(c.Request.Context(), chatID, query, maxAgeDays, maxResults)
	if err != nil {
		h.logger.Error("Search failed", zap.String("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search unavailable"})
		return
	}

	type item struct {
		ID        string  `json:"id"`
		Body      string  `json:"body"`
		Sender    string  `json:"sender"`
		Timestamp int64   `json:"timestamp"`
		Relevance float64 `json:"relevance"`
		Recency   float64 `json:"recency"`
		Score     float64 `json:"score"`
	}
	items := make([]item, 0, len(results))
	for _, r := range results {
		items = append(items, item{
			ID:        r.Message.ID(),
			Body:      r.Message.Body(),
			Sender:    r.Message.Sender().DisplayName(),
			Timestamp: r.Message.Timestamp().Unix(),
			Relevance: r.Relevance,
			Recency:   r.Recency,
			Score:     r.Score,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}
