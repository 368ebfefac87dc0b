package repository

import (
	"context"
	"time"

	"github.com/chatwork/chatwork/gateway/internal/domain/entity"
)

// SearchResult is a message plus its computed relevance and recency
// scores. Ordering is by Score descending, ties broken by timestamp
// descending.
type SearchResult struct {
	Message   *entity.Message
	Relevance float64
	Recency   float64
	Score     float64
}

// ConversationStore is the durable, queryable record of all messages
// per chat. Append-only; retention is a separate maintenance concern.
//
// An unavailable store returns an explicit error, never an
// empty-but-successful result, so callers can distinguish "no results"
// from "store down".
type ConversationStore interface {
	// Append persists a message. Writes to a single chat's history are
	// serialized so readers never observe a partially-written message.
	Append(ctx context.Context, message *entity.Message) error

	// Recent returns the most recent limit messages for the chat,
	// ordered oldest first.
	Recent(ctx context.Context, chatID string, limit int) ([]*entity.Message, error)

	// Since returns all messages for the chat newer than the cutoff,
	// ordered oldest first. Used for the wide time-boxed context window.
	Since(ctx context.Context, chatID string, cutoff time.Time) ([]*entity.Message, error)

	// Search runs the two-stage relevance+recency query: candidate
	// selection within the age window, then scoring and ranking
	// truncated to maxResults. Messages older than maxAgeDays are
	// excluded outright.
	Search(ctx context.Context, chatID, query string, maxAgeDays, maxResults int) ([]SearchResult, error)
}

// AuditRecord captures a security or delivery outcome for observability.
type AuditRecord struct {
	ID        string
	ChatID    string
	SenderID  string
	Verdict   string
	Reason    string
	MessageID string
	CreatedAt time.Time
}

// AuditLog records every Deny, RateLimited and failed-delivery outcome.
type AuditLog interface {
	Record(ctx context.Context, rec AuditRecord) error
}
