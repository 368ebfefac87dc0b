package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/chatwork/chatwork/gateway/internal/domain/entity"
	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	domainErrors "github.com/chatwork/chatwork/gateway/pkg/errors"
)

// MemoryConversationStore is the in-memory conversation store used in
// tests and ephemeral deployments. Ranking is shared with the
// database-backed store, so search behaves identically.
type MemoryConversationStore struct {
	searchCfg config.SearchConfig
	nowFn     func() time.Time

	mu    sync.RWMutex
	chats map[string][]*entity.Message
	seen  map[string]struct{}
}

func NewMemoryConversationStore(searchCfg config.SearchConfig) *MemoryConversationStore {
	return &MemoryConversationStore{
		searchCfg: searchCfg,
		nowFn:     time.Now,
		chats:     make(map[string][]*entity.Message),
		seen:      make(map[string]struct{}),
	}
}

// SetClock overrides the clock for deterministic recency in tests.
func (s *MemoryConversationStore) SetClock(nowFn func() time.Time) {
	s.nowFn = nowFn
}

func (s *MemoryConversationStore) Append(ctx context.Context, message *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if message.PlatformMessageID() != "" {
		key := message.ChatID() + ":" + message.PlatformMessageID()
		if _, dup := s.seen[key]; dup {
			return domainErrors.NewInvalidInput("duplicate platform message id")
		}
		s.seen[key] = struct{}{}
	}
	s.chats[message.ChatID()] = append(s.chats[message.ChatID()], message)
	return nil
}

func (s *MemoryConversationStore) Recent(ctx context.Context, chatID string, limit int) ([]*entity.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.chats[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*entity.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryConversationStore) Since(ctx context.Context, chatID string, cutoff time.Time) ([]*entity.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Message
	for _, m := range s.chats[chatID] {
		if m.Timestamp().After(cutoff) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryConversationStore) Search(ctx context.Context, chatID, query string, maxAgeDays, maxResults int) ([]repository.SearchResult, error) {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scorer := newSearchScorer(s.searchCfg, s.nowFn().UTC())
	var results []repository.SearchResult
	for _, m := range s.chats[chatID] {
		if res, ok := scorer.score(m, query, tokens, maxAgeDays); ok {
			results = append(results, res)
		}
	}
	return rank(results, maxResults), nil
}
