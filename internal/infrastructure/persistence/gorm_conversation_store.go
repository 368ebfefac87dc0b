package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/chatwork/chatwork/gateway/internal/domain/entity"
	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/chatwork/chatwork/gateway/pkg/errors"
)

// GormConversationStore is the database-backed conversation store.
// Writes to one chat are serialized through a per-chat mutex so readers
// never interleave with a half-written append.
type GormConversationStore struct {
	db        *gorm.DB
	searchCfg config.SearchConfig

	mu        sync.Mutex
	chatLocks map[string]*sync.Mutex
}

func NewGormConversationStore(db *gorm.DB, searchCfg config.SearchConfig) *GormConversationStore {
	return &GormConversationStore{
		db:        db,
		searchCfg: searchCfg,
		chatLocks: make(map[string]*sync.Mutex),
	}
}

func (s *GormConversationStore) lockChat(chatID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.chatLocks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.chatLocks[chatID] = l
	}
	return l
}

// Append persists one message. A platform message id already present
// for the chat is a duplicate and is rejected.
func (s *GormConversationStore) Append(ctx context.Context, message *entity.Message) error {
	model, err := toModel(message)
	if err != nil {
		return err
	}

	l := s.lockChat(message.ChatID())
	l.Lock()
	defer l.Unlock()

	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domainErrors.NewInvalidInput("duplicate platform message id")
		}
		return domainErrors.NewUnavailable("failed to append message", err)
	}
	return nil
}

// Recent returns the newest limit messages, oldest first.
func (s *GormConversationStore) Recent(ctx context.Context, chatID string, limit int) ([]*entity.Message, error) {
	var rows []models.MessageModel
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewUnavailable("failed to load recent messages", err)
	}

	// Reverse into chronological order.
	msgs := make([]*entity.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		msg, err := toEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Since returns all messages newer than the cutoff, oldest first.
func (s *GormConversationStore) Since(ctx context.Context, chatID string, cutoff time.Time) ([]*entity.Message, error) {
	var rows []models.MessageModel
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND created_at > ?", chatID, cutoff).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewUnavailable("failed to load messages", err)
	}

	msgs := make([]*entity.Message, 0, len(rows))
	for i := range rows {
		msg, err := toEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Search is two-stage: the database narrows candidates to the age
// window plus a coarse token match, then scoring and ranking run in
// process.
func (s *GormConversationStore) Search(ctx context.Context, chatID, query string, maxAgeDays, maxResults int) ([]repository.SearchResult, error) {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(maxAgeDays) * 24 * time.Hour)

	q := s.db.WithContext(ctx).
		Where("chat_id = ? AND created_at > ?", chatID, cutoff)

	likes := make([]string, 0, len(tokens))
	args := make([]interface{}, 0, len(tokens))
	for _, tok := range tokens {
		likes = append(likes, "lower(body) LIKE ?")
		args = append(args, "%"+tok+"%")
	}
	q = q.Where(strings.Join(likes, " OR "), args...)

	var rows []models.MessageModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, domainErrors.NewUnavailable("failed to search messages", err)
	}

	scorer := newSearchScorer(s.searchCfg, now)
	results := make([]repository.SearchResult, 0, len(rows))
	for i := range rows {
		msg, err := toEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		if res, ok := scorer.score(msg, query, tokens, maxAgeDays); ok {
			results = append(results, res)
		}
	}
	return rank(results, maxResults), nil
}

func toModel(message *entity.Message) (*models.MessageModel, error) {
	var attachments string
	if message.HasAttachments() {
		b, err := json.Marshal(message.Attachments())
		if err != nil {
			return nil, domainErrors.NewInternal("failed to marshal attachments", err)
		}
		attachments = string(b)
	}
	metadata, err := json.Marshal(message.Metadata())
	if err != nil {
		return nil, domainErrors.NewInternal("failed to marshal metadata", err)
	}

	return &models.MessageModel{
		ID:                message.ID(),
		ChatID:            message.ChatID(),
		PlatformMessageID: message.PlatformMessageID(),
		SenderID:          message.Sender().ID(),
		SenderName:        message.Sender().DisplayName(),
		SenderType:        string(message.Sender().Type()),
		Body:              message.Body(),
		Direction:         string(message.Direction()),
		Kind:              string(message.Kind()),
		Attachments:       attachments,
		Metadata:          string(metadata),
		CreatedAt:         message.Timestamp(),
	}, nil
}

func toEntity(model *models.MessageModel) (*entity.Message, error) {
	var attachments []valueobject.Attachment
	if model.Attachments != "" {
		if err := json.Unmarshal([]byte(model.Attachments), &attachments); err != nil {
			return nil, domainErrors.NewInternal("failed to unmarshal attachments", err)
		}
	}
	metadata := make(map[string]interface{})
	if model.Metadata != "" {
		if err := json.Unmarshal([]byte(model.Metadata), &metadata); err != nil {
			return nil, domainErrors.NewInternal("failed to unmarshal metadata", err)
		}
	}

	sender := valueobject.NewSender(model.SenderID, model.SenderName, valueobject.SenderType(model.SenderType))
	return entity.Reconstruct(
		model.ID,
		model.ChatID,
		model.PlatformMessageID,
		sender,
		model.Body,
		attachments,
		entity.Direction(model.Direction),
		entity.Kind(model.Kind),
		model.CreatedAt,
		metadata,
	), nil
}
