package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/entity"
	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
)

var linkPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// ProcessingContext carries everything downstream stages need about one
// message: the persisted entity, the resolved binding, recent history,
// and extracted features. Degraded is set when history could not be
// loaded; the pipeline still runs.
type ProcessingContext struct {
	Message     *entity.Message
	Inbound     *InboundMessage
	Binding     valueobject.ChatBinding
	History     []*entity.Message
	Mentions    []string
	Links       []string
	IsGroup     bool
	MentionsBot bool
	Degraded    bool
	Annotations map[string]string
}

// ContextBuilder assembles the ProcessingContext for an admitted
// message. History loading failures degrade rather than fail: the
// message still flows with empty history.
type ContextBuilder struct {
	store  repository.ConversationStore
	cfg    config.ContextConfig
	logger *zap.Logger
}

func NewContextBuilder(store repository.ConversationStore, cfg config.ContextConfig, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{store: store, cfg: cfg, logger: logger}
}

// Build loads recent history and extracts lightweight features from the
// message body. It never returns an error for store failures.
func (b *ContextBuilder) Build(ctx context.Context, msg *entity.Message, inbound *InboundMessage, binding valueobject.ChatBinding) *ProcessingContext {
	pc := &ProcessingContext{
		Message:     msg,
		Inbound:     inbound,
		Binding:     binding,
		IsGroup:     binding.IsGroup(),
		Annotations: make(map[string]string),
	}

	// Fetch one extra: the message under processing is already
	// persisted and must not appear in its own history.
	history, err := b.store.Recent(ctx, msg.ChatID(), b.cfg.HistoryLimit+1)
	if err != nil {
		b.logger.Warn("History unavailable, degraded context",
			zap.String("chat_id", msg.ChatID()),
			zap.Error(err),
		)
		pc.Degraded = true
	} else {
		history = dropMessage(history, msg.ID())
		if len(history) > b.cfg.HistoryLimit {
			history = history[len(history)-b.cfg.HistoryLimit:]
		}
		pc.History = history
	}

	pc.Mentions = extractMentions(msg.Body())
	pc.Links = linkPattern.FindAllString(msg.Body(), -1)
	pc.MentionsBot = mentionsHandle(pc.Mentions, b.cfg.AgentHandle)

	if msg.HasAttachments() {
		pc.Annotations["attachments"] = strings.Join(attachmentKinds(msg.Attachments()), ",")
	}
	return pc
}

// Wide loads a broader time window when a downstream stage asks for
// more than the default tail, for example command handlers that
// summarize the day. excludeID drops the message under processing.
func (b *ContextBuilder) Wide(ctx context.Context, chatID, excludeID string) ([]*entity.Message, error) {
	cutoff := time.Now().Add(-b.cfg.WideWindow)
	history, err := b.store.Since(ctx, chatID, cutoff)
	if err != nil {
		return nil, err
	}
	return dropMessage(history, excludeID), nil
}

func dropMessage(history []*entity.Message, id string) []*entity.Message {
	out := make([]*entity.Message, 0, len(history))
	for _, m := range history {
		if m.ID() != id {
			out = append(out, m)
		}
	}
	return out
}

func extractMentions(body string) []string {
	var mentions []string
	for _, field := range strings.Fields(body) {
		field = strings.Trim(field, ".,:;!?()[]")
		if len(field) > 1 && strings.HasPrefix(field, "@") {
			mentions = append(mentions, field)
		}
	}
	return mentions
}

func mentionsHandle(mentions []string, handle string) bool {
	if handle == "" {
		return false
	}
	for _, m := range mentions {
		if strings.EqualFold(m, handle) {
			return true
		}
	}
	return false
}

func attachmentKinds(atts []valueobject.Attachment) []string {
	kinds := make([]string, 0, len(atts))
	for _, a := range atts {
		kinds = append(kinds, string(a.Kind))
	}
	return kinds
}
