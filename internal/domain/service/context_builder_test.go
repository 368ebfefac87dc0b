package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/entity"
	"github.com/chatwork/chatwork/gateway/internal/domain/repository"
	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	domainErrors "github.com/chatwork/chatwork/gateway/pkg/errors"
)

// stubStore serves canned history or a store-down error.
type stubStore struct {
	history []*entity.Message
	err     error
}

func (s *stubStore) Append(ctx context.Context, m *entity.Message) error { return nil }

func (s *stubStore) Recent(ctx context.Context, chatID string, limit int) ([]*entity.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && len(s.history) > limit {
		return s.history[len(s.history)-limit:], nil
	}
	return s.history, nil
}

func (s *stubStore) Since(ctx context.Context, chatID string, cutoff time.Time) ([]*entity.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.history, nil
}

func (s *stubStore) Search(ctx context.Context, chatID, query string, maxAgeDays, maxResults int) ([]repository.SearchResult, error) {
	return nil, nil
}

func historyMessage(t *testing.T, id, body string) *entity.Message {
	t.Helper()
	sender := valueobject.NewSender("u1", "alice", valueobject.SenderUser)
	msg, err := entity.NewInbound(id, "c1", "p-"+id, sender, body, nil, entity.KindText, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewInbound: %v", err)
	}
	return msg
}

func buildMessage(t *testing.T, body string, atts []valueobject.Attachment) *entity.Message {
	t.Helper()
	sender := valueobject.NewSender("u1", "alice", valueobject.SenderUser)
	msg, err := entity.NewInbound("m1", "c1", "100", sender, body, atts, entity.KindText, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewInbound: %v", err)
	}
	return msg
}

func testBuilderConfig() config.ContextConfig {
	return config.ContextConfig{
		HistoryLimit: 3,
		WideWindow:   24 * time.Hour,
		AgentHandle:  "@chatwork",
	}
}

func TestBuildLoadsBoundedHistory(t *testing.T) {
	store := &stubStore{history: []*entity.Message{
		historyMessage(t, "h1", "one"),
		historyMessage(t, "h2", "two"),
		historyMessage(t, "h3", "three"),
		historyMessage(t, "h4", "four"),
	}}
	b := NewContextBuilder(store, testBuilderConfig(), zap.NewNop())

	msg := buildMessage(t, "hello", nil)
	binding := valueobject.NewUnboundChat("c1", valueobject.ChatDirect)
	pc := b.Build(context.Background(), msg, &InboundMessage{ChatID: "c1"}, binding)

	if pc.Degraded {
		t.Fatal("context degraded with healthy store")
	}
	if len(pc.History) != 3 {
		t.Fatalf("history size = %d, want 3", len(pc.History))
	}
	if pc.History[0].Body() != "two" {
		t.Fatalf("history starts at %q, want the three newest", pc.History[0].Body())
	}
}

func TestBuildExcludesCurrentMessage(t *testing.T) {
	current := buildMessage(t, "hello", nil)
	store := &stubStore{history: []*entity.Message{
		historyMessage(t, "h1", "earlier"),
		current,
	}}
	b := NewContextBuilder(store, testBuilderConfig(), zap.NewNop())

	binding := valueobject.NewUnboundChat("c1", valueobject.ChatDirect)
	pc := b.Build(context.Background(), current, &InboundMessage{ChatID: "c1"}, binding)

	if len(pc.History) != 1 {
		t.Fatalf("history size = %d, want 1", len(pc.History))
	}
	if pc.History[0].ID() == current.ID() {
		t.Fatal("history contains the message under processing")
	}
}

func TestWideExcludesCurrentMessage(t *testing.T) {
	current := buildMessage(t, "summarize today", nil)
	store := &stubStore{history: []*entity.Message{
		historyMessage(t, "h1", "morning standup notes"),
		historyMessage(t, "h2", "afternoon follow-up"),
		current,
	}}
	b := NewContextBuilder(store, testBuilderConfig(), zap.NewNop())

	wide, err := b.Wide(context.Background(), "c1", current.ID())
	if err != nil {
		t.Fatalf("Wide: %v", err)
	}
	if len(wide) != 2 {
		t.Fatalf("wide history size = %d, want 2", len(wide))
	}
	for _, m := range wide {
		if m.ID() == current.ID() {
			t.Fatal("wide history contains the message under processing")
		}
	}
}

func TestBuildDegradesOnStoreFailure(t *testing.T) {
	store := &stubStore{err: domainErrors.NewUnavailable("store down", nil)}
	b := NewContextBuilder(store, testBuilderConfig(), zap.NewNop())

	msg := buildMessage(t, "hello", nil)
	binding := valueobject.NewUnboundChat("c1", valueobject.ChatDirect)
	pc := b.Build(context.Background(), msg, &InboundMessage{ChatID: "c1"}, binding)

	if !pc.Degraded {
		t.Fatal("context not marked degraded")
	}
	if len(pc.History) != 0 {
		t.Fatalf("history size = %d, want 0", len(pc.History))
	}
}

func TestBuildExtractsFeatures(t *testing.T) {
	b := NewContextBuilder(&stubStore{}, testBuilderConfig(), zap.NewNop())

	atts := []valueobject.Attachment{{Kind: valueobject.MediaImage, Ref: "file-1"}}
	msg := buildMessage(t, "@chatwork check https://example.com/doc and @bob too", atts)
	binding := valueobject.NewUnboundChat("c1", valueobject.ChatGroup)
	pc := b.Build(context.Background(), msg, &InboundMessage{ChatID: "c1"}, binding)

	if len(pc.Mentions) != 2 {
		t.Fatalf("mentions = %v, want two", pc.Mentions)
	}
	if !pc.MentionsBot {
		t.Fatal("agent mention not detected")
	}
	if len(pc.Links) != 1 || pc.Links[0] != "https://example.com/doc" {
		t.Fatalf("links = %v", pc.Links)
	}
	if !pc.IsGroup {
		t.Fatal("group flag not set")
	}
	if pc.Annotations["attachments"] != "image" {
		t.Fatalf("attachment annotation = %q", pc.Annotations["attachments"])
	}
}
