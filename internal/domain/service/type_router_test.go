package service

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/entity"
	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
)

func routingContext(t *testing.T, body string, atts []valueobject.Attachment, isGroup, mentionsBot, replyToAgent bool) *ProcessingContext {
	t.Helper()
	sender := valueobject.NewSender("u1", "alice", valueobject.SenderUser)
	msg, err := entity.NewInbound("m1", "c1", "100", sender, body, atts, entity.KindText, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewInbound: %v", err)
	}
	kind := valueobject.ChatDirect
	if isGroup {
		kind = valueobject.ChatGroup
	}
	return &ProcessingContext{
		Message:     msg,
		Inbound:     &InboundMessage{ChatID: "c1", ReplyToAgent: replyToAgent},
		Binding:     valueobject.NewUnboundChat("c1", kind),
		IsGroup:     isGroup,
		MentionsBot: mentionsBot,
	}
}

func TestRoutePlainReply(t *testing.T) {
	router := NewTypeRouter(zap.NewNop())
	d := router.Route(routingContext(t, "hello there", nil, false, false, false))
	if d.Kind != RoutePlainReply {
		t.Fatalf("kind = %v, want plain_reply", d.Kind)
	}
}

func TestRouteCommand(t *testing.T) {
	router := NewTypeRouter(zap.NewNop())
	d := router.Route(routingContext(t, "/status verbose", nil, false, false, false))
	if d.Kind != RouteCommand {
		t.Fatalf("kind = %v, want command", d.Kind)
	}
	if d.Command != "status" {
		t.Fatalf("command = %q, want status", d.Command)
	}
	if len(d.Args) != 1 || d.Args[0] != "verbose" {
		t.Fatalf("args = %v, want [verbose]", d.Args)
	}
	if d.Delegated {
		t.Fatal("status command marked delegated")
	}
}

func TestRouteCommandStripsBotSuffix(t *testing.T) {
	router := NewTypeRouter(zap.NewNop())
	d := router.Route(routingContext(t, "/task@chatwork_bot build the release", nil, true, false, false))
	if d.Kind != RouteCommand || d.Command != "task" {
		t.Fatalf("got %v/%q, want command/task", d.Kind, d.Command)
	}
	if !d.Delegated {
		t.Fatal("task command not marked delegated")
	}
}

func TestRouteMediaWinsOverPlainReply(t *testing.T) {
	router := NewTypeRouter(zap.NewNop())
	atts := []valueobject.Attachment{{Kind: valueobject.MediaImage, Ref: "file-1"}}
	// Group message with media that also mentions the agent: media
	// handling, not plain reply.
	d := router.Route(routingContext(t, "@chatwork look at this", atts, true, true, false))
	if d.Kind != RouteMedia {
		t.Fatalf("kind = %v, want media", d.Kind)
	}
	if d.MediaKind != valueobject.MediaImage {
		t.Fatalf("media kind = %v, want image", d.MediaKind)
	}
}

func TestRouteGroupSilence(t *testing.T) {
	router := NewTypeRouter(zap.NewNop())

	// No mention, no reply: silent.
	if d := router.Route(routingContext(t, "just chatting", nil, true, false, false)); d.Kind != RouteSilent {
		t.Fatalf("kind = %v, want silent_ignore", d.Kind)
	}
	// Mentioned: reply.
	if d := router.Route(routingContext(t, "@chatwork hello", nil, true, true, false)); d.Kind != RoutePlainReply {
		t.Fatalf("kind = %v, want plain_reply", d.Kind)
	}
	// Reply to one of the agent's messages: reply.
	if d := router.Route(routingContext(t, "and this?", nil, true, false, true)); d.Kind != RoutePlainReply {
		t.Fatalf("kind = %v, want plain_reply", d.Kind)
	}
	// Media without address in a group stays silent.
	atts := []valueobject.Attachment{{Kind: valueobject.MediaImage, Ref: "file-1"}}
	if d := router.Route(routingContext(t, "", atts, true, false, false)); d.Kind != RouteSilent {
		t.Fatalf("kind = %v, want silent_ignore", d.Kind)
	}
}

func TestRouteDeterministic(t *testing.T) {
	router := NewTypeRouter(zap.NewNop())
	pc := routingContext(t, "/task do it", nil, false, false, false)
	first := router.Route(pc)
	for i := 0; i < 5; i++ {
		got := router.Route(pc)
		if got.Kind != first.Kind || got.Command != first.Command || got.Delegated != first.Delegated {
			t.Fatalf("routing changed between calls: %+v vs %+v", got, first)
		}
	}
}
