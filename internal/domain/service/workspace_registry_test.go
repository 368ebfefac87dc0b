package service

import (
	"testing"

	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
)

func testRegistry() *WorkspaceRegistry {
	return NewWorkspaceRegistry(&config.WorkspacesFile{
		Workspaces: []config.WorkspaceEntry{
			{
				Name:    "backend",
				Aliases: []string{"be"},
				Root:    "/work/backend",
				Chats:   []string{"c1", "g1"},
				Users:   []string{"u1"},
			},
			{
				Name:  "docs",
				Chats: []string{"c2"},
				Users: []string{"u2"},
			},
		},
		GroupChats: []string{"g1"},
	})
}

func TestResolveBoundChat(t *testing.T) {
	r := testRegistry()
	b := r.Resolve("c1", valueobject.ChatDirect)

	ws, ok := b.Workspace()
	if !ok {
		t.Fatal("bound chat resolved without workspace")
	}
	if ws.Name() != "backend" {
		t.Fatalf("workspace = %q, want backend", ws.Name())
	}
	if !b.Authorizes("u1") || b.Authorizes("u2") {
		t.Fatal("authorized user set wrong")
	}
}

func TestResolveGroupOverride(t *testing.T) {
	r := testRegistry()
	// Transport hint says direct, but the registry knows g1 is a group.
	b := r.Resolve("g1", valueobject.ChatDirect)
	if !b.IsGroup() {
		t.Fatal("group chat not forced to group kind")
	}
}

func TestResolveUnknownChatIsUnbound(t *testing.T) {
	r := testRegistry()
	b := r.Resolve("stranger", valueobject.ChatDirect)

	if _, ok := b.Workspace(); ok {
		t.Fatal("unknown chat got a workspace")
	}
	// Unbound bindings authorize nobody.
	if b.Authorizes("u1") {
		t.Fatal("unbound chat authorized a user")
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	r := testRegistry()
	first := r.Resolve("c1", valueobject.ChatDirect)
	for i := 0; i < 5; i++ {
		got := r.Resolve("c1", valueobject.ChatDirect)
		if got.WorkspaceName() != first.WorkspaceName() || got.ChatKind() != first.ChatKind() {
			t.Fatal("resolution changed between calls")
		}
	}
}

func TestLookupWorkspaceByAlias(t *testing.T) {
	r := testRegistry()
	ws, ok := r.LookupWorkspace("be")
	if !ok || ws.Name() != "backend" {
		t.Fatalf("alias lookup = %v/%q", ok, ws.Name())
	}
	if _, ok := r.LookupWorkspace("nope"); ok {
		t.Fatal("unknown name resolved")
	}
}
