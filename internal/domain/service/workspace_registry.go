package service

import (
	"github.com/chatwork/chatwork/gateway/internal/domain/valueobject"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
)

// WorkspaceRegistry resolves chat identifiers to workspace bindings.
// Built once from configuration at startup and read-only afterwards, so
// binding resolution depends on nothing but the chat id; message
// content can never influence it.
type WorkspaceRegistry struct {
	workspaces []valueobject.Workspace
	chatToWS   map[string]int // chat id → index into workspaces
	chatUsers  map[string][]string
	groupChats map[string]bool
}

// NewWorkspaceRegistry builds the registry from the parsed
// workspaces.yaml registry file.
func NewWorkspaceRegistry(wf *config.WorkspacesFile) *WorkspaceRegistry {
	r := &WorkspaceRegistry{
		chatToWS:   make(map[string]int),
		chatUsers:  make(map[string][]string),
		groupChats: make(map[string]bool),
	}

	for _, entry := range wf.Workspaces {
		ws := valueobject.NewWorkspace(entry.Name, entry.Aliases, entry.Tools, entry.Root)
		idx := len(r.workspaces)
		r.workspaces = append(r.workspaces, ws)
		for _, chat := range entry.Chats {
			r.chatToWS[chat] = idx
			r.chatUsers[chat] = entry.Users
		}
	}
	for _, chat := range wf.GroupChats {
		r.groupChats[chat] = true
	}

	return r
}

// Resolve returns the binding for a chat. kindHint comes from the
// transport; chats listed under group_chats are forced to group.
// Unknown chats resolve to an unbound binding (no elevated access).
func (r *WorkspaceRegistry) Resolve(chatID string, kindHint valueobject.ChatKind) valueobject.ChatBinding {
	kind := kindHint
	if r.groupChats[chatID] {
		kind = valueobject.ChatGroup
	}
	if kind == "" {
		kind = valueobject.ChatDirect
	}

	idx, ok := r.chatToWS[chatID]
	if !ok {
		return valueobject.NewUnboundChat(chatID, kind)
	}
	return valueobject.NewChatBinding(chatID, kind, r.workspaces[idx], r.chatUsers[chatID])
}

// Workspaces returns all configured workspaces.
func (r *WorkspaceRegistry) Workspaces() []valueobject.Workspace {
	return append([]valueobject.Workspace(nil), r.workspaces...)
}

// LookupWorkspace finds a workspace by name or alias.
func (r *WorkspaceRegistry) LookupWorkspace(name string) (valueobject.Workspace, bool) {
	for _, ws := range r.workspaces {
		if ws.Matches(name) {
			return ws, true
		}
	}
	return valueobject.Workspace{}, false
}
