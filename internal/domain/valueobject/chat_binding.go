package valueobject

// ChatKind distinguishes direct chats from group chats; group chats
// apply stricter routing rules.
type ChatKind string

const (
	ChatDirect ChatKind = "direct"
	ChatGroup  ChatKind = "group"
)

// ChatBinding is the resolved relationship between a chat and a
// workspace, plus the users authorized in that chat. Resolution is a
// pure function of chat identifier and configuration, never of message
// content.
type ChatBinding struct {
	chatID          string
	chatKind        ChatKind
	workspace       *Workspace
	authorizedUsers []string
}

// NewChatBinding creates a binding with a workspace attached.
func NewChatBinding(chatID string, kind ChatKind, ws Workspace, users []string) ChatBinding {
	wsCopy := ws
	return ChatBinding{
		chatID:          chatID,
		chatKind:        kind,
		workspace:       &wsCopy,
		authorizedUsers: users,
	}
}

// NewUnboundChat creates a binding with no workspace and no elevated
// access.
func NewUnboundChat(chatID string, kind ChatKind) ChatBinding {
	return ChatBinding{chatID: chatID, chatKind: kind}
}

func (b ChatBinding) ChatID() string     { return b.chatID }
func (b ChatBinding) ChatKind() ChatKind { return b.chatKind }

// Workspace returns the bound workspace, or false when the chat has no
// elevated access.
func (b ChatBinding) Workspace() (Workspace, bool) {
	if b.workspace == nil {
		return Workspace{}, false
	}
	return *b.workspace, true
}

// WorkspaceName returns the bound workspace name, or "" when unbound.
func (b ChatBinding) WorkspaceName() string {
	if b.workspace == nil {
		return ""
	}
	return b.workspace.name
}

// IsGroup reports whether the chat is a group context.
func (b ChatBinding) IsGroup() bool {
	return b.chatKind == ChatGroup
}

// AuthorizedUsers returns the users allowed to drive this chat.
func (b ChatBinding) AuthorizedUsers() []string {
	return append([]string(nil), b.authorizedUsers...)
}

// Authorizes reports whether the given user id is in the authorized set.
// An empty set authorizes nobody.
func (b ChatBinding) Authorizes(userID string) bool {
	for _, u := range b.authorizedUsers {
		if u == userID {
			return true
		}
	}
	return false
}
