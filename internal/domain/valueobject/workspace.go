package valueobject

// Workspace is a named access boundary bound to one or more chats.
// Read-only at runtime; built from configuration at startup.
type Workspace struct {
	name    string
	aliases []string
	tools   []string
	root    string
}

// NewWorkspace creates a workspace value.
func NewWorkspace(name string, aliases, tools []string, root string) Workspace {
	return Workspace{
		name:    name,
		aliases: aliases,
		tools:   tools,
		root:    root,
	}
}

func (w Workspace) Name() string      { return w.name }
func (w Workspace) Aliases() []string { return append([]string(nil), w.aliases...) }
func (w Workspace) Tools() []string   { return append([]string(nil), w.tools...) }
func (w Workspace) Root() string      { return w.root }

// Matches reports whether name equals the workspace name or one of its
// aliases.
func (w Workspace) Matches(name string) bool {
	if name == w.name {
		return true
	}
	for _, a := range w.aliases {
		if a == name {
			return true
		}
	}
	return false
}
