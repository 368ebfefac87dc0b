package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkspaceEntry is one workspace definition from workspaces.yaml.
type WorkspaceEntry struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Root    string   `yaml:"root"`
	Tools   []string `yaml:"tools"`
	Chats   []string `yaml:"chats"` // chat ids bound to this workspace
	Users   []string `yaml:"users"` // user ids authorized in those chats
}

// WorkspacesFile is the parsed registry file.
type WorkspacesFile struct {
	Workspaces []WorkspaceEntry `yaml:"workspaces"`
	GroupChats []string         `yaml:"group_chats"` // chat ids treated as group contexts
}

// LoadWorkspaces reads and validates the workspace registry. A chat id
// appearing under two workspaces is a startup error: exactly one
// workspace (or none) is bound to a chat.
func LoadWorkspaces(path string) (*WorkspacesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &WorkspacesFile{}, nil
		}
		return nil, fmt.Errorf("read workspaces file: %w", err)
	}

	var wf WorkspacesFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workspaces file: %w", err)
	}

	seenChat := make(map[string]string)
	seenName := make(map[string]bool)
	for _, ws := range wf.Workspaces {
		if ws.Name == "" {
			return nil, fmt.Errorf("workspace with empty name in %s", path)
		}
		if seenName[ws.Name] {
			return nil, fmt.Errorf("duplicate workspace name %q", ws.Name)
		}
		seenName[ws.Name] = true

		for _, chat := range ws.Chats {
			if prev, ok := seenChat[chat]; ok {
				return nil, fmt.Errorf("chat %q bound to both %q and %q", chat, prev, ws.Name)
			}
			seenChat[chat] = ws.Name
		}
	}

	return &wf, nil
}
