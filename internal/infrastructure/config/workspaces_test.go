package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeWorkspacesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workspaces.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWorkspacesMissingFileIsEmpty(t *testing.T) {
	wf, err := LoadWorkspaces(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(wf.Workspaces) != 0 || len(wf.GroupChats) != 0 {
		t.Fatal("missing file should yield an empty registry")
	}
}

func TestLoadWorkspacesParsesEntries(t *testing.T) {
	path := writeWorkspacesFile(t, `
workspaces:
  - name: backend
    aliases: [be]
    chats: ["c1", "c2"]
    users: ["u1"]
  - name: frontend
    chats: ["c3"]
group_chats: ["g1"]
`)
	wf, err := LoadWorkspaces(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(wf.Workspaces) != 2 {
		t.Fatalf("workspaces = %d", len(wf.Workspaces))
	}
	if wf.Workspaces[0].Name != "backend" || wf.Workspaces[0].Aliases[0] != "be" {
		t.Fatalf("first workspace = %+v", wf.Workspaces[0])
	}
	if len(wf.GroupChats) != 1 || wf.GroupChats[0] != "g1" {
		t.Fatalf("group chats = %v", wf.GroupChats)
	}
}

func TestLoadWorkspacesRejectsDuplicateName(t *testing.T) {
	path := writeWorkspacesFile(t, `
workspaces:
  - name: backend
  - name: backend
`)
	_, err := LoadWorkspaces(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate workspace name") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadWorkspacesRejectsChatInTwoWorkspaces(t *testing.T) {
	path := writeWorkspacesFile(t, `
workspaces:
  - name: backend
    chats: ["c1"]
  - name: frontend
    chats: ["c1"]
`)
	_, err := LoadWorkspaces(path)
	if err == nil || !strings.Contains(err.Error(), "bound to both") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadWorkspacesRejectsMalformedYAML(t *testing.T) {
	path := writeWorkspacesFile(t, "workspaces: [")
	if _, err := LoadWorkspaces(path); err == nil {
		t.Fatal("malformed yaml should error")
	}
}
