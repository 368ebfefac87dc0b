package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/chatwork/chatwork/gateway/internal/domain/service"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/monitoring"
)

func statusRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	registry := service.NewWorkspaceRegistry(&config.WorkspacesFile{
		Workspaces: []config.WorkspaceEntry{
			{Name: "backend", Aliases: []string{"be"}, Chats: []string{"c1"}},
		},
	})
	h := NewStatusHandler(registry, monitoring.NewMonitor(), "test")

	router := gin.New()
	router.GET("/api/v1/status", h.Status)
	router.GET("/api/v1/workspaces/:name", h.Workspace)
	return router
}

func TestStatusReportsWorkspaceCount(t *testing.T) {
	router := statusRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["workspaces"] != float64(1) {
		t.Fatalf("workspaces = %v", body["workspaces"])
	}
}

func TestWorkspaceLookupByAlias(t *testing.T) {
	router := statusRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/be", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["name"] != "backend" {
		t.Fatalf("name = %v", body["name"])
	}
}

func TestWorkspaceLookupUnknown(t *testing.T) {
	router := statusRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/nope", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
