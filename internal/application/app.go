package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/domain/service"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/agent"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/logger"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/monitoring"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/persistence"
	httpiface "github.com/chatwork/chatwork/gateway/internal/interfaces/http"
	"github.com/chatwork/chatwork/gateway/internal/interfaces/http/handlers"
	"github.com/chatwork/chatwork/gateway/internal/interfaces/telegram"
	"github.com/chatwork/chatwork/gateway/internal/interfaces/websocket"
)

// App wires configuration, storage, services, the pipeline and the
// transports together. Construction is fail-fast: any broken component
// aborts startup.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	coordinator *Coordinator
	tasks       *service.TaskQueue
	tg          *telegram.Adapter
	httpServer  *httpiface.Server
	hub         *websocket.Hub
}

// NewApp assembles the gateway from configuration.
func NewApp(cfg *config.Config, log *zap.Logger, version string) (*App, error) {
	db, err := persistence.NewDBConnection(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	store := persistence.NewGormConversationStore(db, cfg.Search)
	deliveries := persistence.NewGormDeliveryStore(db)
	taskStore := persistence.NewGormTaskStore(db)
	auditLog := persistence.NewGormAuditLog(db)

	wsFile, err := config.LoadWorkspaces(cfg.WorkspacesFile)
	if err != nil {
		return nil, fmt.Errorf("workspaces: %w", err)
	}
	registry := service.NewWorkspaceRegistry(wsFile)

	gate := service.NewSecurityGate(cfg.Security, auditLog, logger.Component(log, "security"))
	builder := service.NewContextBuilder(store, cfg.Context, logger.Component(log, "context"))
	router := service.NewTypeRouter(logger.Component(log, "router"))

	agentClient := agent.NewClient(cfg.Agent, logger.Component(log, "agent"))
	orchestrator := service.NewAgentOrchestrator(agentClient, cfg.Agent, logger.Component(log, "orchestrator"))

	app := &App{cfg: cfg, logger: log}
	monitor := monitoring.NewMonitor()

	hub := websocket.NewHub(logger.Component(log, "websocket"))
	app.hub = hub

	var transport service.Transport
	var tg *telegram.Adapter
	coordinatorRef := &ingressProxy{}
	if cfg.Telegram.Enabled {
		tg, err = telegram.NewAdapter(cfg.Telegram, coordinatorRef, logger.Component(log, "telegram"))
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		transport = tg
		if cfg.Security.SelfID == "" {
			cfg.Security.SelfID = tg.SelfID()
		}
		app.tg = tg
	} else {
		transport = &nullTransport{logger: logger.Component(log, "transport")}
	}

	responses := service.NewResponseManager(
		transport, store, deliveries, auditLog, cfg.Responses,
		cfg.Context.AgentHandle, logger.Component(log, "responses"),
	)
	responses.SetNotifier(hub)

	tasks := service.NewTaskQueue(
		taskStore, orchestrator, responses, cfg.Tasks,
		cfg.Responses.TaskDoneText, logger.Component(log, "tasks"),
	)
	tasks.SetMetrics(monitor)
	app.tasks = tasks

	coordinator := NewCoordinator(
		registry, gate, builder, router, orchestrator,
		responses, tasks, store, monitor, cfg.Pipeline,
		logger.Component(log, "pipeline"),
	)
	coordinatorRef.target = coordinator
	app.coordinator = coordinator

	if cfg.HTTP.Enabled {
		messages := handlers.NewMessageHandler(coordinator, store, cfg.Search, logger.Component(log, "http"))
		status := handlers.NewStatusHandler(registry, monitor, version)
		app.httpServer = httpiface.NewServer(cfg.HTTP, messages, status, hub, monitor, logger.Component(log, "http"))
	}

	return app, nil
}

// Start brings the gateway up: pipeline first, then task recovery, then
// the transports.
func (a *App) Start(ctx context.Context) error {
	a.coordinator.Start()
	if err := a.tasks.Start(ctx); err != nil {
		return fmt.Errorf("task queue: %w", err)
	}
	if a.tg != nil {
		a.tg.Start()
	}
	if a.httpServer != nil {
		a.httpServer.Start()
	}
	a.logger.Info("Gateway started")
	return nil
}

// Stop drains in reverse order: ingress first so no new work arrives,
// then the pipeline, then background tasks.
func (a *App) Stop(ctx context.Context) {
	if a.tg != nil {
		a.tg.Stop()
	}
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("HTTP shutdown error", zap.Error(err))
		}
	}
	a.coordinator.Stop()
	a.tasks.Stop()
	a.hub.Close()
	a.logger.Info("Gateway stopped")
}

// ingressProxy breaks the construction cycle between the transports and
// the coordinator: adapters are built first, the target is set once the
// coordinator exists.
type ingressProxy struct {
	target *Coordinator
}

func (p *ingressProxy) Handle(msg *service.InboundMessage) {
	if p.target != nil {
		p.target.Handle(msg)
	}
}

// nullTransport drops outbound replies when no platform transport is
// enabled. Used for HTTP-only deployments during development.
type nullTransport struct {
	logger *zap.Logger
}

func (t *nullTransport) Send(ctx context.Context, chatID, text string) (string, error) {
	t.logger.Info("Dropping outbound reply, no transport enabled",
		zap.String("chat_id", chatID),
	)
	return "null", nil
}

func (t *nullTransport) Edit(ctx context.Context, chatID, platformMessageID, text string) error {
	return nil
}
