package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the full gateway configuration. Loaded once at startup;
// the gateway does not hot-reload configuration mid-run.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Security  SecurityConfig  `mapstructure:"security"`
	Context   ContextConfig   `mapstructure:"context"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Search    SearchConfig    `mapstructure:"search"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Responses ResponsesConfig `mapstructure:"responses"`

	// WorkspacesFile points at the workspace registry (workspaces.yaml).
	WorkspacesFile string `mapstructure:"workspaces_file"`
}

// LogConfig controls zap construction.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// DatabaseConfig selects the embedded relational store.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres
	DSN  string `mapstructure:"dsn"`
}

// TelegramConfig configures the Telegram transport adapter.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	Debug    bool   `mapstructure:"debug"`
}

// HTTPConfig configures the gin ingress/status server.
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// PipelineConfig bounds the coordinator's worker pool.
type PipelineConfig struct {
	Workers         int           `mapstructure:"workers"`
	QueueDepth      int           `mapstructure:"queue_depth"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SecurityConfig holds the admission-control policy: default-deny
// allow-lists per chat type plus the per-chat token bucket.
type SecurityConfig struct {
	SelfID          string   `mapstructure:"self_id"`
	DirectAllow     []string `mapstructure:"direct_allow"` // allowed user ids in direct chats
	GroupAllow      []string `mapstructure:"group_allow"`  // allowed group chat ids
	RateLimitBurst  int      `mapstructure:"rate_limit_burst"`
	RateLimitPerMin float64  `mapstructure:"rate_limit_per_min"`
}

// ContextConfig bounds the history windows assembled per message.
type ContextConfig struct {
	HistoryLimit int           `mapstructure:"history_limit"`
	WideWindow   time.Duration `mapstructure:"wide_window"`
	AgentHandle  string        `mapstructure:"agent_handle"` // mention name, e.g. "@chatwork"
}

// AgentConfig configures the single call-site into the agent
// collaborator.
type AgentConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	InvokeTimeout time.Duration `mapstructure:"invoke_timeout"` // interactive replies
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`   // delegated background work
	StreamIdle    time.Duration `mapstructure:"stream_idle"`    // max silence on the SSE stream
}

// SearchConfig holds the relevance/recency scoring weights. Exact-match
// weight must dominate realistic token sums so exact matches rank first.
type SearchConfig struct {
	ExactWeight   float64 `mapstructure:"exact_weight"`
	TokenWeight   float64 `mapstructure:"token_weight"`
	RecencyWeight float64 `mapstructure:"recency_weight"`
	MaxAgeDays    int     `mapstructure:"max_age_days"`
	MaxResults    int     `mapstructure:"max_results"`
}

// TasksConfig bounds the background task consumer pool.
type TasksConfig struct {
	Workers int `mapstructure:"workers"`
}

// ResponsesConfig holds the fixed user-visible texts for degraded and
// failed outcomes. Raw errors are never shown to users.
type ResponsesConfig struct {
	DegradedText string `mapstructure:"degraded_text"`
	FailedText   string `mapstructure:"failed_text"`
	TaskAckText  string `mapstructure:"task_ack_text"`
	TaskDoneText string `mapstructure:"task_done_text"`
}

// Load reads configuration in layers: defaults, then the global
// ~/.chatwork/config.yaml, then a local ./config.yaml overlay, then
// CHATWORK_* environment variables.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", explicitPath, err)
		}
		v.SetEnvPrefix("CHATWORK")
		v.AutomaticEnv()
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
		return &cfg, nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	globalDir := filepath.Join(os.Getenv("HOME"), ".chatwork")
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read global config: %w", err)
		}
	}

	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	v.SetEnvPrefix("CHATWORK")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "chatwork.db")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 18790)

	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_depth", 256)
	v.SetDefault("pipeline.shutdown_timeout", "30s")

	v.SetDefault("security.rate_limit_burst", 5)
	v.SetDefault("security.rate_limit_per_min", 20.0)

	v.SetDefault("context.history_limit", 15)
	v.SetDefault("context.wide_window", "24h")
	v.SetDefault("context.agent_handle", "@chatwork")

	v.SetDefault("agent.base_url", "http://127.0.0.1:8787")
	v.SetDefault("agent.invoke_timeout", "30s")
	v.SetDefault("agent.task_timeout", "2h")
	v.SetDefault("agent.stream_idle", "60s")

	v.SetDefault("search.exact_weight", 10.0)
	v.SetDefault("search.token_weight", 2.0)
	v.SetDefault("search.recency_weight", 5.0)
	v.SetDefault("search.max_age_days", 30)
	v.SetDefault("search.max_results", 10)

	v.SetDefault("tasks.workers", 2)

	v.SetDefault("responses.degraded_text", "Sorry, that took longer than expected and I couldn't finish. Please try again.")
	v.SetDefault("responses.failed_text", "Sorry, something went wrong while handling that message.")
	v.SetDefault("responses.task_ack_text", "Got it. I'll work on that in the background and report back here.")
	v.SetDefault("responses.task_done_text", "Background task finished:")

	v.SetDefault("workspaces_file", "workspaces.yaml")
}
