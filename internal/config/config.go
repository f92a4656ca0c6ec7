// Package config loads tradesman configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all daemon configuration.
type Config struct {
	Logging   LoggingConfig
	Socket    SocketConfig
	Inbox     InboxConfig
	Scheduler SchedulerConfig
	Pause     PauseConfig
	Flow      FlowConfig
	Orders    OrdersConfig
	Ledger    LedgerConfig
}

type LoggingConfig struct {
	Level string
	Path  string
}

// SocketConfig holds the structured event source settings.
type SocketConfig struct {
	URL          string
	Token        string
	ReconnectSec int `mapstructure:"reconnect_sec"`
}

// InboxConfig holds the recommendation drop-directory settings.
type InboxConfig struct {
	Dir string
}

type SchedulerConfig struct {
	PollMs             int `mapstructure:"poll_ms"`
	ActionTimeoutSec   int `mapstructure:"action_timeout_sec"`
	InterActionDelayMs int `mapstructure:"inter_action_delay_ms"`
	StalenessSec       int `mapstructure:"staleness_sec"`
	StartupGraceSec    int `mapstructure:"startup_grace_sec"`
}

type PauseConfig struct {
	WindowSec         int `mapstructure:"window_sec"`
	PendingTimeoutSec int `mapstructure:"pending_timeout_sec"`
}

type FlowConfig struct {
	StepTimeoutMs       int `mapstructure:"step_timeout_ms"`
	StepRetries         int `mapstructure:"step_retries"`
	OperationTimeoutSec int `mapstructure:"operation_timeout_sec"`
}

type OrdersConfig struct {
	Path             string
	CancelAfterSec   int `mapstructure:"cancel_after_sec"`
	SweepIntervalSec int `mapstructure:"sweep_interval_sec"`
	MaxOpen          int `mapstructure:"max_open"`
}

type LedgerConfig struct {
	Path string
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "tradesman")
}

// Load reads configuration from file and env. Env var overrides use prefix TRADESMAN_.
func Load(path string) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", filepath.Join(dataDir(), "tradesman.log"))
	v.SetDefault("socket.url", "ws://127.0.0.1:8123/events")
	v.SetDefault("socket.token", "")
	v.SetDefault("socket.reconnect_sec", 5)
	v.SetDefault("inbox.dir", filepath.Join(dataDir(), "inbox"))
	v.SetDefault("scheduler.poll_ms", 50)
	v.SetDefault("scheduler.action_timeout_sec", 30)
	v.SetDefault("scheduler.inter_action_delay_ms", 250)
	v.SetDefault("scheduler.staleness_sec", 45)
	v.SetDefault("scheduler.startup_grace_sec", 3)
	v.SetDefault("pause.window_sec", 20)
	v.SetDefault("pause.pending_timeout_sec", 30)
	v.SetDefault("flow.step_timeout_ms", 800)
	v.SetDefault("flow.step_retries", 2)
	v.SetDefault("flow.operation_timeout_sec", 20)
	v.SetDefault("orders.path", filepath.Join(dataDir(), "orders.yaml"))
	v.SetDefault("orders.cancel_after_sec", 900)
	v.SetDefault("orders.sweep_interval_sec", 60)
	v.SetDefault("orders.max_open", 8)
	v.SetDefault("ledger.path", filepath.Join(dataDir(), "ledger.db"))

	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else if env := os.Getenv("TRADESMAN_CONFIG"); env != "" {
		v.SetConfigFile(env)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "tradesman"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("TRADESMAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Duration helpers keep call sites free of unit arithmetic.

func (c SchedulerConfig) Poll() time.Duration         { return time.Duration(c.PollMs) * time.Millisecond }
func (c SchedulerConfig) ActionTimeout() time.Duration {
	return time.Duration(c.ActionTimeoutSec) * time.Second
}
func (c SchedulerConfig) InterActionDelay() time.Duration {
	return time.Duration(c.InterActionDelayMs) * time.Millisecond
}
func (c SchedulerConfig) Staleness() time.Duration {
	return time.Duration(c.StalenessSec) * time.Second
}
func (c SchedulerConfig) StartupGrace() time.Duration {
	return time.Duration(c.StartupGraceSec) * time.Second
}

func (c PauseConfig) Window() time.Duration { return time.Duration(c.WindowSec) * time.Second }
func (c PauseConfig) PendingTimeout() time.Duration {
	return time.Duration(c.PendingTimeoutSec) * time.Second
}

func (c FlowConfig) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutMs) * time.Millisecond
}
func (c FlowConfig) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutSec) * time.Second
}

func (c OrdersConfig) CancelAfter() time.Duration {
	return time.Duration(c.CancelAfterSec) * time.Second
}
func (c OrdersConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}
