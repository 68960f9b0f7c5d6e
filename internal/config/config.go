package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. DOCFLOW_SERVER_PORT
const EnvPrefix = "DOCFLOW"

// Config holds all application configuration
type Config struct {
	Server       ServerConfig          `mapstructure:"server"`
	Database     DatabaseConfig        `mapstructure:"database"`
	Logger       LoggerConfig          `mapstructure:"logger"`
	Workflow     WorkflowConfig        `mapstructure:"workflow"`
	Notification NotificationConfig    `mapstructure:"notification"`
	Push         PushConfig            `mapstructure:"push"`
	Metrics      MetricsConfig         `mapstructure:"metrics"`
	Forms        map[string]FormConfig `mapstructure:"forms"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkflowConfig tunes the approval state machine
type WorkflowConfig struct {
	// AllowCorrection enables the needs-correction loop
	AllowCorrection bool `mapstructure:"allow_correction"`
}

// NotificationConfig holds notification retention and delivery settings
type NotificationConfig struct {
	TTL            time.Duration `mapstructure:"ttl"`
	ArchiveKeep    int           `mapstructure:"archive_keep"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	PushTimeout    time.Duration `mapstructure:"push_timeout"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

// PushConfig selects the live delivery channels
type PushConfig struct {
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Lark      LarkConfig      `mapstructure:"lark"`
}

// WebSocketConfig configures the websocket hub
type WebSocketConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
}

// LarkConfig holds Lark IM credentials
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
	BaseURL       string `mapstructure:"base_url"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// FormConfig describes one form template
type FormConfig struct {
	Title          string   `mapstructure:"title"`
	RequiredFields []string `mapstructure:"required_fields"`
}

// Load reads configuration from configPath, the environment and an optional
// .env file. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of path without overriding ones already set
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/docflow.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("workflow.allow_correction", false)

	// Notification defaults
	v.SetDefault("notification.ttl", 30*24*time.Hour)
	v.SetDefault("notification.archive_keep", 100)
	v.SetDefault("notification.sweep_interval", time.Hour)
	v.SetDefault("notification.push_timeout", 5*time.Second)
	v.SetDefault("notification.handler_timeout", 10*time.Second)

	// Push defaults
	v.SetDefault("push.websocket.enabled", true)
	v.SetDefault("push.websocket.write_timeout", 10*time.Second)
	v.SetDefault("push.websocket.pong_wait", 60*time.Second)
	v.SetDefault("push.lark.enabled", false)
	v.SetDefault("push.lark.receive_id_type", "user_id")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// bindEnvVars binds the conventional unprefixed names of secrets
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("push.lark.app_id", EnvPrefix+"_PUSH_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("push.lark.app_secret", EnvPrefix+"_PUSH_LARK_APP_SECRET", "LARK_APP_SECRET")
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	n := c.Notification
	if n.TTL <= 0 {
		return fmt.Errorf("notification.ttl must be positive")
	}
	if n.ArchiveKeep <= 0 {
		return fmt.Errorf("notification.archive_keep must be positive")
	}
	if n.SweepInterval <= 0 {
		return fmt.Errorf("notification.sweep_interval must be positive")
	}
	if n.PushTimeout <= 0 || n.HandlerTimeout <= 0 {
		return fmt.Errorf("notification.push_timeout and notification.handler_timeout must be positive")
	}

	if c.Push.Lark.Enabled {
		if c.Push.Lark.AppID == "" {
			return fmt.Errorf("push.lark.app_id is required when lark push is enabled")
		}
		if c.Push.Lark.AppSecret == "" {
			return fmt.Errorf("push.lark.app_secret is required when lark push is enabled")
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	for id := range c.Forms {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("forms: empty form id")
		}
	}

	return nil
}
