// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	AI       AIConfig       `mapstructure:"ai" yaml:"ai"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
}

// LoggerConfig configures the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes, per lumberjack
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig configures the HTTP/websocket listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigin   string        `mapstructure:"allowed_origin" yaml:"allowed_origin"`
}

// AIConfig configures the analysis client. With an empty APIKey the agent
// runs in demo mode on the keyword strategy.
type AIConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"` // "gemini" or "mock"
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// CaptureConfig selects and sizes the frame source.
type CaptureConfig struct {
	Mode      string `mapstructure:"mode" yaml:"mode"` // "simulated" or "browser"
	Width     int    `mapstructure:"width" yaml:"width"`
	Height    int    `mapstructure:"height" yaml:"height"`
	TargetURL string `mapstructure:"target_url" yaml:"target_url"`
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
}

// ExecutorConfig holds the simulated latencies of the desktop executor.
type ExecutorConfig struct {
	MoveDelay    time.Duration `mapstructure:"move_delay" yaml:"move_delay"`
	ClickDelay   time.Duration `mapstructure:"click_delay" yaml:"click_delay"`
	TypeDelay    time.Duration `mapstructure:"type_delay" yaml:"type_delay"` // per character
	CommandDelay time.Duration `mapstructure:"command_delay" yaml:"command_delay"`
	FileOpDelay  time.Duration `mapstructure:"file_op_delay" yaml:"file_op_delay"`
}

// SessionConfig tunes the orchestration session.
type SessionConfig struct {
	HighlightDuration time.Duration `mapstructure:"highlight_duration" yaml:"highlight_duration"`
}

// RealtimeConfig tunes the websocket hub and client.
type RealtimeConfig struct {
	PingInterval      time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	PongWait          time.Duration `mapstructure:"pong_wait" yaml:"pong_wait"`
	WriteWait         time.Duration `mapstructure:"write_wait" yaml:"write_wait"`
	SendBuffer        int           `mapstructure:"send_buffer" yaml:"send_buffer"`
	ExecuteRate       float64       `mapstructure:"execute_rate" yaml:"execute_rate"` // events/sec per connection
	ExecuteBurst      int           `mapstructure:"execute_burst" yaml:"execute_burst"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts" yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	ReconnectDelayMax time.Duration `mapstructure:"reconnect_delay_max" yaml:"reconnect_delay_max"`
}

// SetDefaults initializes default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "nexus-agent")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.addr", ":3001")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origin", "http://localhost:3000")

	// -- AI --
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.api_timeout", "30s")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.max_retries", 3)

	// -- Capture --
	v.SetDefault("capture.mode", "simulated")
	v.SetDefault("capture.width", 1920)
	v.SetDefault("capture.height", 1080)
	v.SetDefault("capture.target_url", "about:blank")
	v.SetDefault("capture.headless", true)

	// -- Executor --
	v.SetDefault("executor.move_delay", "50ms")
	v.SetDefault("executor.click_delay", "100ms")
	v.SetDefault("executor.type_delay", "50ms")
	v.SetDefault("executor.command_delay", "200ms")
	v.SetDefault("executor.file_op_delay", "200ms")

	// -- Session --
	v.SetDefault("session.highlight_duration", "2s")

	// -- Realtime --
	v.SetDefault("realtime.ping_interval", "54s")
	v.SetDefault("realtime.pong_wait", "60s")
	v.SetDefault("realtime.write_wait", "10s")
	v.SetDefault("realtime.send_buffer", 32)
	v.SetDefault("realtime.execute_rate", 5.0)
	v.SetDefault("realtime.execute_burst", 10)
	v.SetDefault("realtime.reconnect_attempts", 5)
	v.SetDefault("realtime.reconnect_delay", "1s")
	v.SetDefault("realtime.reconnect_delay_max", "5s")
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper unmarshals and validates a configuration.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("ai.api_key", "NEXUS_AI_API_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Logger.LogFile != "" {
		expanded, err := homedir.Expand(cfg.Logger.LogFile)
		if err != nil {
			return nil, fmt.Errorf("expanding logger.log_file: %w", err)
		}
		cfg.Logger.LogFile = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	switch c.Capture.Mode {
	case "simulated", "browser":
	default:
		return fmt.Errorf("capture.mode must be \"simulated\" or \"browser\", got %q", c.Capture.Mode)
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("capture.width and capture.height must be positive")
	}
	switch c.AI.Provider {
	case "gemini", "mock":
	default:
		return fmt.Errorf("ai.provider must be \"gemini\" or \"mock\", got %q", c.AI.Provider)
	}
	if c.Realtime.ReconnectAttempts < 0 {
		return fmt.Errorf("realtime.reconnect_attempts must not be negative")
	}
	if c.Session.HighlightDuration <= 0 {
		return fmt.Errorf("session.highlight_duration must be a positive duration")
	}
	return nil
}
