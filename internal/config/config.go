package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds floatchat configuration values.
type Config struct {
	// Local bridge.
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	WSRateLimit       int           `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"` // listener commands per minute, 0 disables

	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// Floatplane endpoints.
	ChatURL         string `mapstructure:"chat_url" yaml:"chat_url"`
	FrontendURL     string `mapstructure:"frontend_url" yaml:"frontend_url"`
	SocketPath      string `mapstructure:"socket_path" yaml:"socket_path"`
	EngineIOVersion int    `mapstructure:"engine_io_version" yaml:"engine_io_version"`
	Origin          string `mapstructure:"origin" yaml:"origin"`
	UserAgent       string `mapstructure:"user_agent" yaml:"user_agent"`
	SessionCookie   string `mapstructure:"session_cookie" yaml:"session_cookie"`
	Username        string `mapstructure:"username" yaml:"username"`

	// Session behavior.
	RPCTimeout     time.Duration `mapstructure:"rpc_timeout" yaml:"rpc_timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	AutoReconnect  bool          `mapstructure:"auto_reconnect" yaml:"auto_reconnect"`
	EmoteSize      int           `mapstructure:"emote_size" yaml:"emote_size"`
	HistorySize    int           `mapstructure:"history_size" yaml:"history_size"`
	Channels       []string      `mapstructure:"channels" yaml:"channels"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              "127.0.0.1:8089",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		WSRateLimit:       120,
		LogLevel:          "info",
		DatabasePath:      "floatchat.db",
		ChatURL:           "wss://chat.floatplane.com",
		FrontendURL:       "wss://www.floatplane.com",
		SocketPath:        "/socket.io/",
		EngineIOVersion:   3,
		Origin:            "https://www.floatplane.com",
		UserAgent:         "floatchat/1.0",
		RPCTimeout:        5 * time.Second,
		ReconnectDelay:    5 * time.Second,
		AutoReconnect:     true,
		EmoteSize:         28,
		HistorySize:       50,
		Channels:          []string{},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Booleans are not merged since false cannot be told apart from unset.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.WSRateLimit != 0 {
		c.WSRateLimit = other.WSRateLimit
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.ChatURL != "" {
		c.ChatURL = other.ChatURL
	}
	if other.FrontendURL != "" {
		c.FrontendURL = other.FrontendURL
	}
	if other.SocketPath != "" {
		c.SocketPath = other.SocketPath
	}
	if other.EngineIOVersion != 0 {
		c.EngineIOVersion = other.EngineIOVersion
	}
	if other.Origin != "" {
		c.Origin = other.Origin
	}
	if other.UserAgent != "" {
		c.UserAgent = other.UserAgent
	}
	if other.SessionCookie != "" {
		c.SessionCookie = other.SessionCookie
	}
	if other.Username != "" {
		c.Username = other.Username
	}
	if other.RPCTimeout != 0 {
		c.RPCTimeout = other.RPCTimeout
	}
	if other.ReconnectDelay != 0 {
		c.ReconnectDelay = other.ReconnectDelay
	}
	if other.EmoteSize != 0 {
		c.EmoteSize = other.EmoteSize
	}
	if other.HistorySize != 0 {
		c.HistorySize = other.HistorySize
	}
	if len(other.Channels) > 0 {
		c.Channels = other.Channels
	}
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.EngineIOVersion != 3 && c.EngineIOVersion != 4 {
		return fmt.Errorf("engine_io_version must be 3 or 4, got %d", c.EngineIOVersion)
	}
	for key, raw := range map[string]string{"chat_url": c.ChatURL, "frontend_url": c.FrontendURL} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		switch u.Scheme {
		case "ws", "wss", "http", "https":
		default:
			return fmt.Errorf("%s: unsupported scheme %q", key, u.Scheme)
		}
	}
	if c.RPCTimeout <= 0 {
		return errors.New("rpc_timeout must be positive")
	}
	if c.HistorySize <= 0 {
		return errors.New("history_size must be positive")
	}
	return nil
}
