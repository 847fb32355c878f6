package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "floatchat.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected path %s, got %s", path, resolved)
	}
	if cfg.Addr != Default().Addr || cfg.EngineIOVersion != 3 || !cfg.AutoReconnect {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if !strings.Contains(string(data), "chat_url: wss://chat.floatplane.com") {
		t.Fatalf("unexpected default file:\n%s", data)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floatchat.yaml")
	file := `
addr: 127.0.0.1:9000
rpc_timeout: 2s
auto_reconnect: false
channels: [a, b]
username: from-file
`
	if err := os.WriteFile(path, []byte(file), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("FLOATCHAT_USERNAME", "from-env")
	t.Setenv("FLOATCHAT_ENGINE_IO_VERSION", "4")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tests := []struct {
		name string
		ok   bool
	}{
		{"file addr", cfg.Addr == "127.0.0.1:9000"},
		{"file duration", cfg.RPCTimeout == 2*time.Second},
		{"file bool", !cfg.AutoReconnect},
		{"file list", len(cfg.Channels) == 2 && cfg.Channels[1] == "b"},
		{"env beats file", cfg.Username == "from-env"},
		{"env int", cfg.EngineIOVersion == 4},
		{"default kept", cfg.HistorySize == 50},
	}
	for _, tt := range tests {
		if !tt.ok {
			t.Errorf("%s: unexpected config %+v", tt.name, cfg)
		}
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floatchat.yaml")
	if err := os.WriteFile(path, []byte("engine_io_version: 5\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := Load(nil, path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1", Channels: []string{"x"}, ReconnectDelay: time.Second})

	if cfg.Addr != ":1" || cfg.ReconnectDelay != time.Second || cfg.Channels[0] != "x" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ChatURL != Default().ChatURL || !cfg.AutoReconnect {
		t.Fatalf("zero values overwrote defaults: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"eio 4", func(c *Config) { c.EngineIOVersion = 4 }, true},
		{"bad eio", func(c *Config) { c.EngineIOVersion = 2 }, false},
		{"bad scheme", func(c *Config) { c.ChatURL = "ftp://chat" }, false},
		{"zero rpc timeout", func(c *Config) { c.RPCTimeout = 0 }, false},
		{"zero history", func(c *Config) { c.HistorySize = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, err)
			}
		})
	}
}
