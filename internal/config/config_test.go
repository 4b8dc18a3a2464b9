package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.SwapMode != def.SwapMode {
		t.Errorf("SwapMode = %q, want %q", cfg.SwapMode, def.SwapMode)
	}
	if cfg.StoreDriver != "sqlite" {
		t.Errorf("StoreDriver = %q, want sqlite", cfg.StoreDriver)
	}
	if cfg.SessionBackend != "file" {
		t.Errorf("SessionBackend = %q, want file", cfg.SessionBackend)
	}
	if cfg.LockTTLSeconds != 10 {
		t.Errorf("LockTTLSeconds = %d, want 10", cfg.LockTTLSeconds)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	data := `{"swap_mode": "two_step", "user": "parent-1", "http_port": 9000}`
	if err := os.WriteFile(configPath, []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SwapMode != SwapModeTwoStep {
		t.Errorf("SwapMode = %q, want %q", cfg.SwapMode, SwapModeTwoStep)
	}
	if cfg.User != "parent-1" {
		t.Errorf("User = %q, want parent-1", cfg.User)
	}
	if cfg.HTTPPort != 9000 {
		t.Errorf("HTTPPort = %d, want 9000", cfg.HTTPPort)
	}
	if cfg.HTTPBind != "127.0.0.1" {
		t.Errorf("HTTPBind = %q, want default", cfg.HTTPBind)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"user": "from-file", "log_level": "debug"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("WILLOW_USER_ID", "from-env")
	t.Setenv("WILLOW_DISABLED_TOOLS", "avatar_repair,profile_delete")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.User != "from-env" {
		t.Errorf("User = %q, want from-env", cfg.User)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug (from file)", cfg.LogLevel)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools = %v, want 2 entries", cfg.DisabledTools)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_InvalidEnum(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"swap_mode": "yolo"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error for unknown swap_mode")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"postgres without dsn", func(c *Config) { c.StoreDriver = "postgres" }, true},
		{"postgres with dsn", func(c *Config) { c.StoreDriver = "postgres"; c.PostgresDSN = "postgres://x" }, false},
		{"redis lock without addr", func(c *Config) { c.LockBackend = "redis" }, true},
		{"redis session with addr", func(c *Config) { c.SessionBackend = "redis"; c.RedisAddr = "localhost:6379" }, false},
		{"bad session backend", func(c *Config) { c.SessionBackend = "cookie" }, true},
		{"bad lock backend", func(c *Config) { c.LockBackend = "etcd" }, true},
		{"negative pg min conns", func(c *Config) { c.PGMinConns = -1 }, true},
		{"pg min conns above max", func(c *Config) { c.DBMaxOpenConns = 4; c.PGMinConns = 5 }, true},
		{"pg min conns within max", func(c *Config) { c.DBMaxOpenConns = 4; c.PGMinConns = 2 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	cfg, err := LoadEnv([]string{
		"WILLOW_SWAP_MODE=two_step",
		"WILLOW_HTTP_PORT=9999",
		"WILLOW_PG_MIN_CONNS=2",
		"UNRELATED=1",
		"SWAP_MODE=auto",
	})
	if err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if cfg.SwapMode != SwapModeTwoStep {
		t.Errorf("SwapMode = %q, want two_step", cfg.SwapMode)
	}
	if cfg.HTTPPort != 9999 {
		t.Errorf("HTTPPort = %d, want 9999", cfg.HTTPPort)
	}
	if cfg.PGMinConns != 2 {
		t.Errorf("PGMinConns = %d, want 2", cfg.PGMinConns)
	}
	if cfg.StoreDriver != "" {
		t.Errorf("StoreDriver = %q, want empty overlay value", cfg.StoreDriver)
	}

	if _, err := LoadEnv([]string{"WILLOW_HTTP_PORT=abc"}); err == nil {
		t.Error("LoadEnv() expected error for non-numeric port")
	}
}

func TestMerge_Scalars(t *testing.T) {
	base := &Config{SwapMode: SwapModeAuto, HTTPPort: 1, User: "a"}
	overlay := &Config{SwapMode: SwapModeTwoStep, User: "  "}

	result := Merge(base, overlay)

	if result.SwapMode != SwapModeTwoStep {
		t.Errorf("SwapMode = %q, want overlay", result.SwapMode)
	}
	if result.HTTPPort != 1 {
		t.Errorf("HTTPPort = %d, want base", result.HTTPPort)
	}
	if result.User != "a" {
		t.Errorf("User = %q, blank overlay should not win", result.User)
	}
}

func TestMerge_DisabledToolsDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"avatar_repair", " profile_delete "}}
	overlay := &Config{DisabledTools: []string{"profile_delete", "", "avatar_save"}}

	result := Merge(base, overlay)

	want := []string{"avatar_repair", "profile_delete", "avatar_save"}
	if len(result.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", result.DisabledTools, want)
	}
	for i := range want {
		if result.DisabledTools[i] != want[i] {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, result.DisabledTools[i], want[i])
		}
	}

	if Merge(&Config{}, &Config{}).DisabledTools != nil {
		t.Error("empty merge should yield nil slice")
	}
}
