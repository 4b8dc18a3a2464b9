package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Swap modes.
const (
	SwapModeAuto    = "auto"     // atomic when the store supports it, else two-step
	SwapModeTwoStep = "two_step" // always the portable two-step protocol
)

// Config holds application configuration.
type Config struct {
	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" env:"DB_MAX_OPEN_CONNS"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" env:"DB_MAX_IDLE_CONNS"`

	// StoreDriver selects the record store: "sqlite" (default) or "postgres".
	StoreDriver string `json:"store_driver,omitempty" env:"STORE_DRIVER"`

	// PostgresDSN is required when StoreDriver is "postgres".
	PostgresDSN string `json:"postgres_dsn,omitempty" env:"POSTGRES_DSN"`

	// PGMinConns is the number of connections the postgres pool keeps open.
	// 0 keeps the pgx default. db_max_open_conns caps the pool.
	PGMinConns int `json:"pg_min_conns,omitempty" env:"PG_MIN_CONNS"`

	// SwapMode is "auto" or "two_step".
	SwapMode string `json:"swap_mode,omitempty" env:"SWAP_MODE"`

	// LockBackend serializes swaps per profile: "none", "local", or "redis".
	// Only "redis" excludes writers in other processes.
	LockBackend string `json:"lock_backend,omitempty" env:"LOCK_BACKEND"`

	// LockTTLSeconds bounds how long a crashed holder can block a profile.
	LockTTLSeconds int `json:"lock_ttl_seconds,omitempty" env:"LOCK_TTL_SECONDS"`

	// SessionBackend stores session pointers: "file", "memory", or "redis".
	SessionBackend string `json:"session_backend,omitempty" env:"SESSION_BACKEND"`

	// SessionID names the session used by the CLI and MCP server, so a
	// selection made in one invocation is seen by the next.
	SessionID string `json:"session_id,omitempty" env:"SESSION_ID"`

	// SessionTTLHours expires idle redis sessions. 0 keeps them forever.
	SessionTTLHours int `json:"session_ttl_hours,omitempty" env:"SESSION_TTL_HOURS"`

	RedisAddr     string `json:"redis_addr,omitempty" env:"REDIS_ADDR"`
	RedisPassword string `json:"redis_password,omitempty" env:"REDIS_PASSWORD"`

	// User is the identity used by the CLI and MCP server.
	User string `json:"user,omitempty" env:"USER_ID"`

	// JWTSecret enables bearer-token identity on the HTTP API (HS256).
	// When empty, the HTTP API falls back to User.
	JWTSecret string `json:"jwt_secret,omitempty" env:"JWT_SECRET"`
	JWTIssuer string `json:"jwt_issuer,omitempty" env:"JWT_ISSUER"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" env:"LOG_LEVEL"`

	HTTPBind string `json:"http_bind,omitempty" env:"HTTP_BIND"`
	HTTPPort int    `json:"http_port,omitempty" env:"HTTP_PORT"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" env:"DISABLED_TOOLS"`

	// DisabledTypes excludes every MCP tool of a type ("profile", "avatar").
	DisabledTypes []string `json:"disabled_types,omitempty" env:"DISABLED_TYPES"`
}

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "WILLOW_"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StoreDriver:    "sqlite",
		SwapMode:       SwapModeAuto,
		LockBackend:    "local",
		LockTTLSeconds: 10,
		SessionBackend: "file",
		SessionID:      "local",
		LogLevel:       "info",
		HTTPBind:       "127.0.0.1",
		HTTPPort:       8420,
	}
}

// Load loads configuration from baseDir/config.json and then applies
// WILLOW_* environment variables. Missing files yield defaults.
func Load(baseDir string) (*Config, error) {
	file, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	envCfg, err := LoadEnv(os.Environ())
	if err != nil {
		return nil, err
	}
	cfg := Merge(Merge(DefaultConfig(), file), envCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv parses WILLOW_* variables from environ into a zero-based Config
// suitable as a Merge overlay.
func LoadEnv(environ []string) (*Config, error) {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate rejects unknown enum values.
func (c *Config) Validate() error {
	checks := []struct {
		name  string
		value string
		valid []string
	}{
		{"store_driver", c.StoreDriver, []string{"sqlite", "postgres"}},
		{"swap_mode", c.SwapMode, []string{SwapModeAuto, SwapModeTwoStep}},
		{"lock_backend", c.LockBackend, []string{"none", "local", "redis"}},
		{"session_backend", c.SessionBackend, []string{"file", "memory", "redis"}},
	}
	for _, ch := range checks {
		ok := false
		for _, v := range ch.valid {
			if ch.value == v {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("config: %s must be one of %s, got %q", ch.name, strings.Join(ch.valid, ", "), ch.value)
		}
	}
	if c.StoreDriver == "postgres" && c.PostgresDSN == "" {
		return errors.New("config: postgres_dsn is required when store_driver is postgres")
	}
	if c.PGMinConns < 0 {
		return errors.New("config: pg_min_conns must not be negative")
	}
	if c.DBMaxOpenConns > 0 && c.PGMinConns > c.DBMaxOpenConns {
		return errors.New("config: pg_min_conns must not exceed db_max_open_conns")
	}
	if (c.LockBackend == "redis" || c.SessionBackend == "redis") && c.RedisAddr == "" {
		return errors.New("config: redis_addr is required for redis backends")
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		DBMaxOpenConns:  firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:  firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		StoreDriver:     firstString(overlay.StoreDriver, base.StoreDriver),
		PostgresDSN:     firstString(overlay.PostgresDSN, base.PostgresDSN),
		PGMinConns:      firstInt(overlay.PGMinConns, base.PGMinConns),
		SwapMode:        firstString(overlay.SwapMode, base.SwapMode),
		LockBackend:     firstString(overlay.LockBackend, base.LockBackend),
		LockTTLSeconds:  firstInt(overlay.LockTTLSeconds, base.LockTTLSeconds),
		SessionBackend:  firstString(overlay.SessionBackend, base.SessionBackend),
		SessionID:       firstString(overlay.SessionID, base.SessionID),
		SessionTTLHours: firstInt(overlay.SessionTTLHours, base.SessionTTLHours),
		RedisAddr:       firstString(overlay.RedisAddr, base.RedisAddr),
		RedisPassword:   firstString(overlay.RedisPassword, base.RedisPassword),
		User:            firstString(overlay.User, base.User),
		JWTSecret:       firstString(overlay.JWTSecret, base.JWTSecret),
		JWTIssuer:       firstString(overlay.JWTIssuer, base.JWTIssuer),
		LogLevel:        firstString(overlay.LogLevel, base.LogLevel),
		HTTPBind:        firstString(overlay.HTTPBind, base.HTTPBind),
		HTTPPort:        firstInt(overlay.HTTPPort, base.HTTPPort),
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstString(overlay, base string) string {
	if s := strings.TrimSpace(overlay); s != "" {
		return s
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
