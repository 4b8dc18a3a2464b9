package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hpungsan/willow/internal/config"
	"github.com/hpungsan/willow/internal/db"
	"github.com/hpungsan/willow/internal/mcp"
	"github.com/hpungsan/willow/internal/ops"
	"github.com/hpungsan/willow/internal/pgstore"
	"github.com/hpungsan/willow/internal/session"
	"github.com/hpungsan/willow/internal/store"
	"github.com/hpungsan/willow/internal/swap"
)

// deps holds the wired components shared by every command.
type deps struct {
	core     *ops.Core
	sessions session.Backend
	cfg      *config.Config
	log      *zap.Logger

	closers []func()
}

// Close releases store and cache connections in reverse order of opening.
// It is safe to call more than once.
func (r *deps) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// newLogger builds a production logger on stderr at level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// openDeps opens the configured record store, session backend, and swap
// locker and wires them into an ops.Core.
func openDeps(ctx context.Context, baseDir string, cfg *config.Config, log *zap.Logger) (*deps, error) {
	rt := &deps{cfg: cfg, log: log}

	adapter, err := rt.openStore(ctx, baseDir)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var rdb redis.UniversalClient
	if cfg.LockBackend == "redis" || cfg.SessionBackend == "redis" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	var locker swap.Locker
	switch cfg.LockBackend {
	case "local":
		locker = swap.NewLocalLocker()
	case "redis":
		ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
		locker = swap.NewRedisLocker(rdb, ttl, log.Named("lock"))
	}

	switch cfg.SessionBackend {
	case "memory":
		rt.sessions = session.NewMemoryBackend()
	case "redis":
		ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
		rt.sessions = session.NewRedisBackend(rdb, ttl)
	default:
		rt.sessions = session.NewFileBackend(filepath.Join(baseDir, "sessions"))
	}

	rt.core = ops.New(adapter, ops.Options{
		TwoStepOnly: cfg.SwapMode == config.SwapModeTwoStep,
		Locker:      locker,
		Logger:      log,
	})
	log.Debug("runtime ready",
		zap.String("store", cfg.StoreDriver),
		zap.String("lock", cfg.LockBackend),
		zap.String("sessions", cfg.SessionBackend),
		zap.Bool("atomic_swap", rt.core.Swap.Atomic()))
	return rt, nil
}

func (r *deps) openStore(ctx context.Context, baseDir string) (store.Adapter, error) {
	switch r.cfg.StoreDriver {
	case "postgres":
		pool, err := pgstore.Open(ctx, r.cfg.PostgresDSN, pgOptions(r.cfg))
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, pool.Close)
		return pgstore.New(pool), nil
	default:
		database, err := db.Init(baseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		r.closers = append(r.closers, func() { _ = database.Close() })
		db.ConfigurePool(database, r.cfg)
		return db.NewStore(database), nil
	}
}

// warnUnknownTools logs disabled tool or type names the MCP server does not know.
func warnUnknownTools(r *deps) {
	if unknown := mcp.ValidateDisabledTools(r.cfg.DisabledTools); len(unknown) > 0 {
		r.log.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(r.cfg.DisabledTypes); len(unknown) > 0 {
		r.log.Warn("unknown types in disabled_types", zap.Strings("types", unknown))
	}
}

// pgOptions maps config onto the postgres pool. db_max_idle_conns is a
// database/sql ceiling with no pgxpool equivalent, so it is not used here.
func pgOptions(cfg *config.Config) pgstore.Options {
	return pgstore.Options{
		MaxConns: int32(cfg.DBMaxOpenConns),
		MinConns: int32(cfg.PGMinConns),
	}
}
