package main

import (
	"context"
	"fmt"
	"time"

	"github.com/verte-zerg/factopia/internal/config"
	"github.com/verte-zerg/factopia/internal/kv"
	"github.com/verte-zerg/factopia/internal/logger"
	"github.com/verte-zerg/factopia/internal/progress"
	"github.com/verte-zerg/factopia/internal/questions"
	"github.com/verte-zerg/factopia/internal/settings"
	"github.com/verte-zerg/factopia/internal/stats"
	"github.com/verte-zerg/factopia/internal/store"
	"github.com/verte-zerg/factopia/internal/store/redisstore"
	"github.com/verte-zerg/factopia/internal/tui"
)

const (
	defaultRedisAddr = "localhost:6379"
	dialTimeout      = 3 * time.Second
)

// app holds the opened backends for one command invocation.
type app struct {
	cfg      config.FileConfig
	log      *logger.Logger
	kv       kv.Store
	history  *store.Store
	ledger   *progress.Ledger
	settings *settings.Settings
	bank     *questions.Bank
	closers  []func() error
}

// openApp loads config and opens storage. When a TUI will own the terminal
// logs go to a file.
func openApp(ctx context.Context, cfg config.FileConfig, dataDir string, passAccuracy int, tuiMode bool) (*app, error) {
	logPath := config.StringOr(cfg.Log.File, "")
	if tuiMode && logPath == "" {
		logPath = config.DefaultLogPath()
	}
	log, err := logger.New(config.StringOr(cfg.Log.Level, "warn"), logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	a.kv, a.history = a.openBackend(ctx, cfg.Store)
	a.ledger = progress.Load(ctx, a.kv,
		progress.WithLogger(log.With("component", "ledger")),
		progress.WithPassAccuracy(passAccuracy),
	)
	if err := a.ledger.Degraded(); err != nil {
		logErrf("warning: progress storage unavailable, playing without saving: %v\n", err)
	}
	a.settings = settings.Load(ctx, a.kv, log.With("component", "settings"))
	a.bank = questions.NewBank(dataDir, log.With("component", "questions"))
	return a, nil
}

// openBackend selects the configured store, falling back to memory when it
// cannot be opened.
func (a *app) openBackend(ctx context.Context, sc config.StoreConfig) (kv.Store, *store.Store) {
	backend := config.StringOr(sc.Backend, config.BackendSQLite)
	switch backend {
	case config.BackendMemory:
		return kv.NewMemory(), nil
	case config.BackendRedis:
		addr := config.StringOr(sc.RedisAddr, defaultRedisAddr)
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		rs, err := redisstore.Dial(dialCtx, addr, config.StringOr(sc.RedisPassword, ""), config.IntOr(sc.RedisDB, 0))
		if err != nil {
			a.fallback(backend, err)
			return kv.NewMemory(), nil
		}
		a.closers = append(a.closers, rs.Close)
		a.log.Debug("using redis store", "addr", addr)
		return rs, nil
	default:
		path := config.StringOr(sc.Path, config.DefaultDBPath())
		st, err := store.Open(path)
		if err != nil {
			a.fallback(backend, err)
			return kv.NewMemory(), nil
		}
		a.closers = append(a.closers, st.Close)
		a.log.Debug("using sqlite store", "path", path)
		return st, st
	}
}

func (a *app) fallback(backend string, err error) {
	logErrf("warning: failed to open %s store, progress will not be saved: %v\n", backend, err)
	a.log.Warn("store unavailable, using memory", "backend", backend, "error", err)
}

// runSource returns run history, or nil for backends without it.
func (a *app) runSource() stats.RunSource {
	if a.history == nil {
		return nil
	}
	return a.history
}

// recorder returns the run history writer, or nil.
func (a *app) recorder() tui.RunRecorder {
	if a.history == nil {
		return nil
	}
	return a.history
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logErrf("failed to close store: %v\n", err)
		}
	}
	a.log.Sync()
}
