package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/internal/adapters/file"
	"github.com/aretw0/inquiry/internal/adapters/sqlite"
	"github.com/aretw0/inquiry/internal/config"
	"github.com/aretw0/inquiry/pkg/adapters/memory"
	"github.com/aretw0/inquiry/pkg/adapters/process"
	"github.com/aretw0/inquiry/pkg/adapters/redis"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/executor/scripted"
	"github.com/aretw0/inquiry/pkg/observability"
	"github.com/aretw0/inquiry/pkg/persistence/middleware"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Runtime bundles a pipeline with the resources it owns.
type Runtime struct {
	Pipeline *inquiry.Pipeline
	Store    ports.CheckpointStore
	Registry *prometheus.Registry

	closers []func() error
}

// Close stops the pipeline, then releases the store connections.
func (r *Runtime) Close() error {
	var errs []error
	if r.Pipeline != nil {
		errs = append(errs, r.Pipeline.Close())
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// Build wires a pipeline from configuration: store, middlewares, executors, metrics and
// logging hooks. Callers must Close the runtime.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Registry: prometheus.NewRegistry()}

	store, locker, err := rt.openStore(ctx, cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Store = store

	executors, err := LoadExecutors(cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	metrics, err := observability.NewMetrics(rt.Registry)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	opts := []inquiry.Option{
		inquiry.WithCheckpointStore(store),
		inquiry.WithLogger(logger),
		inquiry.WithLifecycleHooks(observability.Combine(metrics.Hooks(), observability.LogHooks(logger))),
		inquiry.WithPolicy(inquiry.Policy{
			FailureThreshold: cfg.Engine.FailureThreshold,
			Fallback:         cfg.Fallback(),
			MaxRevisions:     cfg.Engine.MaxRevisions,
		}),
		inquiry.WithMaxSteps(cfg.Engine.MaxSteps),
		inquiry.WithCompression(cfg.Compression.Threshold, cfg.Compression.KeepHead, cfg.Compression.KeepTail),
	}
	if locker != nil {
		opts = append(opts, inquiry.WithLocker(locker))
	}

	pipe, err := inquiry.New(executors, opts...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Pipeline = pipe
	return rt, nil
}

// OpenStore opens the configured store without building a pipeline, e.g. for session commands.
func OpenStore(ctx context.Context, cfg *config.Config) (ports.CheckpointStore, func() error, error) {
	rt := &Runtime{}
	store, _, err := rt.openStore(ctx, cfg)
	if err != nil {
		_ = rt.Close()
		return nil, nil, err
	}
	return store, rt.Close, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg *config.Config) (ports.CheckpointStore, ports.DistributedLocker, error) {
	var (
		store  ports.CheckpointStore
		locker ports.DistributedLocker
	)

	switch cfg.Store.Backend {
	case config.BackendMemory:
		store = memory.NewStore()
	case config.BackendFile:
		store = file.New(cfg.Store.Dir)
	case config.BackendRedis:
		rc := cfg.Store.Redis
		rs := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		if err := rs.Client().Ping(ctx).Err(); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", rc.Addr, err)
		}
		rt.closers = append(rt.closers, rs.Close)
		store = rs
		// Replicas sharing the redis store also share session claims.
		locker = redis.NewLocker(rs.Client(), rc.Prefix)
	case config.BackendSQLite:
		ss, err := sqlite.Open(ctx, cfg.Store.SQLite)
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, ss.Close)
		store = ss
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	// Masking runs before encryption so the sealed record never holds the raw text.
	var mws []middleware.Middleware
	if len(cfg.Store.MaskPatterns) > 0 {
		mw, err := middleware.NewPIIMiddleware(cfg.Store.MaskPatterns)
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.Store.EncryptionKey != "" {
		key, err := middleware.ParseKey(cfg.Store.EncryptionKey)
		if err != nil {
			return nil, nil, err
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), locker, nil
}

// LoadExecutors builds the step table from a script, a process config or the echo defaults.
// Process configs may cover only some steps; the rest echo.
func LoadExecutors(cfg *config.Config) (map[domain.StepID]ports.StepExecutor, error) {
	if cfg.Executors.Script != "" {
		script, err := scripted.Load(cfg.Executors.Script)
		if err != nil {
			return nil, err
		}
		return script.Executors(), nil
	}

	echo, err := scripted.Parse(nil)
	if err != nil {
		return nil, err
	}
	executors := echo.Executors()
	if cfg.Executors.Process == "" {
		return executors, nil
	}

	procs, err := process.LoadConfig(cfg.Executors.Process)
	if err != nil {
		return nil, err
	}
	baseDir := filepath.Dir(cfg.Executors.Process)
	for id, exec := range process.Executors(procs, process.WithBaseDir(baseDir)) {
		executors[id] = exec
	}
	return executors, nil
}
