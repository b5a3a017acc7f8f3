package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/internal/config"
	"github.com/aretw0/flowgraph/internal/tools"
	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/adapters/process"
	"github.com/aretw0/flowgraph/pkg/adapters/redis"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/observability"
	"github.com/aretw0/flowgraph/pkg/persistence/middleware"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/aretw0/flowgraph/pkg/registry"
)

// app bundles an engine with the resources that must be released on exit.
type app struct {
	engine  *flowgraph.Engine
	closers []func() error
}

// Close waits for background runs, then releases stores.
func (a *app) Close() error {
	if a.engine != nil {
		a.engine.Wait()
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// buildApp wires an engine from cfg. Extra hooks (metrics, streams) are
// combined with run logging.
func buildApp(cfg config.Config, logger *slog.Logger, hooks ...domain.LifecycleHooks) (*app, error) {
	reg, err := buildRegistry(cfg.Engine)
	if err != nil {
		return nil, err
	}

	a := &app{}
	var store ports.RunStore
	switch cfg.Store.Backend {
	case config.BackendRedis:
		rc := cfg.Store.Redis
		rs := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		a.closers = append(a.closers, rs.Close)
		store = rs
		logger.Info("using redis run store", "addr", rc.Addr, "prefix", rc.Prefix)
	default:
		store = memory.NewRunStore()
	}

	store, err = wrapStore(store, cfg.Store)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	hooks = append([]domain.LifecycleHooks{observability.LoggingHooks(logger)}, hooks...)
	engine, err := flowgraph.New(
		flowgraph.WithRegistry(reg),
		flowgraph.WithRunStore(store),
		flowgraph.WithLogger(logger),
		flowgraph.WithLifecycleHooks(domain.Combine(hooks...)),
		flowgraph.WithMaxIterations(cfg.Engine.MaxIterations),
		flowgraph.WithMaxConcurrentRuns(cfg.Engine.MaxConcurrentRuns),
	)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	a.engine = engine
	return a, nil
}

// wrapStore applies redaction, then encryption, to everything the engine persists.
func wrapStore(store ports.RunStore, sc config.StoreConfig) (ports.RunStore, error) {
	var mws []middleware.Middleware
	if len(sc.RedactKeys) > 0 {
		pii, err := middleware.NewPIIMiddleware(sc.RedactKeys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if sc.EncryptionKey != "" {
		key, err := middleware.DecodeKey(sc.EncryptionKey)
		if err != nil {
			return nil, err
		}
		encCfg := middleware.EncryptionConfig{ActiveKey: key}
		for _, fk := range sc.EncryptionFallbackKeys {
			old, err := middleware.DecodeKey(fk)
			if err != nil {
				return nil, fmt.Errorf("fallback key: %w", err)
			}
			encCfg.FallbackKeys = append(encCfg.FallbackKeys, old)
		}
		enc, err := middleware.NewEncryptionMiddleware(encCfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), nil
}

// buildRegistry registers the built-in tools, then the process tools file.
func buildRegistry(ec config.EngineConfig) (*registry.Registry, error) {
	reg := registry.New(registry.WithStrict(ec.StrictTools))
	if err := tools.RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	if ec.ToolsFile == "" {
		return reg, nil
	}

	procs, err := process.LoadTools(ec.ToolsFile)
	if err != nil {
		return nil, err
	}
	runner := process.NewRunner(
		process.WithRegistry(procs),
		process.WithBaseDir(filepath.Dir(ec.ToolsFile)),
	)
	if err := runner.RegisterInto(reg); err != nil {
		return nil, fmt.Errorf("failed to register process tools: %w", err)
	}
	return reg, nil
}
