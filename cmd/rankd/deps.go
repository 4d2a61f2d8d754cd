package main

import (
	"context"
	"fmt"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/repository"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/adapters/source"
	"github.com/akashca-pro/codex-problem-service-sub000/internal/config"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
)

// openStore connects the configured ranking store.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rc := repository.DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		if cfg.RedisPoolSize > 0 {
			rc.PoolSize = cfg.RedisPoolSize
		}
		return repository.NewRedisStore(ctx, rc)
	case config.BackendMemory:
		return repository.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// openSource opens the submission store.
func openSource(cfg *config.Config, log logger.Logger) (*source.BadgerSource, error) {
	sc := source.InMemoryConfig()
	if !cfg.SourceInMemory {
		sc = source.DefaultConfig(cfg.SourcePath)
	}
	sc.Logger = log.Named("badger")
	return source.Open(sc)
}

// openAll opens the store and the source and returns a function closing both.
func openAll(ctx context.Context, env *runtimeEnv) (repository.Store, *source.BadgerSource, func(), error) {
	store, err := openStore(ctx, env.cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	src, err := openSource(env.cfg, env.log)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}
	closeAll := func() {
		if err := src.Close(); err != nil {
			env.log.Error(ctx, "close source", logger.Error(err))
		}
		if err := store.Close(); err != nil {
			env.log.Error(ctx, "close store", logger.Error(err))
		}
	}
	return store, src, closeAll, nil
}
