package main

import (
	"context"
	"fmt"

	"github.com/star/groundtrack/internal/config"
	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/kvstore"
	"github.com/star/groundtrack/internal/passes"
	"github.com/star/groundtrack/internal/propagation"
	"github.com/star/groundtrack/internal/tle"
)

// app is the wired set of components every command works with.
type app struct {
	store     kvstore.Store
	session   *groundtrack.Session
	cache     *tle.Cache
	predictor *passes.Predictor
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var source tle.Source
	switch cfg.SourceKind {
	case "file":
		source = tle.NewFileSource(cfg.SourcePath, logger)
	default:
		source = tle.NewFixedSource(logger)
	}

	var cache *tle.Cache
	if cfg.CacheDir != "" {
		cache = tle.NewCache(cfg.CacheDir, cfg.CacheMaxFiles)
	}

	lib := propagation.NewLibrary(logger)
	conv := groundtrack.NewConverter(lib, nil)
	sess := groundtrack.NewSession(source, conv, kvstore.NewWriter(store, logger), cache, logger)

	return &app{
		store:     store,
		session:   sess,
		cache:     cache,
		predictor: passes.NewPredictor(lib, groundtrack.GroundStation),
	}, nil
}

func openStore(ctx context.Context, cfg config.Config) (kvstore.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return kvstore.NewRedis(ctx, cfg.Redis)
	case "memory":
		return kvstore.NewMemory(), nil
	case "file":
		return kvstore.NewFile(cfg.StorePath), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("closing store", "error", err)
	}
}
