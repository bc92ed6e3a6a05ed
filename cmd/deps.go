package cmd

import (
	"context"
	"fmt"

	"github.com/kyleking/docs2ddl/internal/cache"
	"github.com/kyleking/docs2ddl/internal/config"
	"github.com/kyleking/docs2ddl/internal/history"
	"github.com/kyleking/docs2ddl/internal/logging"
	"github.com/kyleking/docs2ddl/internal/source"
)

// initializeCache opens the listing cache configured in cfg
func initializeCache(cfg *config.Config) (*cache.FileCache, error) {
	fc, err := cache.NewFileCache(
		cfg.Cache.Directory,
		cfg.Cache.MaxSizeMB,
		cfg.Cache.ListingTTLDuration(),
		cfg.Cache.CleanupFrequency(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	return fc, nil
}

// initializeProvider creates the configured provider, decorated with the
// listing cache when caching is enabled. The returned closer releases the cache.
func initializeProvider(cfg *config.Config) (source.Provider, func(), error) {
	provider, err := source.New(cfg.Source)
	if err != nil {
		return nil, nil, err
	}

	if !cfg.Cache.Enabled {
		return provider, func() {}, nil
	}

	fc, err := initializeCache(cfg)
	if err != nil {
		logging.Warnf("Listing cache disabled: %v", err)
		return provider, func() {}, nil
	}

	closer := func() {
		if err := fc.Close(); err != nil {
			logging.Debugf("Failed to close cache: %v", err)
		}
	}

	return source.NewCachedProvider(provider, fc), closer, nil
}

// initializeHistory opens the generation history database
func initializeHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	store, err := history.NewDuckDBStore(cfg.History.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Initialize(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return store, nil
}
