package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/playlist-overlap/internal/config"
	"github.com/Sternrassler/playlist-overlap/pkg/cache"
	"github.com/Sternrassler/playlist-overlap/pkg/client"
	"github.com/Sternrassler/playlist-overlap/pkg/compare"
	"github.com/Sternrassler/playlist-overlap/pkg/pagination"
	"github.com/Sternrassler/playlist-overlap/pkg/scope"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// scopeStore is a scope.Store that can also record grants.
type scopeStore interface {
	scope.Store
	Grant(ctx context.Context, callerID string, scopes ...string) error
	Revoke(ctx context.Context, callerID string) error
}

// app holds the wired dependencies of one CLI invocation.
type app struct {
	cfg     *config.Config
	redis   *redis.Client
	client  *client.Client
	store   scopeStore
	service *compare.Service
}

// newApp connects Redis and Postgres when configured and builds the
// comparison service on top of the catalog client.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	clientCfg := cfg.ClientConfig()
	clientCfg.Redis = a.redis
	c, err := client.New(clientCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create catalog client: %w", err)
	}
	a.client = c

	store, err := openScopeStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	var cacheManager *cache.Manager
	if a.redis != nil {
		cacheManager = cache.NewManager(a.redis, cfg.Redis.CacheTTL)
	}

	fetcher := pagination.NewFetcher(a.client, cfg.FetcherConfig())
	a.service = compare.NewService(scope.NewGate(a.store), fetcher, cacheManager, cfg.ServiceConfig())

	return a, nil
}

// openScopeStore returns the Postgres store when a DSN is set, otherwise an
// in-memory store seeded from the configured grants.
func openScopeStore(ctx context.Context, cfg *config.Config) (scopeStore, error) {
	if cfg.Postgres.DSN != "" {
		db, err := scope.NewPostgresConnection(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		return scope.NewPostgresStore(db), nil
	}

	store := scope.NewMemoryStore()
	for callerID, scopes := range cfg.Scope.Grants {
		if err := store.Grant(ctx, callerID, scopes...); err != nil {
			return nil, err
		}
	}
	log.Debug().Int("callers", len(cfg.Scope.Grants)).Msg("Using in-memory scope store")
	return store, nil
}

// Close releases every connection the app opened.
func (a *app) Close() error {
	var errs []error
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	if closer, ok := a.store.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
