package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blockstreet/blockstreet/internal/config"
	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
	"github.com/blockstreet/blockstreet/internal/core/kv"
	"github.com/blockstreet/blockstreet/internal/core/store"
	"github.com/blockstreet/blockstreet/internal/observability"
	"github.com/blockstreet/blockstreet/internal/server/handlers"
)

// appRuntime holds the opened backends shared by serve and the CLI commands.
type appRuntime struct {
	Config  *config.Config
	Store   *store.Store
	Redis   *kv.RedisStorage
	Limiter *engine.RateLimiter
	Feed    *engine.FeedFetcher
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// openRuntime opens the store, and Redis when it backs the rate limit
// windows, then builds the limiter and feed fetcher over them.
func openRuntime(ctx context.Context, cfg *config.Config) (*appRuntime, error) {
	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt := &appRuntime{Config: cfg, Store: db}

	if usesRedis(cfg) {
		redisStorage, err := kv.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		rt.Redis = redisStorage
	}

	limiter, err := newLimiter(cfg, rt.windowStorage())
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Limiter = limiter
	if rt.Redis != nil {
		rt.Redis.TTL = longestWindow(limiter.Policies)
	}

	rt.Feed = &engine.FeedFetcher{
		Source:          db,
		Blocks:          db,
		Logger:          observability.Logger(),
		PostPageSize:    cfg.Feed.PostPageSize,
		CommentPageSize: cfg.Feed.CommentPageSize,
	}
	return rt, nil
}

func usesRedis(cfg *config.Config) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.Storage.Driver), config.StorageDriverRedis)
}

func newLimiter(cfg *config.Config, storage engine.KeyValueStorage) (*engine.RateLimiter, error) {
	policies, err := cfg.RateLimits.Resolve()
	if err != nil {
		return nil, err
	}
	limiter := engine.NewRateLimiter(storage, policies)
	limiter.Logger = observability.Logger()
	return limiter, nil
}

// longestWindow bounds how long an idle window key is worth keeping: past the
// longest policy window every timestamp in it has aged out.
func longestWindow(policies map[core.ActionType]core.RateLimitPolicy) time.Duration {
	var longest time.Duration
	for _, policy := range policies {
		if policy.Window > longest {
			longest = policy.Window
		}
	}
	return longest
}

// windowStorage returns the backend holding rate limit windows.
func (rt *appRuntime) windowStorage() engine.KeyValueStorage {
	if rt.Redis != nil {
		return rt.Redis
	}
	return rt.Store
}

// healthCheckers returns a ping per backend, keyed by check name.
func (rt *appRuntime) healthCheckers() map[string]handlers.HealthChecker {
	checks := map[string]handlers.HealthChecker{
		"store": handlers.CheckerFunc(func(ctx context.Context) error {
			if rt.Store == nil || rt.Store.DB == nil {
				return errors.New("store is not initialized")
			}
			return rt.Store.DB.PingContext(ctx)
		}),
	}
	if rt.Redis != nil {
		checks["redis"] = handlers.CheckerFunc(rt.Redis.Ping)
	}
	return checks
}

func (rt *appRuntime) Close() error {
	if rt == nil {
		return nil
	}
	var errs []error
	if rt.Redis != nil {
		errs = append(errs, rt.Redis.Close())
	}
	if rt.Store != nil {
		errs = append(errs, rt.Store.Close())
	}
	return errors.Join(errs...)
}

// withRuntime loads config, opens the runtime, runs fn and closes it.
func withRuntime(ctx context.Context, fn func(rt *appRuntime) error) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open backends: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil && observability.CLILogger != nil {
			observability.CLILogger.Warn("Closing backends failed", zap.Error(err))
		}
	}()
	return fn(rt)
}
