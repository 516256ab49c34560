package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/vyrodovalexey/loangw/internal/auth/jwt"
	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/gateway"
	"github.com/vyrodovalexey/loangw/internal/observability"
	"github.com/vyrodovalexey/loangw/internal/ratelimit"
	"github.com/vyrodovalexey/loangw/internal/ratelimit/store"
	"github.com/vyrodovalexey/loangw/internal/secrets"
)

// application holds all application components.
type application struct {
	config  *config.GatewayConfig
	gateway *gateway.Gateway
	limiter *ratelimit.Limiter
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// initApplication builds every component from cfg. Components created
// before a failure are released.
func initApplication(ctx context.Context, cfg *config.GatewayConfig, logger observability.Logger) (*application, error) {
	app := &application{config: cfg}

	app.metrics = observability.NewMetrics()
	app.metrics.SetBuildInfo(version, gitCommit)

	tracer, err := initTracer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.tracer = tracer

	verifier, err := initVerifier(ctx, cfg, logger)
	if err != nil {
		app.release(ctx, logger)
		return nil, err
	}

	limiter, err := initLimiter(ctx, cfg.RateLimit, app.metrics, logger)
	if err != nil {
		app.release(ctx, logger)
		return nil, err
	}
	app.limiter = limiter

	gw, err := gateway.New(cfg,
		gateway.WithLogger(logger),
		gateway.WithMetrics(app.metrics),
		gateway.WithTracer(app.tracer),
		gateway.WithVerifier(verifier),
		gateway.WithLimiter(app.limiter),
	)
	if err != nil {
		app.release(ctx, logger)
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	app.gateway = gw

	return app, nil
}

// initTracer creates the OpenTelemetry tracer.
func initTracer(ctx context.Context, cfg *config.GatewayConfig) (*observability.Tracer, error) {
	t := cfg.Observability.Tracing
	tracer, err := observability.NewTracer(ctx, observability.TracerConfig{
		Enabled:      t.Enabled,
		ServiceName:  t.ServiceName,
		OTLPEndpoint: t.OTLPEndpoint,
		SamplingRate: t.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	return tracer, nil
}

// initVerifier resolves the signing key and builds the token verifier.
func initVerifier(ctx context.Context, cfg *config.GatewayConfig, logger observability.Logger) (*jwt.Verifier, error) {
	key, err := secrets.SigningKey(ctx, cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve signing key: %w", err)
	}

	verifier, err := jwt.NewVerifier(key, cfg.Auth.Algorithm, jwt.WithVerifierLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	return verifier, nil
}

// initLimiter builds the rate limiter and its store. It returns nil when
// rate limiting is disabled.
func initLimiter(
	ctx context.Context,
	rl config.RateLimitConfig,
	metrics *observability.Metrics,
	logger observability.Logger,
) (*ratelimit.Limiter, error) {
	if !rl.Enabled {
		logger.Info("rate limiting disabled")
		return nil, nil
	}

	s, err := initStore(ctx, rl, metrics, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("rate limiting enabled",
		observability.String("store", rl.Store),
		observability.Int("max_requests", rl.MaxRequests),
		observability.Duration("window", rl.Window.Duration()),
		observability.Bool("exact", rl.Exact),
	)
	return ratelimit.New(s, ratelimit.ConfigFrom(rl), ratelimit.WithLogger(logger)), nil
}

// initStore connects the configured store. With fallback enabled an
// unreachable Redis is tolerated at startup and requests are admitted by a
// local memory store until it recovers.
func initStore(
	ctx context.Context,
	rl config.RateLimitConfig,
	metrics *observability.Metrics,
	logger observability.Logger,
) (store.Store, error) {
	if rl.Store == config.StoreMemory {
		return store.NewMemoryStore(), nil
	}

	client, err := store.NewRedisClient(store.RedisOptions{
		URL:          rl.Redis.URL,
		PoolSize:     rl.Redis.PoolSize,
		DialTimeout:  rl.Redis.DialTimeout.Duration(),
		ReadTimeout:  rl.Redis.ReadTimeout.Duration(),
		WriteTimeout: rl.Redis.WriteTimeout.Duration(),
	})
	if err != nil {
		return nil, err
	}

	redisStore := store.NewRedisStore(client,
		store.WithRedisLogger(logger),
		store.WithRedisMetrics(metrics),
	)

	if err := store.WaitForRedis(ctx, redisStore, store.DefaultConnectOptions(), logger); err != nil {
		if !rl.Fallback.Enabled {
			_ = redisStore.Close()
			return nil, err
		}
		logger.Warn("redis unavailable at startup, rate limiting locally",
			observability.Error(err),
		)
	}

	if !rl.Fallback.Enabled {
		return redisStore, nil
	}

	return store.NewResilientStore(redisStore, nil,
		store.ResilientConfig{
			ConsecutiveFailures: rl.Fallback.ConsecutiveFailures,
			OpenTimeout:         rl.Fallback.OpenTimeout.Duration(),
		},
		store.WithResilientLogger(logger),
		store.WithResilientMetrics(metrics),
	), nil
}

// release closes what initApplication created so far.
func (a *application) release(ctx context.Context, logger observability.Logger) {
	var errs []error
	if a.limiter != nil {
		errs = append(errs, a.limiter.Close())
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		logger.Error("failed to release components", observability.Error(err))
	}
}
