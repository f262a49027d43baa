package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/BaSui01/strictgen/api/handlers"
	"github.com/BaSui01/strictgen/config"
	"github.com/BaSui01/strictgen/generation"
	"github.com/BaSui01/strictgen/internal/idempotency"
	"github.com/BaSui01/strictgen/internal/metrics"
	"github.com/BaSui01/strictgen/internal/telemetry"
	"github.com/BaSui01/strictgen/internal/tlsutil"
	"github.com/BaSui01/strictgen/llm"
	"github.com/BaSui01/strictgen/llm/circuitbreaker"
	"github.com/BaSui01/strictgen/llm/providers/openaicompat"
	"github.com/BaSui01/strictgen/recipe"
	"github.com/BaSui01/strictgen/session"
)

// =============================================================================
// 🖥️ 应用装配
// =============================================================================

// application 持有进程级单例：唯一的后端会话、生成引擎、指标注册表
type application struct {
	cfg       *config.Config
	logger    *zap.Logger
	startedAt time.Time

	registry  *prometheus.Registry
	metrics   *metrics.Collector
	telemetry *telemetry.Providers
	redis     redis.UniversalClient
	session   *session.Session
	engine    *generation.Engine
	replay    idempotency.Store
	health    *handlers.HealthHandler
}

// newApp 按配置装配依赖；任何一步失败都会释放已创建的资源
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *application, err error) {
	a := &application{
		cfg:       cfg,
		logger:    logger,
		startedAt: time.Now(),
		registry:  prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.NewCollector("strictgen", a.registry, logger)

	a.telemetry, err = telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		// 遥测不可用不影响生成
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		a.telemetry, err = nil, nil
	}

	provider := openaicompat.New(openaicompat.Config{
		ProviderName:       cfg.Backend.Provider,
		APIKey:             cfg.Backend.APIKey,
		BaseURL:            cfg.Backend.BaseURL,
		DefaultModel:       cfg.Session.Model,
		FallbackModel:      cfg.Backend.FallbackModel,
		Timeout:            cfg.Backend.Timeout,
		InsecureSkipVerify: cfg.Backend.InsecureSkipVerify,
	}, logger)

	var (
		backend llm.Provider = provider
		breaker *circuitbreaker.Breaker
	)
	if cb := cfg.Backend.CircuitBreaker; cb.Enabled {
		breaker = circuitbreaker.New(circuitbreaker.Config{
			Threshold:        cb.Threshold,
			ResetTimeout:     cb.ResetTimeout,
			HalfOpenMaxCalls: cb.HalfOpenMaxCalls,
			OnStateChange: func(_, to circuitbreaker.State) {
				a.metrics.RecordBreakerTransition(provider.Name(), to.String())
			},
		}, logger)
		backend = circuitbreaker.Wrap(provider, breaker)
	}

	redisMemory := cfg.Session.Memory.Enabled && cfg.Session.Memory.Type == "redis"
	redisReplay := cfg.Server.IdempotencyTTL > 0 && cfg.Server.IdempotencyStore == "redis"
	if redisMemory || redisReplay {
		a.redis = newRedisClient(cfg.Redis)
		if err = a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	switch {
	case cfg.Server.IdempotencyTTL <= 0:
	case redisReplay:
		a.replay = idempotency.NewRedisStore(a.redis, "", logger)
	default:
		a.replay = idempotency.NewMemoryStore(0)
	}

	sessOpts := []session.Option{session.WithMetrics(a.metrics)}
	if redisMemory {
		key := cfg.Redis.KeyPrefix + uuid.NewString()
		sessOpts = append(sessOpts, session.WithMemory(
			session.NewRedisMemory(a.redis, key, cfg.Session.Memory.MaxMessages, cfg.Session.Memory.TTL),
		))
		logger.Info("redis session memory enabled", zap.String("key", key))
	}

	a.session, err = session.Open(ctx, cfg.SessionConfig(), backend, logger, sessOpts...)
	if err != nil {
		return nil, err
	}

	a.engine, err = generation.NewEngine(recipe.Schema(), recipe.Template, a.session, cfg.GenerationPolicy(),
		generation.WithLogger(logger),
		generation.WithMetrics(a.metrics),
		generation.WithTracerProvider(otel.GetTracerProvider()),
	)
	if err != nil {
		return nil, err
	}

	a.health = handlers.NewHealthHandler(logger)
	a.health.RegisterCheck(handlers.NewBackendHealthCheck(func(ctx context.Context) error {
		_, err := a.session.Ping(ctx)
		return err
	}))
	if a.redis != nil {
		a.health.RegisterCheck(handlers.NewRedisHealthCheck(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}))
	}
	if breaker != nil {
		a.health.RegisterCheck(handlers.NewFuncCheck("circuit_breaker", func(context.Context) error {
			if s := breaker.State(); s == circuitbreaker.StateOpen {
				return fmt.Errorf("backend circuit is %s", s)
			}
			return nil
		}))
	}

	return a, nil
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsutil.ClientConfig()
	}
	return redis.NewClient(opts)
}

// Close 关闭会话（重置记忆）、Redis 连接并刷新遥测数据
func (a *application) Close(ctx context.Context) error {
	var errs []error
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// router 构建完整的 HTTP 路由
func (a *application) router() http.Handler {
	opts := []handlers.ArtifactOption{
		handlers.WithGenerateTimeout(a.cfg.Server.GenerateTimeout),
		handlers.WithMaxBodyBytes(a.cfg.Server.MaxBodyBytes),
	}
	if a.replay != nil {
		opts = append(opts, handlers.WithIdempotency(a.replay, a.cfg.Server.IdempotencyTTL))
	}
	return newRouter(routerDeps{
		producer:     a.engine,
		health:       a.health,
		metrics:      a.metrics,
		gatherer:     a.registry,
		logger:       a.logger,
		startedAt:    a.startedAt,
		artifactOpts: opts,
	})
}

// =============================================================================
// 🌐 路由
// =============================================================================

type routerDeps struct {
	producer     handlers.Producer
	health       *handlers.HealthHandler
	metrics      *metrics.Collector
	gatherer     prometheus.Gatherer
	logger       *zap.Logger
	startedAt    time.Time
	artifactOpts []handlers.ArtifactOption
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		Recovery(d.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(d.metrics),
		RequestLogger(d.logger),
	)

	r.Get("/health", d.health.HandleHealth)
	r.Get("/healthz", d.health.HandleHealthz)
	r.Get("/ready", d.health.HandleReady)
	r.Get("/version", d.health.HandleVersion(Version, d.startedAt))
	r.Handle("/metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))

	artifacts := handlers.NewArtifactHandler(d.producer, d.logger, d.artifactOpts...)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/artifacts", artifacts.HandleCreate)
	})

	return r
}
