package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/strictgen/generation"
	"github.com/BaSui01/strictgen/llm/retry"
	"github.com/BaSui01/strictgen/session"
	"go.uber.org/zap/zapcore"
)

// Validate 校验配置，一次返回所有问题
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		add("backend.base_url is required")
	}
	if c.Backend.Timeout < 0 {
		add("backend.timeout must be >= 0")
	}
	if cb := c.Backend.CircuitBreaker; cb.Enabled {
		if cb.Threshold < 1 {
			add("backend.circuit_breaker.threshold must be >= 1")
		}
		if cb.ResetTimeout <= 0 {
			add("backend.circuit_breaker.reset_timeout must be > 0")
		}
		if cb.HalfOpenMaxCalls < 1 {
			add("backend.circuit_breaker.half_open_max_calls must be >= 1")
		}
	}

	if err := c.SessionConfig().Validate(); err != nil {
		add("session: %w", err)
	}
	switch c.Session.Memory.Type {
	case "", "buffer", "redis":
	default:
		add("session.memory.type must be buffer or redis, got %q", c.Session.Memory.Type)
	}
	if c.Session.Memory.Enabled && c.Session.Memory.Type == "redis" && c.Redis.Addr == "" {
		add("redis.addr is required when session.memory.type is redis")
	}

	if err := c.GenerationPolicy().Validate(); err != nil {
		add("generation.max_attempts must be >= 1 and generation.attempt_timeout >= 0")
	}
	if c.Generation.BackoffMultiplier < 1 {
		add("generation.backoff_multiplier must be >= 1")
	}
	if c.Generation.BackoffMax < c.Generation.BackoffInitial {
		add("generation.backoff_max must be >= generation.backoff_initial")
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		add("server.http_port must be in 1..65535, got %d", c.Server.HTTPPort)
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes must be positive")
	}
	if c.Server.IdempotencyTTL < 0 {
		add("server.idempotency_ttl must be >= 0")
	}
	switch c.Server.IdempotencyStore {
	case "", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			add("redis.addr is required when server.idempotency_store is redis")
		}
	default:
		add("server.idempotency_store must be memory or redis, got %q", c.Server.IdempotencyStore)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		add("log.format must be json or console, got %q", c.Log.Format)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		add("telemetry.sample_rate must be between 0 and 1")
	}

	return errors.Join(errs...)
}

// SessionConfig 转换为 session.Config
func (c *Config) SessionConfig() session.Config {
	s := c.Session
	return session.Config{
		Model:              s.Model,
		Temperature:        float32(s.Temperature),
		MaxTokens:          s.MaxTokens,
		SystemPrompt:       s.SystemPrompt,
		JSONMode:           s.JSONMode,
		MaxConcurrent:      s.MaxConcurrent,
		RequestsPerSecond:  s.RequestsPerSecond,
		Burst:              s.Burst,
		RequestTimeout:     s.RequestTimeout,
		HealthCheckRetries: s.HealthCheckRetries,
		HealthCheckTimeout: s.HealthCheckTimeout,
		Memory: session.MemoryConfig{
			Enabled:     s.Memory.Enabled,
			MaxMessages: s.Memory.MaxMessages,
			TokenLimit:  s.Memory.TokenLimit,
		},
	}
}

// GenerationPolicy 转换为 generation.Policy
func (c *Config) GenerationPolicy() generation.Policy {
	g := c.Generation
	return generation.Policy{
		MaxAttempts:    g.MaxAttempts,
		AttemptTimeout: g.AttemptTimeout,
		Backoff: &retry.RetryPolicy{
			InitialDelay: g.BackoffInitial,
			MaxDelay:     g.BackoffMax,
			Multiplier:   g.BackoffMultiplier,
			Jitter:       g.Jitter,
		},
	}
}
