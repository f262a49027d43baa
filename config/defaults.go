// =============================================================================
// 📦 strictgen 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Backend:    DefaultBackendConfig(),
		Session:    DefaultSessionConfig(),
		Generation: DefaultGenerationConfig(),
		Redis:      DefaultRedisConfig(),
		Server:     DefaultServerConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultBackendConfig 返回默认后端配置
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Provider:      "openai",
		BaseURL:       "https://api.openai.com",
		FallbackModel: "gpt-4o-mini",
		Timeout:       60 * time.Second,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			Threshold:        5,
			ResetTimeout:     30 * time.Second,
			HalfOpenMaxCalls: 1,
		},
	}
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:              "gpt-4o-mini",
		SystemPrompt:       "You are a precise assistant that replies with a single JSON object.",
		Temperature:        0.7,
		MaxTokens:          1024,
		MaxConcurrent:      4,
		RequestsPerSecond:  0,
		Burst:              1,
		RequestTimeout:     60 * time.Second,
		HealthCheckRetries: 2,
		HealthCheckTimeout: 10 * time.Second,
		Memory: MemoryConfig{
			Enabled:     false,
			Type:        "buffer",
			MaxMessages: 20,
			TokenLimit:  4000,
			TTL:         24 * time.Hour,
		},
	}
}

// DefaultGenerationConfig 返回默认重试控制配置
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxAttempts:       3,
		AttemptTimeout:    0,
		BackoffInitial:    500 * time.Millisecond,
		BackoffMax:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "strictgen:memory:",
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:         8080,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     3 * time.Minute,
		ShutdownTimeout:  15 * time.Second,
		GenerateTimeout:  2 * time.Minute,
		MaxBodyBytes:     64 << 10,
		IdempotencyTTL:   24 * time.Hour,
		IdempotencyStore: "memory",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "strictgen",
		SampleRate:   0.1,
		Insecure:     true,
	}
}
