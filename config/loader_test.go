// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strictgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_LoadFromFile(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://localhost:11434
  api_key: sk-file
session:
  model: llama3
  temperature: 0.2
  memory:
    enabled: true
    type: redis
generation:
  max_attempts: 5
  attempt_timeout: 45s
server:
  http_port: 9000
log:
  level: debug
  format: console
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.Backend.BaseURL)
	assert.Equal(t, "sk-file", cfg.Backend.APIKey)
	assert.Equal(t, "llama3", cfg.Session.Model)
	assert.Equal(t, 0.2, cfg.Session.Temperature)
	assert.True(t, cfg.Session.Memory.Enabled)
	assert.Equal(t, "redis", cfg.Session.Memory.Type)
	assert.Equal(t, 5, cfg.Generation.MaxAttempts)
	assert.Equal(t, 45*time.Second, cfg.Generation.AttemptTimeout)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "console", cfg.Log.Format)

	// 未出现在文件中的字段保留默认值
	assert.Equal(t, DefaultGenerationConfig().BackoffInitial, cfg.Generation.BackoffInitial)
	assert.Equal(t, DefaultRedisConfig().Addr, cfg.Redis.Addr)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_EmptyFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(writeConfig(t, "")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "generation:\n  max_attempt: 5\n")
	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempt")
}

func TestLoader_InvalidYAML(t *testing.T) {
	_, err := NewLoader().WithConfigPath(writeConfig(t, "server: [unclosed")).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "generation:\n  max_attempts: 5\n")
	t.Setenv("STRICTGEN_GENERATION_MAX_ATTEMPTS", "7")
	t.Setenv("STRICTGEN_BACKEND_API_KEY", "sk-env")
	t.Setenv("STRICTGEN_SESSION_REQUEST_TIMEOUT", "90s")
	t.Setenv("STRICTGEN_SESSION_MEMORY_ENABLED", "true")
	t.Setenv("STRICTGEN_LOG_OUTPUT_PATHS", "stdout, /tmp/strictgen.log")
	t.Setenv("STRICTGEN_SESSION_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("STRICTGEN_BACKEND_CIRCUIT_BREAKER_RESET_TIMEOUT", "45s")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Generation.MaxAttempts)
	assert.Equal(t, "sk-env", cfg.Backend.APIKey)
	assert.Equal(t, 90*time.Second, cfg.Session.RequestTimeout)
	assert.True(t, cfg.Session.Memory.Enabled)
	assert.Equal(t, []string{"stdout", "/tmp/strictgen.log"}, cfg.Log.OutputPaths)
	assert.Equal(t, 2.5, cfg.Session.RequestsPerSecond)
	assert.Equal(t, 45*time.Second, cfg.Backend.CircuitBreaker.ResetTimeout)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MIXOLOGIST_SERVER_HTTP_PORT", "9999")

	cfg, err := NewLoader().WithEnvPrefix("MIXOLOGIST").Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
}

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestLoader_WithLookup(t *testing.T) {
	env := map[string]string{
		"STRICTGEN_SESSION_MODEL":     "llama3:8b",
		"STRICTGEN_SESSION_JSON_MODE": "true",
		"STRICTGEN_REDIS_DB":          "3",
		"STRICTGEN_SESSION_BURST":     "",
	}
	cfg, err := NewLoader().WithLookup(mapLookup(env)).Load()
	require.NoError(t, err)
	assert.Equal(t, "llama3:8b", cfg.Session.Model)
	assert.True(t, cfg.Session.JSONMode)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, DefaultSessionConfig().Burst, cfg.Session.Burst, "empty values are ignored")
}

func TestLoader_ReportsEveryBadEnvValue(t *testing.T) {
	env := map[string]string{
		"STRICTGEN_SERVER_HTTP_PORT":        "eighty",
		"STRICTGEN_SESSION_REQUEST_TIMEOUT": "soon",
	}
	_, err := NewLoader().WithLookup(mapLookup(env)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRICTGEN_SERVER_HTTP_PORT")
	assert.Contains(t, err.Error(), "STRICTGEN_SESSION_REQUEST_TIMEOUT")
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	tests := map[string]string{
		"STRICTGEN_SERVER_HTTP_PORT":              "eighty",
		"STRICTGEN_GENERATION_ATTEMPT_TIMEOUT":    "soon",
		"STRICTGEN_TELEMETRY_ENABLED":             "maybe",
		"STRICTGEN_GENERATION_BACKOFF_MULTIPLIER": "x2",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := NewLoader().Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoader_Validators(t *testing.T) {
	t.Setenv("STRICTGEN_GENERATION_MAX_ATTEMPTS", "0")

	_, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation.max_attempts")

	// 未注册校验器时照常加载
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Generation.MaxAttempts)
}

func TestMustLoad_Panics(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 0\n")
	assert.Panics(t, func() { MustLoad(path) })
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing base url", mutate: func(c *Config) { c.Backend.BaseURL = " " }, wantErr: "backend.base_url"},
		{name: "breaker threshold", mutate: func(c *Config) { c.Backend.CircuitBreaker.Threshold = 0 }, wantErr: "backend.circuit_breaker.threshold"},
		{name: "disabled breaker ignores threshold", mutate: func(c *Config) {
			c.Backend.CircuitBreaker.Enabled = false
			c.Backend.CircuitBreaker.Threshold = 0
		}},
		{name: "bad temperature", mutate: func(c *Config) { c.Session.Temperature = 3 }, wantErr: "temperature"},
		{name: "bad memory type", mutate: func(c *Config) { c.Session.Memory.Type = "vector" }, wantErr: "session.memory.type"},
		{name: "redis memory without addr", mutate: func(c *Config) {
			c.Session.Memory.Enabled = true
			c.Session.Memory.Type = "redis"
			c.Redis.Addr = ""
		}, wantErr: "redis.addr"},
		{name: "zero attempts", mutate: func(c *Config) { c.Generation.MaxAttempts = 0 }, wantErr: "generation.max_attempts"},
		{name: "backoff inverted", mutate: func(c *Config) { c.Generation.BackoffMax = time.Millisecond }, wantErr: "generation.backoff_max"},
		{name: "bad idempotency store", mutate: func(c *Config) { c.Server.IdempotencyStore = "etcd" }, wantErr: "server.idempotency_store"},
		{name: "bad port", mutate: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: "server.http_port"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "chatty" }, wantErr: "log.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "bad sample rate", mutate: func(c *Config) { c.Telemetry.SampleRate = 1.5 }, wantErr: "telemetry.sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Generation.MaxAttempts = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.http_port")
	assert.Contains(t, err.Error(), "generation.max_attempts")
}

// --- 转换测试 ---

func TestConfig_SessionConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.Temperature = 0.25
	cfg.Session.Memory.Enabled = true
	cfg.Session.JSONMode = true

	sc := cfg.SessionConfig()
	assert.Equal(t, float32(0.25), sc.Temperature)
	assert.Equal(t, cfg.Session.Model, sc.Model)
	assert.Equal(t, cfg.Session.MaxConcurrent, sc.MaxConcurrent)
	assert.True(t, sc.Memory.Enabled)
	assert.True(t, sc.JSONMode)
	assert.Equal(t, cfg.Session.Memory.MaxMessages, sc.Memory.MaxMessages)
	require.NoError(t, sc.Validate())
}

func TestConfig_GenerationPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generation.MaxAttempts = 4
	cfg.Generation.AttemptTimeout = 10 * time.Second

	p := cfg.GenerationPolicy()
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 10*time.Second, p.AttemptTimeout)
	require.NotNil(t, p.Backoff)
	assert.Equal(t, cfg.Generation.BackoffInitial, p.Backoff.InitialDelay)
	assert.Equal(t, cfg.Generation.BackoffMax, p.Backoff.MaxDelay)
	assert.True(t, p.Backoff.Jitter)
	require.NoError(t, p.Validate())
}
