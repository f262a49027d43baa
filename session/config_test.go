package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, "temperature"},
		{"negative temperature", func(c *Config) { c.Temperature = -0.1 }, "temperature"},
		{"negative max tokens", func(c *Config) { c.MaxTokens = -1 }, "max_tokens"},
		{"zero concurrency", func(c *Config) { c.MaxConcurrent = 0 }, "max_concurrent"},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }, "requests_per_second"},
		{"rate without burst", func(c *Config) { c.RequestsPerSecond = 5; c.Burst = 0 }, "burst"},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, "request_timeout"},
		{"negative health retries", func(c *Config) { c.HealthCheckRetries = -1 }, "health_check_retries"},
		{"memory without window", func(c *Config) { c.Memory.Enabled = true; c.Memory.MaxMessages = 0 }, "memory.max_messages"},
		{"disabled memory skips checks", func(c *Config) { c.Memory.MaxMessages = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
