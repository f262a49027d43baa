package session

import (
	"errors"
	"fmt"
	"time"
)

// Config 会话参数：后端身份、生成参数、并发与限流、记忆窗口。
type Config struct {
	// Model 后端模型名称，为空时使用 Provider 默认模型
	Model string `yaml:"model" json:"model"`

	// Temperature 随机性，范围 [0, 2]
	Temperature float32 `yaml:"temperature" json:"temperature"`

	// MaxTokens 单次回复 token 上限，0 表示由后端决定
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// SystemPrompt 每次请求前置的系统消息，可为空
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`

	// JSONMode 请求后端使用 JSON 输出模式，只是提示，不替代校验
	JSONMode bool `yaml:"json_mode" json:"json_mode"`

	// MaxConcurrent 同时在途的后端请求数，1 表示完全串行
	MaxConcurrent int64 `yaml:"max_concurrent" json:"max_concurrent"`

	// RequestsPerSecond 令牌桶速率，0 表示不限流
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`

	// Burst 令牌桶容量
	Burst int `yaml:"burst" json:"burst"`

	// RequestTimeout 单次后端调用超时，0 表示只受调用方 context 约束
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// HealthCheckRetries 打开会话时健康检查的重试次数
	HealthCheckRetries int `yaml:"health_check_retries" json:"health_check_retries"`

	// HealthCheckTimeout 单次健康检查超时
	HealthCheckTimeout time.Duration `yaml:"health_check_timeout" json:"health_check_timeout"`

	// Memory 会话记忆窗口
	Memory MemoryConfig `yaml:"memory" json:"memory"`
}

// MemoryConfig 会话记忆配置。记忆只追加，仅在 Close 时重置。
type MemoryConfig struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	MaxMessages int  `yaml:"max_messages" json:"max_messages"`
	TokenLimit  int  `yaml:"token_limit" json:"token_limit"`
}

// DefaultConfig 返回默认会话配置
func DefaultConfig() Config {
	return Config{
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
			MaxMessages: 20,
			TokenLimit:  4000,
		},
	}
}

// Validate 校验会话配置
func (c Config) Validate() error {
	var errs []error
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2], got %v", c.Temperature))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be >= 0, got %d", c.MaxTokens))
	}
	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent must be >= 1, got %d", c.MaxConcurrent))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must be >= 0, got %v", c.RequestsPerSecond))
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		errs = append(errs, fmt.Errorf("burst must be >= 1 when rate limiting, got %d", c.Burst))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be >= 0, got %v", c.RequestTimeout))
	}
	if c.HealthCheckRetries < 0 {
		errs = append(errs, fmt.Errorf("health_check_retries must be >= 0, got %d", c.HealthCheckRetries))
	}
	if c.Memory.Enabled {
		if c.Memory.MaxMessages < 1 {
			errs = append(errs, fmt.Errorf("memory.max_messages must be >= 1, got %d", c.Memory.MaxMessages))
		}
		if c.Memory.TokenLimit < 0 {
			errs = append(errs, fmt.Errorf("memory.token_limit must be >= 0, got %d", c.Memory.TokenLimit))
		}
	}
	return errors.Join(errs...)
}
