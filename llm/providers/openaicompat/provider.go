// =============================================================================
// strictgen OpenAI-Compatible Provider
// =============================================================================
// Generation backend over any OpenAI-compatible chat completions endpoint
// (OpenAI, DeepSeek, Qwen, local vLLM / Ollama gateways ...).
// =============================================================================

package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/strictgen/internal/tlsutil"
	"github.com/BaSui01/strictgen/llm"
	"github.com/BaSui01/strictgen/llm/providers"
	"go.uber.org/zap"
)

const (
	defaultName           = "openai-compatible"
	defaultTimeout        = 30 * time.Second
	defaultEndpointPath   = "/v1/chat/completions"
	defaultModelsEndpoint = "/v1/models"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName identifies the backend in logs and errors (e.g. "openai", "deepseek").
	ProviderName string

	APIKey string

	// BaseURL without the endpoint path, e.g. "https://api.openai.com".
	BaseURL string

	// DefaultModel is used when the request carries no model.
	DefaultModel string

	// FallbackModel is used when both the request and DefaultModel are empty.
	FallbackModel string

	// Timeout bounds a whole HTTP exchange. Defaults to 30s.
	Timeout time.Duration

	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string

	// ModelsEndpoint is probed by HealthCheck. Defaults to "/v1/models".
	ModelsEndpoint string

	// InsecureSkipVerify disables certificate verification (local gateways only).
	InsecureSkipVerify bool

	// BuildHeaders replaces the default "Authorization: Bearer <key>" headers.
	BuildHeaders func(req *http.Request, apiKey string)
}

func (c Config) withDefaults() Config {
	if c.ProviderName == "" {
		c.ProviderName = defaultName
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.EndpointPath == "" {
		c.EndpointPath = defaultEndpointPath
	}
	if c.ModelsEndpoint == "" {
		c.ModelsEndpoint = defaultModelsEndpoint
	}
	return c
}

// Provider implements llm.Provider against an OpenAI-compatible API.
type Provider struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger
}

// New creates a provider. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Provider {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("provider", cfg.ProviderName))

	client := tlsutil.SecureHTTPClient(cfg.Timeout)
	if cfg.InsecureSkipVerify {
		client = tlsutil.InsecureHTTPClient(cfg.Timeout)
		logger.Warn("TLS certificate verification disabled", zap.String("base_url", cfg.BaseURL))
	}
	return &Provider{Cfg: cfg, Client: client, Logger: logger}
}

func (p *Provider) Name() string { return p.Cfg.ProviderName }

// SetBuildHeaders overrides how auth headers are applied.
func (p *Provider) SetBuildHeaders(fn func(req *http.Request, apiKey string)) {
	p.Cfg.BuildHeaders = fn
}

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	if p.Cfg.BuildHeaders != nil {
		p.Cfg.BuildHeaders(req, apiKey)
		return
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
}

// send 发出一次 HTTP 请求。网络层失败映射为 errCode 的可重试 llm.Error，
// 调用方 context 结束时原样返回 ctx.Err()。
func (p *Provider) send(ctx context.Context, method, path string, body io.Reader, errCode llm.ErrorCode, errStatus int) (*http.Response, error) {
	url := strings.TrimRight(p.Cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(req, p.Cfg.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, p.transient(errCode, errStatus, err.Error())
	}
	return resp, nil
}

func (p *Provider) transient(code llm.ErrorCode, status int, msg string) *llm.Error {
	return &llm.Error{Code: code, Message: msg, HTTPStatus: status, Retryable: true, Provider: p.Name()}
}

// HealthCheck lists models; any non-200 answer marks the backend unhealthy.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	resp, err := p.send(ctx, http.MethodGet, p.Cfg.ModelsEndpoint, nil,
		llm.ErrProviderUnavailable, http.StatusServiceUnavailable)
	status := &llm.HealthStatus{Latency: time.Since(start)}
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return status, providers.MapHTTPError(resp.StatusCode,
			fmt.Sprintf("%s health check failed: status=%d msg=%s", p.Name(), resp.StatusCode, msg), p.Name())
	}
	status.Healthy = true
	return status, nil
}

// Completion performs a non-streaming chat completion and returns the raw reply.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &llm.Error{
			Code:       llm.ErrInvalidRequest,
			Message:    "chat request has no messages",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}

	model := providers.ChooseModel(req, p.Cfg.DefaultModel, p.Cfg.FallbackModel)
	payload, err := json.Marshal(providers.NewCompletionRequest(req, model))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	resp, err := p.send(ctx, http.MethodPost, p.Cfg.EndpointPath, bytes.NewReader(payload),
		llm.ErrUpstreamError, http.StatusBadGateway)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		p.Logger.Debug("completion rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("model", model),
			zap.String("message", msg))
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var wire providers.CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, p.transient(llm.ErrUpstreamError, http.StatusBadGateway, "decode completion: "+err.Error())
	}

	result := wire.ChatResponse(p.Name())
	p.Logger.Debug("completion finished",
		zap.String("model", result.Model),
		zap.String("trace_id", req.TraceID),
		zap.Int("total_tokens", result.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))
	return result, nil
}
