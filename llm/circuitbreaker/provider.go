package circuitbreaker

import (
	"context"
	"errors"
	"net/http"

	"github.com/BaSui01/strictgen/llm"
)

// Provider 为 llm.Provider 加熔断保护。熔断打开时 Completion 立即返回
// 可重试的 ErrProviderUnavailable，由上层按瞬时错误退避重试。
// HealthCheck 不经过熔断器，探活始终直达后端。
type Provider struct {
	inner   llm.Provider
	breaker *Breaker
}

// Wrap 包装 Provider
func Wrap(p llm.Provider, b *Breaker) *Provider {
	return &Provider{inner: p, breaker: b}
}

// Name 返回被包装 Provider 的名称
func (p *Provider) Name() string { return p.inner.Name() }

// Breaker 返回使用的熔断器
func (p *Provider) Breaker() *Breaker { return p.breaker }

// HealthCheck 直接转发
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

// Completion 在熔断器保护下转发
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	var resp *llm.ChatResponse
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = p.inner.Completion(ctx, req)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyCallsInHalfOpen) {
		return nil, &llm.Error{
			Code:       llm.ErrProviderUnavailable,
			Message:    err.Error(),
			HTTPStatus: http.StatusServiceUnavailable,
			Retryable:  true,
			Provider:   p.inner.Name(),
		}
	}
	return resp, err
}

var _ llm.Provider = (*Provider)(nil)
