package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/strictgen/internal/ctxkeys"
	"github.com/BaSui01/strictgen/internal/metrics"
	"github.com/BaSui01/strictgen/llm"
	"github.com/BaSui01/strictgen/llm/retry"
	"github.com/BaSui01/strictgen/llm/tokenizer"
	"github.com/BaSui01/strictgen/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Prompt 是发送给后端的编译结果。Session 只关心最终文本，不依赖 schema。
type Prompt interface {
	Text() string
}

// TextPrompt 是纯文本 Prompt。
type TextPrompt string

// Text 实现 Prompt
func (p TextPrompt) Text() string { return string(p) }

// Option 配置 Open 的可选项
type Option func(*options)

type options struct {
	memory      Memory
	tokenizer   tokenizer.Tokenizer
	healthRetry *retry.RetryPolicy
	metrics     *metrics.Collector
}

// WithMemory 指定记忆存储（例如 RedisMemory）；仅在 cfg.Memory.Enabled 时生效
func WithMemory(m Memory) Option {
	return func(o *options) { o.memory = m }
}

// WithTokenizer 覆盖按模型自动选择的分词器
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(o *options) { o.tokenizer = t }
}

// WithHealthCheckPolicy 覆盖健康检查的退避策略
func WithHealthCheckPolicy(p *retry.RetryPolicy) Option {
	return func(o *options) { o.healthRetry = p }
}

// WithMetrics 记录每次后端请求的结果与耗时
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// Session 持有唯一的后端句柄与生成参数，进程内共享。
// 所有并发调用经由同一个 Session，内部用信号量与令牌桶同步。
type Session struct {
	id        string
	cfg       Config
	provider  llm.Provider
	memory    Memory
	tokenizer tokenizer.Tokenizer
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
	logger    *zap.Logger
	metrics   *metrics.Collector

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open 校验配置并探活后端，返回可用的会话。
// 后端不可达或配置被拒绝时返回 types.ErrBackendUnavailable。
func Open(ctx context.Context, cfg Config, provider llm.Provider, logger *zap.Logger, opts ...Option) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if provider == nil {
		return nil, types.NewError(types.ErrBackendUnavailable, "no generation backend configured")
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.NewError(types.ErrBackendUnavailable, "session configuration rejected").
			WithCause(err).WithProvider(provider.Name())
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	logger = logger.With(
		zap.String("component", "session"),
		zap.String("session_id", id),
		zap.String("provider", provider.Name()),
	)

	if err := healthCheck(ctx, cfg, provider, o.healthRetry, logger); err != nil {
		return nil, err
	}

	s := &Session{
		id:        id,
		cfg:       cfg,
		provider:  provider,
		tokenizer: o.tokenizer,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:    logger,
		metrics:   o.metrics,
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	if cfg.Memory.Enabled {
		s.memory = o.memory
		if s.memory == nil {
			s.memory = NewBufferMemory(cfg.Memory.MaxMessages)
		}
		if s.tokenizer == nil {
			s.tokenizer = tokenizer.ForModel(cfg.Model)
		}
	}

	logger.Info("session opened",
		zap.String("model", cfg.Model),
		zap.Int64("max_concurrent", cfg.MaxConcurrent),
		zap.Bool("memory", cfg.Memory.Enabled),
	)
	return s, nil
}

// healthCheck 探活后端，瞬时失败按退避策略重试
func healthCheck(ctx context.Context, cfg Config, provider llm.Provider, policy *retry.RetryPolicy, logger *zap.Logger) error {
	if policy == nil {
		policy = retry.DefaultRetryPolicy()
		policy.MaxRetries = cfg.HealthCheckRetries
	}
	p := *policy
	p.RetryIf = isTransientBackendError
	retryer := retry.NewBackoffRetryer(&p, logger)

	status, err := retry.Value(ctx, retryer, func(ctx context.Context) (*llm.HealthStatus, error) {
		hctx := ctx
		if cfg.HealthCheckTimeout > 0 {
			var cancel context.CancelFunc
			hctx, cancel = context.WithTimeout(ctx, cfg.HealthCheckTimeout)
			defer cancel()
		}
		st, err := provider.HealthCheck(hctx)
		if err != nil {
			return nil, err
		}
		if st == nil || !st.Healthy {
			return nil, &llm.Error{
				Code:       llm.ErrProviderUnavailable,
				Message:    "backend reported unhealthy",
				HTTPStatus: http.StatusServiceUnavailable,
				Retryable:  true,
				Provider:   provider.Name(),
			}
		}
		return st, nil
	})
	if err != nil {
		logger.Error("backend health check failed", zap.Error(err))
		return types.NewError(types.ErrBackendUnavailable, "generation backend unreachable").
			WithCause(err).
			WithProvider(provider.Name()).
			WithHTTPStatus(http.StatusServiceUnavailable)
	}

	logger.Debug("backend healthy", zap.Duration("latency", status.Latency))
	return nil
}

func isTransientBackendError(err error) bool {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// ID 返回会话标识
func (s *Session) ID() string { return s.id }

// Config 返回会话配置副本
func (s *Session) Config() Config { return s.cfg }

// Generate 发送一次后端请求并返回原始文本。
//
// 错误语义：
//   - 会话已关闭：types.ErrBackendUnavailable
//   - 调用方 context 取消或超时：types.ErrTimeout（不可重试）
//   - 后端错误：types.ErrBackendRequest，Retryable 区分瞬时与永久错误
func (s *Session) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if s.closed.Load() {
		return "", types.NewError(types.ErrBackendUnavailable, "session is closed").WithProvider(s.provider.Name())
	}
	if prompt == nil {
		return "", types.NewError(types.ErrInvalidRequest, "prompt is required")
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", s.timeoutError(ctx, "waiting for a backend slot", err)
	}
	defer s.sem.Release(1)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", s.timeoutError(ctx, "waiting for rate limiter", err)
		}
	}

	text := prompt.Text()
	history := s.history(ctx)
	req := s.buildRequest(ctx, history, text)

	callCtx := ctx
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.provider.Completion(callCtx, req)
	if err != nil {
		mapped := s.mapError(ctx, err)
		s.metrics.RecordBackendRequest(s.provider.Name(), backendStatus(mapped), time.Since(start))
		return "", mapped
	}
	s.metrics.RecordBackendRequest(s.provider.Name(), "ok", time.Since(start))

	content, ok := resp.FirstContent()
	if !ok {
		return "", types.NewError(types.ErrBackendRequest, "backend returned no choices").
			WithRetryable(true).WithProvider(s.provider.Name()).WithHTTPStatus(http.StatusBadGateway)
	}

	s.logger.Debug("generation finished",
		zap.String("trace_id", req.TraceID),
		zap.Duration("latency", time.Since(start)),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	if s.memory != nil {
		if err := s.memory.Append(ctx,
			llm.Message{Role: llm.RoleUser, Content: text},
			llm.Message{Role: llm.RoleAssistant, Content: content},
		); err != nil {
			s.logger.Warn("failed to append conversation memory", zap.Error(err))
		}
	}
	return content, nil
}

// history 读取并按 token 预算裁剪记忆；读取失败时降级为无记忆请求
func (s *Session) history(ctx context.Context) []llm.Message {
	if s.memory == nil {
		return nil
	}
	msgs, err := s.memory.Messages(ctx)
	if err != nil {
		s.logger.Warn("failed to read conversation memory", zap.Error(err))
		return nil
	}
	return windowByTokens(msgs, s.tokenizer, s.cfg.Memory.TokenLimit)
}

func (s *Session) buildRequest(ctx context.Context, history []llm.Message, text string) *llm.ChatRequest {
	messages := make([]llm.Message, 0, len(history)+2)
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.cfg.SystemPrompt})
	}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	traceID, ok := ctxkeys.TraceID(ctx)
	if !ok {
		traceID = uuid.NewString()
	}
	req := &llm.ChatRequest{
		TraceID:     traceID,
		Model:       s.cfg.Model,
		Messages:    messages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Metadata:    map[string]string{"session_id": s.id},
	}
	if s.cfg.JSONMode {
		req.ResponseFormat = llm.ResponseFormatJSON
	}
	return req
}

// mapError 把后端原始错误翻译为 types.Error
func (s *Session) mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return s.timeoutError(ctx, "backend call aborted", err)
	}

	// 会话级请求超时：调用方仍在等待，视为瞬时错误
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrBackendRequest, "backend request timed out").
			WithCause(err).WithRetryable(true).
			WithProvider(s.provider.Name()).WithHTTPStatus(http.StatusGatewayTimeout)
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		s.logger.Warn("backend request failed",
			zap.String("code", string(llmErr.Code)),
			zap.Int("status", llmErr.HTTPStatus),
			zap.Bool("retryable", llmErr.Retryable),
		)
		return types.Errorf(types.ErrBackendRequest, "backend request failed (%s)", llmErr.Code).
			WithCause(err).
			WithRetryable(llmErr.Retryable).
			WithProvider(s.provider.Name()).
			WithHTTPStatus(llmErr.HTTPStatus)
	}

	s.logger.Warn("backend request failed", zap.Error(err))
	return types.NewError(types.ErrBackendRequest, "backend request failed").
		WithCause(err).WithProvider(s.provider.Name())
}

// backendStatus 将错误折叠为低基数的指标标签
func backendStatus(err error) string {
	switch {
	case types.IsCode(err, types.ErrTimeout):
		return "timeout"
	case types.IsRetryable(err):
		return "transient"
	default:
		return "permanent"
	}
}

func (s *Session) timeoutError(ctx context.Context, stage string, err error) error {
	cause := ctx.Err()
	if cause == nil {
		cause = err
	}
	return types.Errorf(types.ErrTimeout, "%s: deadline reached or request cancelled", stage).
		WithCause(cause).
		WithHTTPStatus(http.StatusGatewayTimeout)
}

// Close 释放后端连接并重置会话记忆；重复调用安全。
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		var errs []error
		if s.memory != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.memory.Reset(ctx); err != nil {
				errs = append(errs, fmt.Errorf("reset memory: %w", err))
			}
			cancel()
		}
		if closer, ok := s.provider.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close provider: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Info("session closed")
	})
	return s.closeErr
}

// Closed 报告会话是否已关闭
func (s *Session) Closed() bool { return s.closed.Load() }

// Ping 对后端做一次不重试的健康检查
func (s *Session) Ping(ctx context.Context) (*llm.HealthStatus, error) {
	if s.closed.Load() {
		return nil, types.NewError(types.ErrBackendUnavailable, "session is closed")
	}
	return s.provider.HealthCheck(ctx)
}
