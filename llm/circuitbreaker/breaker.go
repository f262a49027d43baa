package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/strictgen/llm"
	"go.uber.org/zap"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常转发）
	StateClosed State = iota
	// StateOpen 打开状态（直接拒绝）
	StateOpen
	// StateHalfOpen 半开状态（放行少量试探请求）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// Threshold 连续瞬时失败次数阈值
	Threshold int

	// ResetTimeout Open 持续多久后进入 HalfOpen
	ResetTimeout time.Duration

	// HalfOpenMaxCalls 半开状态下允许同时在途的试探请求数
	HalfOpenMaxCalls int

	// OnStateChange 状态变更回调，在持锁外同步调用
	OnStateChange func(from, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// 错误定义
var (
	ErrCircuitOpen            = errors.New("circuit breaker is open")
	ErrTooManyCallsInHalfOpen = errors.New("circuit breaker is half-open and probing")
)

// Breaker 保护单个后端：连续瞬时失败达到阈值后拒绝请求，冷却后试探恢复。
// 只有瞬时失败计入；永久错误（鉴权、格式、配额）说明后端是活的，
// 调用方自己取消的请求也不计入。
type Breaker struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCalls int
}

// New 创建熔断器，非法参数回落到默认值
func New(cfg Config, logger *zap.Logger) *Breaker {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "circuit_breaker")),
		now:    time.Now,
	}
}

// Do 在熔断器保护下执行 fn
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(ctx, err)
	return err
}

// State 返回当前状态；Open 超过冷却时间时报告 HalfOpen
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset 手动恢复到关闭状态
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.halfOpenCalls = 0
	b.mu.Unlock()

	b.logger.Info("circuit breaker reset", zap.Stringer("from", from))
	b.notify(from, StateClosed)
}

func (b *Breaker) before() error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.halfOpenCalls = 1
		b.mu.Unlock()
		b.logger.Info("circuit breaker half-open, probing backend")
		b.notify(StateOpen, StateHalfOpen)
		return nil
	case StateHalfOpen:
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			b.mu.Unlock()
			return ErrTooManyCallsInHalfOpen
		}
		b.halfOpenCalls++
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) after(ctx context.Context, err error) {
	switch {
	case err == nil:
		b.onSuccess()
	case ctx.Err() != nil:
		// 调用方取消，不能说明后端状态；释放半开名额
		b.mu.Lock()
		if b.state == StateHalfOpen && b.halfOpenCalls > 0 {
			b.halfOpenCalls--
		}
		b.mu.Unlock()
	case isTransient(err):
		b.onFailure()
	default:
		b.onSuccess()
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	from := b.state
	b.failures = 0
	b.state = StateClosed
	b.halfOpenCalls = 0
	b.mu.Unlock()

	if from != StateClosed {
		b.logger.Info("circuit breaker closed, backend recovered")
		b.notify(from, StateClosed)
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	from := b.state
	b.failures++
	opened := false
	if from == StateHalfOpen || b.failures >= b.cfg.Threshold {
		b.state = StateOpen
		b.openedAt = b.now()
		b.halfOpenCalls = 0
		opened = from != StateOpen
	}
	failures := b.failures
	b.mu.Unlock()

	if opened {
		b.logger.Warn("circuit breaker opened",
			zap.Int("consecutive_failures", failures),
			zap.Int("threshold", b.cfg.Threshold),
			zap.Stringer("from", from),
		)
		b.notify(from, StateOpen)
	}
}

func (b *Breaker) notify(from, to State) {
	if b.cfg.OnStateChange != nil && from != to {
		b.cfg.OnStateChange(from, to)
	}
}

// isTransient 只有可重试的后端错误与未分类的传输错误计入失败
func isTransient(err error) bool {
	var le *llm.Error
	if errors.As(err, &le) {
		return le.Retryable
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
