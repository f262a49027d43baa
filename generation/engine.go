package generation

import (
	"context"

	"github.com/BaSui01/strictgen/contract"
	"github.com/BaSui01/strictgen/internal/metrics"
	"github.com/BaSui01/strictgen/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option 配置 Engine
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics 设置 Prometheus 指标收集器
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithTracerProvider 为每次生成和每次尝试创建 span
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp.Tracer("github.com/BaSui01/strictgen/generation")
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), tracer: noopTracer}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(zap.String("component", "generation"))
	return o
}

// Engine 绑定 schema、指令模板、会话与重试策略，每次 ProduceArtifact
// 创建独立的 Controller。Engine 可被多个 goroutine 并发使用。
type Engine struct {
	compiler *contract.Compiler
	gen      Generator
	policy   Policy
	opts     options
}

// NewEngine 校验模板与策略。模板缺少占位符时返回 types.ErrTemplate。
func NewEngine(schema *contract.Schema, template string, gen Generator, policy Policy, opts ...Option) (*Engine, error) {
	if gen == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "engine requires a generator")
	}
	compiler, err := contract.NewCompiler(schema, template)
	if err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		compiler: compiler,
		gen:      gen,
		policy:   policy,
		opts:     buildOptions(opts),
	}, nil
}

// Schema 返回引擎使用的 schema
func (e *Engine) Schema() *contract.Schema { return e.compiler.Schema() }

// Policy 返回引擎的重试策略
func (e *Engine) Policy() Policy { return e.policy }

// ProduceArtifact 从一段自由文本描述生成一个经过校验的结构化对象。
// 结果永远非 nil；失败信息在 Outcome.Err 与 Outcome.Report 中。
func (e *Engine) ProduceArtifact(ctx context.Context, vibe string) *Outcome {
	return e.NewController().Run(ctx, vibe)
}

// NewController 创建一个新的单次生成控制器，便于观察状态转换
func (e *Engine) NewController() *Controller {
	return newController(uuid.NewString(), e.compiler, e.gen, e.policy, e.opts)
}

// ProduceArtifact 是一次性入口：编译模板、运行控制器并返回结果。
// 模板或策略不合法时返回 StatusFailed 的结果。
func ProduceArtifact(ctx context.Context, schema *contract.Schema, template string, gen Generator, policy Policy, vibe string, opts ...Option) *Outcome {
	engine, err := NewEngine(schema, template, gen, policy, opts...)
	if err != nil {
		typed, ok := types.AsError(err)
		if !ok {
			typed = types.NewError(types.ErrInternalError, "engine setup failed").WithCause(err)
		}
		return &Outcome{ID: uuid.NewString(), Status: StatusFailed, Err: typed}
	}
	return engine.ProduceArtifact(ctx, vibe)
}
