package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/strictgen/contract"
	"github.com/BaSui01/strictgen/internal/ctxkeys"
	"github.com/BaSui01/strictgen/internal/metrics"
	"github.com/BaSui01/strictgen/session"
	"github.com/BaSui01/strictgen/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Generator 是 Controller 依赖的后端能力，*session.Session 满足该接口
type Generator interface {
	Generate(ctx context.Context, prompt session.Prompt) (string, error)
}

// Controller 驱动一次生成的状态机：编译 → 请求 → 校验 → 成功 | 重试，
// 重试在预算耗尽时进入 Exhausted。永久后端错误或超时进入 Failed。
// 每个 Controller 只能运行一次。
type Controller struct {
	id       string
	compiler *contract.Compiler
	gen      Generator
	policy   Policy
	logger   *zap.Logger
	metrics  *metrics.Collector
	tracer   trace.Tracer

	mu          sync.Mutex
	state       Status
	transitions []Status
	started     bool
}

// NewController 创建单次生成的控制器
func NewController(compiler *contract.Compiler, gen Generator, policy Policy, opts ...Option) (*Controller, error) {
	if compiler == nil || gen == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "controller requires a compiler and a generator")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return newController(uuid.NewString(), compiler, gen, policy, o), nil
}

func newController(id string, compiler *contract.Compiler, gen Generator, policy Policy, o options) *Controller {
	return &Controller{
		id:       id,
		compiler: compiler,
		gen:      gen,
		policy:   policy,
		logger:   o.logger.With(zap.String("generation_id", id)),
		metrics:  o.metrics,
		tracer:   o.tracer,
		state:    StatusCompiling,
	}
}

// ID 返回本次生成的标识
func (c *Controller) ID() string { return c.id }

// State 返回当前状态
func (c *Controller) State() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transitions 返回经历过的全部状态（含初始状态）
func (c *Controller) Transitions() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Status, len(c.transitions))
	copy(out, c.transitions)
	return out
}

func (c *Controller) enter(to Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.transitions) > 0 && !CanTransition(c.state, to) {
		// 状态表与 Run 的实现不一致属于编程错误
		panic(ErrInvalidTransition{From: c.state, To: to})
	}
	c.state = to
	c.transitions = append(c.transitions, to)
}

// Run 执行状态机直到终态。重复调用返回 INVALID_REQUEST 的失败结果。
func (c *Controller) Run(ctx context.Context, userInput string) *Outcome {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return &Outcome{
			ID:     c.id,
			Status: StatusFailed,
			Err:    types.NewError(types.ErrInvalidRequest, "controller has already run"),
		}
	}
	c.started = true
	c.mu.Unlock()

	start := time.Now()
	ctx = ctxkeys.WithRequestID(ctx, c.id)
	ctx, span := c.tracer.Start(ctx, "generation.produce_artifact",
		trace.WithAttributes(
			attribute.String("generation.id", c.id),
			attribute.Int("generation.max_attempts", c.policy.MaxAttempts),
		))
	defer span.End()

	out := c.run(ctx, userInput)
	out.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("generation.status", string(out.Status)),
		attribute.Int("generation.attempts", out.Attempts),
	)
	if out.Status == StatusFailed && out.Err != nil {
		span.SetStatus(codes.Error, out.Err.Error())
	}

	c.metrics.RecordGeneration(string(out.Status), out.Attempts, out.Duration)
	c.logger.Info("generation finished",
		zap.String("status", string(out.Status)),
		zap.Int("attempts", out.Attempts),
		zap.Duration("duration", out.Duration),
	)
	return out
}

func (c *Controller) run(ctx context.Context, userInput string) *Outcome {
	out := &Outcome{ID: c.id}
	var violations []contract.Violation
	var lastBackendErr *types.Error

	for attempt := 1; ; attempt++ {
		c.enter(StatusCompiling)
		req := c.compiler.Compile(userInput, violations)

		if err := ctx.Err(); err != nil {
			c.enter(StatusFailed)
			return c.fail(out, timeoutError(err))
		}

		c.enter(StatusRequesting)
		out.Attempts = attempt
		record := AttemptRecord{Attempt: attempt, Repair: req.IsRepair(), StartedAt: time.Now()}

		raw, err := c.request(ctx, attempt, req)
		record.Duration = time.Since(record.StartedAt)

		if err != nil {
			typed, result := c.classify(ctx, err)
			record.Result = result
			record.Error = typed.Error()
			out.History = append(out.History, record)
			c.metrics.RecordAttempt(string(result))

			if result != ResultTransientError {
				c.logger.Warn("backend failed permanently",
					zap.Int("attempt", attempt),
					zap.String("result", string(result)),
					zap.Error(typed),
				)
				c.enter(StatusFailed)
				return c.fail(out, typed)
			}

			lastBackendErr = typed
			if attempt >= c.policy.MaxAttempts {
				c.enter(StatusFailed)
				return c.fail(out, types.Errorf(types.ErrBackendRequest,
					"backend still failing after %d attempts", attempt).
					WithCause(lastBackendErr).
					WithRetryable(true).
					WithHTTPStatus(http.StatusBadGateway))
			}

			c.enter(StatusRetrying)
			c.logger.Info("transient backend error, backing off",
				zap.Int("attempt", attempt),
				zap.Error(typed),
			)
			if werr := c.policy.Backoff.Wait(ctx, attempt); werr != nil {
				c.enter(StatusFailed)
				return c.fail(out, timeoutError(werr))
			}
			// 保留上一次校验的违规，下一次请求继续携带
			continue
		}

		c.enter(StatusValidating)
		report := contract.Validate(c.compiler.Schema(), raw)
		out.Report = report
		record.RawResponse = raw
		record.Violations = report.Violations

		if report.Succeeded {
			record.Result = ResultValid
			out.History = append(out.History, record)
			c.metrics.RecordAttempt(string(ResultValid))
			c.enter(StatusSucceeded)
			out.Status = StatusSucceeded
			out.Value = report.Value
			return out
		}

		record.Result = ResultInvalid
		out.History = append(out.History, record)
		c.metrics.RecordAttempt(string(ResultInvalid))
		for _, v := range report.Violations {
			c.metrics.RecordViolation(v.Field, string(v.Kind))
		}
		c.logger.Info("response violated contract",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.policy.MaxAttempts),
			zap.Strings("violations", report.Descriptions()),
		)

		c.enter(StatusRetrying)
		if attempt >= c.policy.MaxAttempts {
			c.enter(StatusExhausted)
			out.Status = StatusExhausted
			out.Err = types.Errorf(types.ErrValidationExhausted,
				"no valid artifact after %d attempts", attempt).
				WithHTTPStatus(http.StatusUnprocessableEntity)
			return out
		}

		violations = report.Violations
	}
}

// request 发起一次后端调用，附带追踪信息与单次尝试超时
func (c *Controller) request(ctx context.Context, attempt int, req contract.GenerationRequest) (string, error) {
	ctx = ctxkeys.WithAttempt(ctx, attempt)
	ctx = ctxkeys.WithTraceID(ctx, fmt.Sprintf("%s-%d", c.id, attempt))
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "generation.attempt",
		trace.WithAttributes(
			attribute.Int("generation.attempt", attempt),
			attribute.Bool("generation.repair", req.IsRepair()),
			attribute.Int("generation.previous_violations", len(req.PreviousViolations)),
		))
	defer span.End()

	raw, err := c.gen.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend request failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("generation.response_bytes", len(raw)))
	return raw, nil
}

// classify 把后端错误归一为 *types.Error 并判定尝试结果。
// 调用方 context 结束时为终态超时；仅单次尝试超时则按瞬时错误处理。
func (c *Controller) classify(ctx context.Context, err error) (*types.Error, AttemptResult) {
	if ctx.Err() != nil {
		if typed, ok := types.AsError(err); ok && typed.Code == types.ErrTimeout {
			return typed, ResultTimeout
		}
		return timeoutError(ctx.Err()), ResultTimeout
	}
	if types.IsCode(err, types.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return types.Errorf(types.ErrBackendRequest, "attempt exceeded %v", c.policy.AttemptTimeout).
			WithCause(err).
			WithRetryable(true).
			WithHTTPStatus(http.StatusGatewayTimeout), ResultTransientError
	}

	typed, ok := types.AsError(err)
	if !ok {
		typed = types.NewError(types.ErrBackendRequest, "backend request failed").WithCause(err)
	}
	if typed.Retryable {
		return typed, ResultTransientError
	}
	return typed, ResultPermanentError
}

func (c *Controller) fail(out *Outcome, err *types.Error) *Outcome {
	out.Status = StatusFailed
	out.Err = err
	return out
}

func timeoutError(cause error) *types.Error {
	return types.NewError(types.ErrTimeout, "generation deadline reached or request cancelled").
		WithCause(cause).
		WithHTTPStatus(http.StatusGatewayTimeout)
}

// noopTracer 在未配置 TracerProvider 时使用
var noopTracer = noop.NewTracerProvider().Tracer("")
