// Package ctxkeys 定义跨包传递的 context 键，避免各包自行声明导致冲突。
package ctxkeys

import "context"

type key int

const (
	traceIDKey key = iota
	requestIDKey
	attemptKey
)

// lookup 取出 k 对应的值，类型不符或 valid 返回 false 时视为缺失
func lookup[V any](ctx context.Context, k key, valid func(V) bool) (V, bool) {
	v, ok := ctx.Value(k).(V)
	if !ok || !valid(v) {
		var zero V
		return zero, false
	}
	return v, true
}

func nonEmpty(s string) bool { return s != "" }

// WithTraceID 标记单次后端请求，格式为 "<request_id>-<attempt>"
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceID(ctx context.Context) (string, bool) {
	return lookup(ctx, traceIDKey, nonEmpty)
}

// WithRequestID 标记一次 HTTP 请求或一次 produceArtifact 调用
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestID(ctx context.Context) (string, bool) {
	return lookup(ctx, requestIDKey, nonEmpty)
}

// WithAttempt 记录当前尝试序号，从 1 开始
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey, attempt)
}

func Attempt(ctx context.Context) (int, bool) {
	return lookup(ctx, attemptKey, func(n int) bool { return n >= 1 })
}
