package retry

import "context"

// Value 在 r 的重试策略下执行 fn，返回最后一次成功调用的类型化结果。
// fn 收到的 ctx 与调用方相同，超时控制由 fn 自己负责。
func Value[T any](ctx context.Context, r Retryer, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func() error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
