package generation

import (
	"time"

	"github.com/BaSui01/strictgen/llm/retry"
	"github.com/BaSui01/strictgen/types"
)

// Policy 控制尝试预算与瞬时错误退避
type Policy struct {
	// MaxAttempts 最大尝试次数（含首次），必须 >= 1
	MaxAttempts int

	// Backoff 瞬时后端错误后的等待策略，只使用其延迟参数
	Backoff *retry.RetryPolicy

	// AttemptTimeout 单次尝试的截止时间，0 表示只受调用方 context 约束
	AttemptTimeout time.Duration
}

// DefaultPolicy 返回默认策略：最多 3 次尝试，0.5s 起步的指数退避
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff: &retry.RetryPolicy{
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}
}

// Validate 校验策略
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return types.Errorf(types.ErrInvalidRequest, "max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.AttemptTimeout < 0 {
		return types.Errorf(types.ErrInvalidRequest, "attempt timeout must be >= 0, got %v", p.AttemptTimeout)
	}
	return nil
}
