// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
//
//	ctx := testutil.TestContext(t)
//	require.True(t, testutil.WaitFor(func() bool { return done.Load() }, time.Second))
//
// =============================================================================
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// defaultTestTimeout 单个测试上下文的超时，防止后端模拟卡死整个 go test
const defaultTestTimeout = 30 * time.Second

// pollInterval WaitFor 的轮询间隔
const pollInterval = 5 * time.Millisecond

// TestContext 返回 30 秒超时的测试上下文，测试结束时自动取消
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, defaultTestTimeout)
}

// TestContextWithTimeout 返回自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// TestLogger 返回写入 t.Log 的 Warn 级别 logger，只在失败用例中可见
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// WaitFor 轮询直到 condition 为 true；超时后再判断一次并返回结果
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		if condition() {
			return true
		}
		select {
		case <-deadline.C:
			return condition()
		case <-tick.C:
		}
	}
}
