package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/strictgen/llm"
	"github.com/BaSui01/strictgen/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(t *testing.T, cfg Config) (*Breaker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := New(cfg, zaptest.NewLogger(t))
	b.now = clock.Now
	return b, clock
}

var (
	errTransient = &llm.Error{Code: llm.ErrUpstreamError, Message: "502", HTTPStatus: http.StatusBadGateway, Retryable: true}
	errPermanent = &llm.Error{Code: llm.ErrUnauthorized, Message: "bad key", HTTPStatus: http.StatusUnauthorized}
)

func fail(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func ok(context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestNew_CorrectsInvalidConfig(t *testing.T) {
	b := New(Config{Threshold: 0, ResetTimeout: -1, HalfOpenMaxCalls: -3}, nil)
	def := DefaultConfig()
	assert.Equal(t, def.Threshold, b.cfg.Threshold)
	assert.Equal(t, def.ResetTimeout, b.cfg.ResetTimeout)
	assert.Equal(t, def.HalfOpenMaxCalls, b.cfg.HalfOpenMaxCalls)
	assert.Equal(t, StateClosed, b.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}

// ---------------------------------------------------------------------------
// 状态转换
// ---------------------------------------------------------------------------

func TestBreaker_OpensAfterThresholdTransientFailures(t *testing.T) {
	b, _ := newTestBreaker(t, Config{Threshold: 3, ResetTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Do(ctx, fail(errTransient)), errTransient)
		assert.Equal(t, StateClosed, b.State())
	}
	assert.ErrorIs(t, b.Do(ctx, fail(errTransient)), errTransient)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not reach the backend")
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(t, Config{Threshold: 2})
	ctx := context.Background()

	_ = b.Do(ctx, fail(errTransient))
	require.NoError(t, b.Do(ctx, ok))
	_ = b.Do(ctx, fail(errTransient))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_PermanentErrorsDoNotCount(t *testing.T) {
	b, _ := newTestBreaker(t, Config{Threshold: 1})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, b.Do(ctx, fail(errPermanent)), errPermanent)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CallerCancellationDoesNotCount(t *testing.T) {
	b, _ := newTestBreaker(t, Config{Threshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_UntypedTransportErrorCounts(t *testing.T) {
	b, _ := newTestBreaker(t, Config{Threshold: 1})
	_ = b.Do(context.Background(), fail(errors.New("connection reset by peer")))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenProbeSuccessCloses(t *testing.T) {
	var mu sync.Mutex
	var changes []string
	b, clock := newTestBreaker(t, Config{
		Threshold:    1,
		ResetTimeout: 10 * time.Second,
		OnStateChange: func(from, to State) {
			mu.Lock()
			changes = append(changes, from.String()+"->"+to.String())
			mu.Unlock()
		},
	})
	ctx := context.Background()

	_ = b.Do(ctx, fail(errTransient))
	require.Equal(t, StateOpen, b.State())

	clock.Advance(10 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, changes)
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(t, Config{Threshold: 3, ResetTimeout: 10 * time.Second})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Do(ctx, fail(errTransient))
	}
	clock.Advance(11 * time.Second)

	// 半开状态下一次失败立即重新打开，不再等满阈值
	_ = b.Do(ctx, fail(errTransient))
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(ctx, ok), ErrCircuitOpen)
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	b, clock := newTestBreaker(t, Config{Threshold: 1, ResetTimeout: time.Second, HalfOpenMaxCalls: 1})
	ctx := context.Background()
	_ = b.Do(ctx, fail(errTransient))
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, b.Do(ctx, ok), ErrTooManyCallsInHalfOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(t, Config{Threshold: 1})
	_ = b.Do(context.Background(), fail(errTransient))
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	require.NoError(t, b.Do(context.Background(), ok))
}

// ---------------------------------------------------------------------------
// Provider 包装
// ---------------------------------------------------------------------------

func TestProvider_OpenBreakerReturnsRetryableUnavailable(t *testing.T) {
	inner := mocks.NewMockProvider().WithName("flaky").WithError(errTransient)
	p := Wrap(inner, New(Config{Threshold: 2, ResetTimeout: time.Minute}, zaptest.NewLogger(t)))
	req := &llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := p.Completion(ctx, req)
		assert.ErrorIs(t, err, errTransient)
	}

	_, err := p.Completion(ctx, req)
	var le *llm.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, llm.ErrProviderUnavailable, le.Code)
	assert.True(t, le.Retryable)
	assert.Equal(t, http.StatusServiceUnavailable, le.HTTPStatus)
	assert.Equal(t, "flaky", le.Provider)
	assert.Equal(t, 2, inner.CallCount(), "third call short-circuited")
}

func TestProvider_ForwardsSuccessAndHealth(t *testing.T) {
	inner := mocks.NewMockProvider().WithResponse(`{"ok":true}`)
	p := Wrap(inner, New(DefaultConfig(), nil))

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	content, _ := resp.FirstContent()
	assert.Equal(t, `{"ok":true}`, content)

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, inner.Name(), p.Name())
	assert.Same(t, p.Breaker(), p.breaker)
}
