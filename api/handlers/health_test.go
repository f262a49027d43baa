package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func staticCheck(name string, err error) HealthCheck {
	return NewFuncCheck(name, func(context.Context) error { return err })
}

func serveReady(t *testing.T, h *HealthHandler, ctx context.Context) (int, ServiceHealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil).WithContext(ctx))

	var resp ServiceHealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	for path, fn := range map[string]http.HandlerFunc{"/health": h.HandleHealth, "/healthz": h.HandleHealthz} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			fn(w, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			var resp ServiceHealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, "healthy", resp.Status)
			assert.False(t, resp.Timestamp.IsZero())
			assert.Empty(t, resp.Checks)
		})
	}
}

func TestHealthHandler_HandleReady(t *testing.T) {
	cases := []struct {
		name   string
		checks []HealthCheck
		code   int
		status string
		want   map[string]string
	}{
		{
			name:   "no checks",
			code:   http.StatusOK,
			status: "healthy",
			want:   map[string]string{},
		},
		{
			name:   "all pass",
			checks: []HealthCheck{staticCheck("backend", nil), staticCheck("redis", nil)},
			code:   http.StatusOK,
			status: "healthy",
			want:   map[string]string{"backend": "pass", "redis": "pass"},
		},
		{
			name:   "one fails",
			checks: []HealthCheck{staticCheck("backend", nil), staticCheck("redis", errors.New("connection refused"))},
			code:   http.StatusServiceUnavailable,
			status: "unhealthy",
			want:   map[string]string{"backend": "pass", "redis": "fail"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(nil)
			for _, c := range tc.checks {
				h.RegisterCheck(c)
			}

			code, resp := serveReady(t, h, context.Background())
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.status, resp.Status)

			got := make(map[string]string, len(resp.Checks))
			for name, r := range resp.Checks {
				got[name] = r.Status
				assert.NotEmpty(t, r.Latency)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHealthHandler_ReadyReportsFailureMessage(t *testing.T) {
	h := NewHealthHandler(nil)
	h.RegisterCheck(staticCheck("circuit_breaker", errors.New("backend circuit is open")))

	_, resp := serveReady(t, h, context.Background())
	assert.Equal(t, "backend circuit is open", resp.Checks["circuit_breaker"].Message)
}

func TestHealthHandler_ReadyRunsChecksConcurrently(t *testing.T) {
	h := NewHealthHandler(nil)

	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	var once sync.Once
	for _, name := range []string{"a", "b", "c"} {
		h.RegisterCheck(NewFuncCheck(name, func(ctx context.Context) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			if n == 3 {
				once.Do(func() { close(release) })
			}
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}))
	}

	code, _ := serveReady(t, h, context.Background())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int32(3), peak.Load())
}

func TestHealthHandler_ReadyHonoursTimeout(t *testing.T) {
	h := NewHealthHandler(nil)
	h.SetTimeout(20 * time.Millisecond)
	h.SetTimeout(0) // ignored
	h.RegisterCheck(NewFuncCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	code, resp := serveReady(t, h, context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "fail", resp.Checks["slow"].Status)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHealthHandler_ReadyHonoursRequestContext(t *testing.T) {
	h := NewHealthHandler(nil)
	h.RegisterCheck(NewFuncCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, _ := serveReady(t, h, ctx)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	w := httptest.NewRecorder()
	NewHealthHandler(nil).HandleVersion("1.2.3", started)(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.2.3", data["version"])
	assert.Equal(t, runtime.Version(), data["go_version"])
	assert.Equal(t, "2026-01-02T03:04:05Z", data["started_at"])
}

func TestNamedFuncChecks(t *testing.T) {
	boom := errors.New("connection refused")

	backend := NewBackendHealthCheck(func(context.Context) error { return nil })
	redis := NewRedisHealthCheck(func(context.Context) error { return boom })

	assert.Equal(t, "backend", backend.Name())
	assert.NoError(t, backend.Check(context.Background()))
	assert.Equal(t, "redis", redis.Name())
	assert.ErrorIs(t, redis.Check(context.Background()), boom)
}

func TestHealthHandler_ConcurrentReadyAndRegister(t *testing.T) {
	h := NewHealthHandler(nil)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.RegisterCheck(staticCheck(string(rune('a'+i)), nil))
		}()
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()

	checks, _ := h.snapshot()
	assert.Len(t, checks, 10)
}
