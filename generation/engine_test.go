package generation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/strictgen/contract"
	"github.com/BaSui01/strictgen/internal/metrics"
	"github.com/BaSui01/strictgen/recipe"
	"github.com/BaSui01/strictgen/session"
	"github.com/BaSui01/strictgen/testutil"
	"github.com/BaSui01/strictgen/testutil/fixtures"
	"github.com/BaSui01/strictgen/testutil/mocks"
	"github.com/BaSui01/strictgen/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func openSession(t *testing.T, provider *mocks.MockProvider) *session.Session {
	t.Helper()
	sess, err := session.Open(testutil.TestContext(t), session.DefaultConfig(), provider, testutil.TestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestNewEngine_Errors(t *testing.T) {
	gen := newScript(reply("{}"))

	tests := []struct {
		name     string
		schema   *contract.Schema
		template string
		gen      Generator
		policy   Policy
		code     types.ErrorCode
	}{
		{name: "missing input placeholder", schema: scoreGlassSchema, template: "{{contract}}", gen: gen, policy: fastPolicy(1), code: types.ErrTemplate},
		{name: "unknown placeholder", schema: scoreGlassSchema, template: "{{contract}} {{input}} {{mood}}", gen: gen, policy: fastPolicy(1), code: types.ErrTemplate},
		{name: "nil schema", schema: nil, template: testTemplate, gen: gen, policy: fastPolicy(1), code: types.ErrTemplate},
		{name: "zero attempts", schema: scoreGlassSchema, template: testTemplate, gen: gen, policy: Policy{}, code: types.ErrInvalidRequest},
		{name: "nil generator", schema: scoreGlassSchema, template: testTemplate, gen: nil, policy: fastPolicy(1), code: types.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.schema, tt.template, tt.gen, tt.policy)
			require.Error(t, err)
			assert.Equal(t, tt.code, types.GetErrorCode(err))
		})
	}
}

func TestProduceArtifact_SetupFailure(t *testing.T) {
	out := ProduceArtifact(context.Background(), scoreGlassSchema, "no placeholders", newScript(reply("{}")), fastPolicy(1), "x")

	assert.Equal(t, StatusFailed, out.Status)
	assert.NotEmpty(t, out.ID)
	require.NotNil(t, out.Err)
	assert.Equal(t, types.ErrTemplate, out.Err.Code)
}

func TestEngine_RecipeThroughSession(t *testing.T) {
	provider := mocks.NewMockProvider().WithScript(
		mocks.Reply(fixtures.RecipeJSON(fixtures.WithGlassware("Goblet"), fixtures.WithScore(150))),
		mocks.Reply(fixtures.FencedRecipe()),
	)
	sess := openSession(t, provider)

	engine, err := NewEngine(recipe.Schema(), recipe.Template, sess, fastPolicy(3), WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)

	out := engine.ProduceArtifact(testutil.TestContext(t), "rainy jazz night")

	require.True(t, out.Succeeded(), out.Diagnostics())
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, provider.CallCount())
	assert.Contains(t, provider.LastPrompt(), "field glassware expected")
	assert.Contains(t, provider.LastPrompt(), "field vibe_match_score expected")

	r, err := recipe.Decode(out.Value)
	require.NoError(t, err)
	assert.Equal(t, "Coupe", r.Glassware)
}

func TestEngine_PermanentProviderError(t *testing.T) {
	provider := mocks.NewMockProvider().WithScript(mocks.Fail(mocks.Permanent("invalid api key")))
	sess := openSession(t, provider)

	out := ProduceArtifact(testutil.TestContext(t), recipe.Schema(), recipe.Template, sess, fastPolicy(3), "x")

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 1, provider.CallCount())
	require.NotNil(t, out.Err)
	assert.Equal(t, types.ErrBackendRequest, out.Err.Code)
	assert.Equal(t, 401, out.Err.HTTPStatus)
}

func TestEngine_TransientProviderError(t *testing.T) {
	provider := mocks.NewMockProvider().WithScript(
		mocks.Fail(mocks.Transient("slow down")),
		mocks.Reply(fixtures.ValidRecipeJSON()),
	)
	sess := openSession(t, provider)

	out := ProduceArtifact(testutil.TestContext(t), recipe.Schema(), recipe.Template, sess, fastPolicy(3), "x")

	require.True(t, out.Succeeded(), out.Diagnostics())
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, ResultTransientError, out.History[0].Result)
}

func TestEngine_ConcurrentGenerations(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(fixtures.ValidRecipeJSON())
	sess := openSession(t, provider)

	engine, err := NewEngine(recipe.Schema(), recipe.Template, sess, fastPolicy(2))
	require.NoError(t, err)

	const n = 16
	outcomes := make([]*Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = engine.ProduceArtifact(context.Background(), "party")
		}(i)
	}
	wg.Wait()

	ids := make(map[string]struct{}, n)
	for _, out := range outcomes {
		require.True(t, out.Succeeded(), out.Diagnostics())
		ids[out.ID] = struct{}{}
	}
	assert.Len(t, ids, n)
	assert.Equal(t, n, provider.CallCount())
}

func TestEngine_CancellationIsolated(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithResponse(fixtures.ValidRecipeJSON()).
		WithDelay(50 * time.Millisecond)
	sess := openSession(t, provider)

	engine, err := NewEngine(recipe.Schema(), recipe.Template, sess, fastPolicy(1))
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var slow, fast *Outcome
	wg.Add(2)
	go func() {
		defer wg.Done()
		fast = engine.ProduceArtifact(cancelled, "cancel me")
	}()
	go func() {
		defer wg.Done()
		slow = engine.ProduceArtifact(context.Background(), "keep going")
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	wg.Wait()

	assert.Equal(t, StatusFailed, fast.Status)
	assert.Equal(t, types.ErrTimeout, fast.Err.Code)
	assert.True(t, slow.Succeeded(), slow.Diagnostics())
}

func TestEngine_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	gen := newScript(
		reply(`{"score": 150, "glass": "Coupe"}`),
		reply(`{"score": 80, "glass": "Coupe"}`),
	)
	engine, err := NewEngine(scoreGlassSchema, testTemplate, gen, fastPolicy(3), WithTracerProvider(tp))
	require.NoError(t, err)

	out := engine.ProduceArtifact(context.Background(), "x")
	require.True(t, out.Succeeded())

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	var root sdktrace.ReadOnlySpan
	attempts := 0
	for _, s := range spans {
		switch s.Name() {
		case "generation.produce_artifact":
			root = s
		case "generation.attempt":
			attempts++
		}
	}
	require.NotNil(t, root)
	assert.Equal(t, 2, attempts)
	for _, s := range spans {
		if s.Name() == "generation.attempt" {
			assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID())
		}
	}
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("strictgen_test", reg, nil)

	gen := newScript(
		reply(`{"score": 150, "glass": "Goblet"}`),
		reply(`{"score": 80, "glass": "Coupe"}`),
	)
	engine, err := NewEngine(scoreGlassSchema, testTemplate, gen, fastPolicy(3), WithMetrics(collector))
	require.NoError(t, err)
	require.True(t, engine.ProduceArtifact(context.Background(), "x").Succeeded())

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				counts[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, counts["strictgen_test_generations_total"])
	assert.Equal(t, 2.0, counts["strictgen_test_generation_attempt_results_total"])
	assert.Equal(t, 2.0, counts["strictgen_test_contract_violations_total"])
}

func TestOutcome_JSON(t *testing.T) {
	gen := newScript(reply("not json"))
	engine, err := NewEngine(scoreGlassSchema, testTemplate, gen, fastPolicy(1))
	require.NoError(t, err)

	out := engine.ProduceArtifact(context.Background(), "x")
	data, err := json.Marshal(out)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "exhausted", decoded["status"])
	assert.EqualValues(t, 1, decoded["attempts"])
	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, string(types.ErrValidationExhausted), errObj["code"])
	report := decoded["report"].(map[string]any)
	assert.Equal(t, false, report["succeeded"])
}
