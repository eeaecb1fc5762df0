package fault

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/faultproxy/internal/config"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }

func rule(cond config.FailureCondition, status int) config.FailureRule {
	return config.FailureRule{
		Condition: cond,
		Response:  config.FailureResponse{StatusCode: status},
	}
}

func fixedRandom(v float64) Option {
	return WithRandom(func() float64 { return v })
}

// fires runs n evaluations of r and returns which ones (1-based) injected.
func fires(t *testing.T, inj *Injector, r config.FailureRule, method, path string, n int) []int {
	t.Helper()
	var hits []int
	for k := 1; k <= n; k++ {
		if inj.ShouldInject(context.Background(), &r, method, path) {
			hits = append(hits, k)
		}
	}
	return hits
}

func TestShouldInject_Count(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	r := rule(config.FailureCondition{Count: intPtr(3)}, 500)

	assert.Equal(t, []int{3}, fires(t, inj, r, "GET", "/x", 10))
}

func TestShouldInject_Every(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	r := rule(config.FailureCondition{Every: intPtr(3)}, 500)

	assert.Equal(t, []int{3, 6, 9}, fires(t, inj, r, "GET", "/x", 10))
}

func TestShouldInject_CountAndEvery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		count int
		every int
		want  []int
	}{
		{name: "count divisible by every", count: 6, every: 3, want: []int{6}},
		{name: "count not divisible by every", count: 4, every: 3, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			inj := NewInjector()
			r := rule(config.FailureCondition{Count: intPtr(tt.count), Every: intPtr(tt.every)}, 500)
			assert.Equal(t, tt.want, fires(t, inj, r, "GET", "/x", 12))
		})
	}
}

func TestShouldInject_Probability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    float64
		draw float64
		want bool
	}{
		{name: "zero never fires even on zero draw", p: 0, draw: 0, want: false},
		{name: "one always fires", p: 1, draw: 0.999999, want: true},
		{name: "draw below p fires", p: 0.5, draw: 0.25, want: true},
		{name: "draw equal to p fires", p: 0.5, draw: 0.5, want: true},
		{name: "draw above p skips", p: 0.5, draw: 0.75, want: false},
		{name: "NaN never fires", p: math.NaN(), draw: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			inj := NewInjector(fixedRandom(tt.draw))
			r := rule(config.FailureCondition{Probability: floatPtr(tt.p)}, 500)
			assert.Equal(t, tt.want, inj.ShouldInject(context.Background(), &r, "GET", "/x"))
		})
	}
}

func TestShouldInject_ProbabilityDefaultSource(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	always := rule(config.FailureCondition{Probability: floatPtr(1)}, 500)
	never := rule(config.FailureCondition{Probability: floatPtr(0)}, 500)

	assert.Len(t, fires(t, inj, always, "GET", "/a", 50), 50)
	assert.Empty(t, fires(t, inj, never, "GET", "/b", 50))
}

func TestShouldInject_MethodMismatchDoesNotCount(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	r := rule(config.FailureCondition{Method: "POST", Count: intPtr(1)}, 500)

	assert.False(t, inj.ShouldInject(context.Background(), &r, "GET", "/x"))
	assert.Equal(t, int64(0), inj.Counters().Get(Key("GET", "/x")))

	assert.True(t, inj.ShouldInject(context.Background(), &r, "post", "/x"))
	assert.Equal(t, int64(1), inj.Counters().Get(Key("post", "/x")))
}

func TestShouldInject_DisabledDoesNotCount(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	r := rule(config.FailureCondition{Enabled: boolPtr(false)}, 500)

	assert.False(t, inj.ShouldInject(context.Background(), &r, "GET", "/x"))
	assert.Equal(t, int64(0), inj.Counters().Get(Key("GET", "/x")))

	r.Condition.Enabled = boolPtr(true)
	assert.True(t, inj.ShouldInject(context.Background(), &r, "GET", "/x"))
}

func TestShouldInject_Unconditional(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	r := rule(config.FailureCondition{}, 500)

	assert.Equal(t, []int{1, 2, 3}, fires(t, inj, r, "GET", "/x", 3))
}

func TestShouldInject_Delay(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	r := rule(config.FailureCondition{Delay: intPtr(50)}, 500)

	start := time.Now()
	assert.True(t, inj.ShouldInject(context.Background(), &r, "GET", "/x"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestShouldInject_DelayEndsOnCancel(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	r := rule(config.FailureCondition{Delay: intPtr(10_000)}, 500)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	inj.ShouldInject(ctx, &r, "GET", "/x")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestShouldInject_DelayOnlyWhenFiring(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	r := rule(config.FailureCondition{Count: intPtr(2), Delay: intPtr(10_000)}, 500)

	start := time.Now()
	assert.False(t, inj.ShouldInject(context.Background(), &r, "GET", "/x"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestEvaluate_FirstFiringRuleWins(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	rules := []config.FailureRule{
		rule(config.FailureCondition{Count: intPtr(100)}, 500),
		rule(config.FailureCondition{}, 503),
		rule(config.FailureCondition{}, 504),
	}

	got, ok := inj.Evaluate(context.Background(), rules, "GET", "/x")
	require.True(t, ok)
	assert.Equal(t, 503, got.Response.StatusCode)
	assert.Same(t, &rules[1], got)
}

func TestEvaluate_EachRuleIncrementsCounter(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	rules := []config.FailureRule{
		rule(config.FailureCondition{Count: intPtr(100)}, 500),
		rule(config.FailureCondition{Count: intPtr(100)}, 503),
	}

	_, ok := inj.Evaluate(context.Background(), rules, "GET", "/x")
	assert.False(t, ok)
	assert.Equal(t, int64(2), inj.Counters().Get(Key("GET", "/x")))

	stats := inj.Stats()
	assert.Equal(t, int64(2), stats.Evaluated)
	assert.Equal(t, int64(0), stats.Injected)
	assert.Equal(t, map[string]int64{"GET:/x": 2}, stats.Counters)
}

func TestEvaluate_NoRules(t *testing.T) {
	t.Parallel()

	inj := NewInjector()
	got, ok := inj.Evaluate(context.Background(), nil, "GET", "/x")
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, int64(0), inj.Counters().Get(Key("GET", "/x")))
}

func TestCounters_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewCounters()
	const workers, perWorker = 16, 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < perWorker; k++ {
				c.Increment("GET:/x")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*perWorker), c.Get("GET:/x"))
	assert.Equal(t, int64(0), c.Get("GET:/missing"))
}

func TestWithCounters_Shared(t *testing.T) {
	t.Parallel()

	shared := NewCounters()
	a := NewInjector(WithCounters(shared))
	b := NewInjector(WithCounters(shared))
	r := rule(config.FailureCondition{Count: intPtr(2)}, 500)

	assert.False(t, a.ShouldInject(context.Background(), &r, "GET", "/x"))
	assert.True(t, b.ShouldInject(context.Background(), &r, "GET", "/x"))
	assert.Same(t, shared, a.Counters())
}
