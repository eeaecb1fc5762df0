package fault

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/faultproxy/internal/config"
	"github.com/vyrodovalexey/faultproxy/internal/observability"
)

// RandomFunc returns a value in [0, 1).
type RandomFunc func() float64

// Injector decides whether a failure rule fires for a request.
// It owns the per-request counters, so it must outlive configuration
// reloads.
type Injector struct {
	counters *Counters
	random   RandomFunc
	logger   observability.Logger

	evaluated atomic.Int64
	injected  atomic.Int64
}

// Option is a functional option for configuring the injector.
type Option func(*Injector)

// WithRandom replaces the random source used for probability checks.
func WithRandom(fn RandomFunc) Option {
	return func(i *Injector) {
		i.random = fn
	}
}

// WithCounters sets the counter store.
func WithCounters(c *Counters) Option {
	return func(i *Injector) {
		i.counters = c
	}
}

// WithLogger sets the logger for the injector.
func WithLogger(logger observability.Logger) Option {
	return func(i *Injector) {
		i.logger = logger
	}
}

// NewInjector creates a new Injector.
func NewInjector(opts ...Option) *Injector {
	i := &Injector{
		counters: NewCounters(),
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.random == nil {
		i.random = lockedRandom()
	}
	return i
}

// lockedRandom returns a RandomFunc backed by a seeded source guarded by a mutex.
func lockedRandom() RandomFunc {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // not security sensitive
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64()
	}
}

// Counters returns the counter store.
func (i *Injector) Counters() *Counters {
	return i.counters
}

// ShouldInject evaluates a single rule. Checks run in this order:
// enabled, method, counter increment, count, every, probability, delay.
// A rule that passes the method check always increments the counter for
// method:path, even when a later check rejects it. The delay blocks the
// caller and ends early if ctx is cancelled.
func (i *Injector) ShouldInject(ctx context.Context, rule *config.FailureRule, method, path string) bool {
	cond := &rule.Condition

	if !cond.IsEnabled() {
		return false
	}

	if cond.Method != "" && !strings.EqualFold(cond.Method, method) {
		return false
	}

	i.evaluated.Add(1)
	n := i.counters.Increment(Key(method, path))

	if cond.Count != nil && n != int64(*cond.Count) {
		return false
	}

	if cond.Every != nil && *cond.Every > 0 && n%int64(*cond.Every) != 0 {
		return false
	}

	if cond.Probability != nil {
		// NaN fails p > 0, so it never fires.
		p := *cond.Probability
		if !(p > 0) || i.random() > p {
			return false
		}
	}

	if d := cond.DelayDuration(); d > 0 {
		i.logger.Debug("delaying injected failure",
			observability.String("method", method),
			observability.String("path", path),
			observability.Duration("delay", d),
		)
		sleep(ctx, d)
	}

	i.injected.Add(1)
	return true
}

// Evaluate walks rules in order and returns the first one that fires.
func (i *Injector) Evaluate(
	ctx context.Context,
	rules []config.FailureRule,
	method, path string,
) (*config.FailureRule, bool) {
	for idx := range rules {
		if i.ShouldInject(ctx, &rules[idx], method, path) {
			return &rules[idx], true
		}
	}
	return nil, false
}

// Stats is a point-in-time view of injector activity.
type Stats struct {
	Evaluated int64            `json:"evaluated"`
	Injected  int64            `json:"injected"`
	Counters  map[string]int64 `json:"counters"`
}

// Stats returns a snapshot of injector activity.
func (i *Injector) Stats() Stats {
	return Stats{
		Evaluated: i.evaluated.Load(),
		Injected:  i.injected.Load(),
		Counters:  i.counters.Snapshot(),
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
