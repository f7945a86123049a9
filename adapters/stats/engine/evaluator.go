package engine

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"biascope/adapters/stats/metrics"
	"biascope/domain/bias"
	"biascope/domain/core"
	"biascope/domain/distribution"
	"biascope/domain/variable"
	"biascope/internal/profiling"
)

// VariableInput pairs one variable's cohort and reference series.
type VariableInput struct {
	Spec      variable.Spec
	Cohort    variable.SampleSeries
	Reference variable.SampleSeries
}

// Request describes one evaluation run. All data is already materialized
// in memory; the evaluator performs no I/O.
type Request struct {
	Variables []VariableInput
	Selection bias.MetricSelection
	Binning   distribution.BinningPolicy

	// ReferenceVersion identifies the reference population snapshot for
	// cache keying. Empty disables reference-profile caching.
	ReferenceVersion string
}

// Evaluator orchestrates profile-then-score across variables. Stateless
// between runs except for the optional reference-profile cache handed in
// at construction.
type Evaluator struct {
	profiler *profiling.Profiler
	cache    ReferenceCache
	workers  int
	opts     metrics.Options
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithWorkers bounds the per-variable concurrency.
func WithWorkers(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithCache attaches a reference-profile cache.
func WithCache(cache ReferenceCache) Option {
	return func(e *Evaluator) { e.cache = cache }
}

// WithMinSampleSize overrides the metric sample-size floor.
func WithMinSampleSize(n int) Option {
	return func(e *Evaluator) { e.opts.MinSampleSize = n }
}

// NewEvaluator creates a new bias evaluator
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		profiler: profiling.NewProfiler(),
		workers:  4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateSelection checks every selected metric exists and applies to
// its variable type. Misconfiguration is a caller bug and fails hard,
// before any computation; data conditions never reach this path.
func ValidateSelection(selection bias.MetricSelection) error {
	for varType, names := range selection {
		if !varType.IsValid() {
			return core.NewConfigurationError(string(varType), core.ErrUnsupportedType)
		}
		for _, name := range names {
			m, ok := metrics.Lookup(name)
			if !ok {
				return core.NewConfigurationError(name, core.ErrUnknownMetric)
			}
			if !m.AppliesTo(varType) {
				detail := fmt.Sprintf("%s for %s variables", name, varType)
				return core.NewConfigurationError(detail, core.ErrMetricTypeMismatch)
			}
		}
	}
	return nil
}

// Evaluate profiles both groups of every variable and runs the selected
// metrics, one MetricResult per (variable, metric) pair in input order.
// Individual failures become invalid results; only misconfiguration
// returns an error. Repeated calls with identical inputs produce
// identical output.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) ([]bias.MetricResult, error) {
	if err := ValidateSelection(req.Selection); err != nil {
		return nil, err
	}
	for _, in := range req.Variables {
		if err := in.Spec.Validate(); err != nil {
			return nil, err
		}
	}

	// One slot per variable keeps output ordering independent of
	// completion order.
	slots := make([][]bias.MetricResult, len(req.Variables))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, in := range req.Variables {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			slots[i] = e.evaluateVariable(in, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Cancellation drops not-yet-completed variables; completed results
	// are independent and remain valid.
	results := make([]bias.MetricResult, 0, len(slots)*3)
	for _, slot := range slots {
		results = append(results, slot...)
	}
	return results, nil
}

// evaluateVariable runs the full profile-then-score pipeline for one
// variable. Never panics outward and never returns an error: every
// failure is folded into flagged results.
func (e *Evaluator) evaluateVariable(in VariableInput, req Request) []bias.MetricResult {
	selected := req.Selection[in.Spec.Type]
	if len(selected) == 0 {
		return nil
	}

	shared, refProfile, err := e.referenceProfile(in, req)
	var cohortProfile *distribution.Profile
	if err == nil {
		cohortProfile, err = e.profiler.Profile(in.Cohort, in.Spec, req.Binning, shared)
	}
	if err != nil {
		log.Printf("[Evaluator] variable %s: %v", in.Spec.Key, err)
		results := make([]bias.MetricResult, 0, len(selected))
		for _, name := range selected {
			results = append(results, bias.Invalid(in.Spec.Key, name, bias.ReasonProfilingError))
		}
		return results
	}

	results := make([]bias.MetricResult, 0, len(selected))
	for _, name := range selected {
		m, _ := metrics.Lookup(name) // existence checked during validation
		results = append(results, m.Compute(cohortProfile, refProfile, e.opts))
	}
	return results
}

// referenceProfile derives the shared bucket structure and profiles the
// reference series, consulting the cache when the structure is stable
// across cohorts (continuous variables, or a declared category domain).
func (e *Evaluator) referenceProfile(in VariableInput, req Request) (profiling.Shared, *distribution.Profile, error) {
	cacheable := e.cache != nil && req.ReferenceVersion != "" &&
		(in.Spec.Type == variable.TypeContinuous || len(in.Spec.Domain) > 0)

	var key CacheKey
	if cacheable {
		key = CacheKey{
			Variable:         in.Spec.Key,
			Binning:          binningKey(req.Binning),
			ReferenceVersion: req.ReferenceVersion,
		}
		if entry, ok := e.cache.Get(key); ok {
			return entry.Shared, entry.Profile, nil
		}
	}

	shared, err := e.profiler.DeriveShared(in.Spec, req.Binning, in.Reference, in.Cohort)
	if err != nil {
		return profiling.Shared{}, nil, err
	}
	refProfile, err := e.profiler.Profile(in.Reference, in.Spec, req.Binning, shared)
	if err != nil {
		return profiling.Shared{}, nil, err
	}

	if cacheable {
		e.cache.Put(key, CachedReference{Shared: shared, Profile: refProfile})
	}
	return shared, refProfile, nil
}

func binningKey(policy distribution.BinningPolicy) string {
	return fmt.Sprintf("%s/%d/%d", policy.Strategy, policy.Bins, policy.EffectiveMinCount())
}
