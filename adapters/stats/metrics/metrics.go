package metrics

import (
	"sort"

	"biascope/domain/bias"
	"biascope/domain/core"
	"biascope/domain/distribution"
	"biascope/domain/variable"
)

// Metric is one divergence/difference function over two profiled
// distributions of the same variable. Implementations are pure.
type Metric interface {
	Name() string
	Description() string
	AppliesTo(t variable.VariableType) bool
	Compute(cohort, reference *distribution.Profile, opts Options) bias.MetricResult
}

// Options carries the shared numeric policy for a computation run.
type Options struct {
	// MinSampleSize is the minimum usable observations required on each
	// side before a metric is computed. Defaults to 2 when zero.
	MinSampleSize int
}

// EffectiveMinSampleSize applies the default minimum.
func (o Options) EffectiveMinSampleSize() int {
	if o.MinSampleSize <= 0 {
		return 2
	}
	return o.MinSampleSize
}

// The metric set is a fixed enumeration with a dispatch table. There is
// no open-ended runtime registration: extending the library means adding
// a type here, which keeps name->behavior stable across every report.
var registry = func() map[string]Metric {
	all := []Metric{
		NewStandardizedMeanDifference(),
		NewKolmogorovSmirnov(),
		NewJensenShannon(),
		NewChiSquare(),
		NewTotalVariation(),
	}
	table := make(map[string]Metric, len(all))
	for _, m := range all {
		table[m.Name()] = m
	}
	return table
}()

// Lookup resolves a metric by name.
func Lookup(name string) (Metric, bool) {
	m, ok := registry[name]
	return m, ok
}

// Names lists the available metric names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultSelection is the metric selection used when configuration does
// not override it.
func DefaultSelection() bias.MetricSelection {
	return bias.MetricSelection{
		variable.TypeContinuous:  {"smd", "ks", "js_divergence"},
		variable.TypeCategorical: {"chi_square", "tvd", "js_divergence"},
		variable.TypeOrdinal:     {"chi_square", "tvd", "js_divergence"},
	}
}

// keyOf picks the variable key from whichever profile exists, so invalid
// results stay attributable even when one side failed to profile.
func keyOf(cohort, reference *distribution.Profile) core.VariableKey {
	if cohort != nil {
		return cohort.Variable
	}
	if reference != nil {
		return reference.Variable
	}
	return ""
}

// guard applies the validity rules shared by every metric: sample size
// minimums on both sides, then the defensive bucket-structure check.
// Returns a non-empty reason when the computation must not proceed.
func guard(cohort, reference *distribution.Profile, opts Options) bias.Reason {
	min := opts.EffectiveMinSampleSize()
	if cohort == nil || reference == nil || cohort.Count < min || reference.Count < min {
		return bias.ReasonInsufficientSample
	}
	// The profiler contract guarantees identical bucket structure for
	// paired profiles; a mismatch here is a caller bug surfaced as an
	// invalid result rather than a panic.
	if !cohort.Comparable(reference) {
		return bias.ReasonDomainMismatch
	}
	return bias.ReasonNone
}
