package metrics

import (
	"math"

	"biascope/domain/bias"
	"biascope/domain/distribution"
	"biascope/domain/variable"
)

// KolmogorovSmirnov computes the KS statistic between the empirical CDFs
// built from the shared-bin histograms. Bounded in [0, 1].
type KolmogorovSmirnov struct{}

// NewKolmogorovSmirnov creates the KS metric
func NewKolmogorovSmirnov() *KolmogorovSmirnov {
	return &KolmogorovSmirnov{}
}

// Name returns the metric name
func (m *KolmogorovSmirnov) Name() string {
	return "ks"
}

// Description returns a human-readable description
func (m *KolmogorovSmirnov) Description() string {
	return "Maximum empirical CDF gap over shared bins"
}

// AppliesTo declares the applicable variable types
func (m *KolmogorovSmirnov) AppliesTo(t variable.VariableType) bool {
	return t == variable.TypeContinuous
}

// Compute walks the cumulative bin proportions of both profiles and
// returns the largest absolute gap.
func (m *KolmogorovSmirnov) Compute(cohort, reference *distribution.Profile, opts Options) bias.MetricResult {
	if reason := guard(cohort, reference, opts); reason != bias.ReasonNone {
		return bias.Invalid(keyOf(cohort, reference), m.Name(), reason)
	}

	p := cohort.Proportions()
	q := reference.Proportions()

	maxGap := 0.0
	cumP, cumQ := 0.0, 0.0
	for i := range p {
		cumP += p[i]
		cumQ += q[i]
		if gap := math.Abs(cumP - cumQ); gap > maxGap {
			maxGap = gap
		}
	}

	return bias.MetricResult{
		Variable: cohort.Variable,
		Metric:   m.Name(),
		Value:    maxGap,
		Valid:    true,
	}
}
