package metrics

import (
	"math"

	"biascope/domain/bias"
	"biascope/domain/distribution"
	"biascope/domain/variable"
)

// TotalVariation computes the total variation distance between the two
// normalized frequency tables. Symmetric, bounded in [0, 1].
type TotalVariation struct{}

// NewTotalVariation creates the TVD metric
func NewTotalVariation() *TotalVariation {
	return &TotalVariation{}
}

// Name returns the metric name
func (m *TotalVariation) Name() string {
	return "tvd"
}

// Description returns a human-readable description
func (m *TotalVariation) Description() string {
	return "Total variation distance between normalized frequency tables"
}

// AppliesTo declares the applicable variable types
func (m *TotalVariation) AppliesTo(t variable.VariableType) bool {
	return t.IsCategoricalKind()
}

// Compute evaluates TVD(p, q) = 0.5 * sum |p_i - q_i|.
func (m *TotalVariation) Compute(cohort, reference *distribution.Profile, opts Options) bias.MetricResult {
	if reason := guard(cohort, reference, opts); reason != bias.ReasonNone {
		return bias.Invalid(keyOf(cohort, reference), m.Name(), reason)
	}

	p := cohort.Proportions()
	q := reference.Proportions()

	dist := 0.0
	for i := range p {
		dist += math.Abs(p[i] - q[i])
	}
	dist *= 0.5
	if dist > 1 {
		dist = 1
	}

	return bias.MetricResult{
		Variable: cohort.Variable,
		Metric:   m.Name(),
		Value:    dist,
		Valid:    true,
	}
}
