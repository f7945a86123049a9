package metrics

import (
	"math"

	"biascope/domain/bias"
	"biascope/domain/distribution"
	"biascope/domain/variable"
)

// JensenShannon computes the Jensen-Shannon divergence between the two
// normalized distributions. Natural logarithm throughout, so values lie
// in [0, ln 2]; the base is fixed for every variable in a report.
//
// Buckets with zero mass on one side stay well-defined through the
// mixture denominator, so no epsilon smoothing is ever injected: ad hoc
// smoothing would silently change comparability across variables.
type JensenShannon struct{}

// NewJensenShannon creates the JS divergence metric
func NewJensenShannon() *JensenShannon {
	return &JensenShannon{}
}

// Name returns the metric name
func (m *JensenShannon) Name() string {
	return "js_divergence"
}

// Description returns a human-readable description
func (m *JensenShannon) Description() string {
	return "Jensen-Shannon divergence (natural log, bounded by ln 2)"
}

// AppliesTo declares the applicable variable types
func (m *JensenShannon) AppliesTo(t variable.VariableType) bool {
	return t.IsValid()
}

// Compute evaluates JS(p, q) = 0.5*KL(p||m) + 0.5*KL(q||m) with
// m = (p+q)/2 over the shared buckets.
func (m *JensenShannon) Compute(cohort, reference *distribution.Profile, opts Options) bias.MetricResult {
	if reason := guard(cohort, reference, opts); reason != bias.ReasonNone {
		return bias.Invalid(keyOf(cohort, reference), m.Name(), reason)
	}

	p := cohort.Proportions()
	q := reference.Proportions()

	div := 0.0
	for i := range p {
		mix := 0.5 * (p[i] + q[i])
		if p[i] > 0 {
			div += 0.5 * p[i] * math.Log(p[i]/mix)
		}
		if q[i] > 0 {
			div += 0.5 * q[i] * math.Log(q[i]/mix)
		}
	}
	// Floating-point rounding can nudge past the analytic bounds.
	if div < 0 {
		div = 0
	}
	if max := math.Ln2; div > max {
		div = max
	}

	return bias.MetricResult{
		Variable: cohort.Variable,
		Metric:   m.Name(),
		Value:    div,
		Valid:    true,
	}
}
