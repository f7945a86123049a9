package metrics

import (
	"math"

	"biascope/domain/bias"
	"biascope/domain/distribution"
	"biascope/domain/variable"
)

// StandardizedMeanDifference measures cohort-vs-reference mean shift in
// pooled standard deviation units. Sign follows cohort minus reference;
// magnitude is invariant under group swap.
type StandardizedMeanDifference struct{}

// NewStandardizedMeanDifference creates the SMD metric
func NewStandardizedMeanDifference() *StandardizedMeanDifference {
	return &StandardizedMeanDifference{}
}

// Name returns the metric name
func (m *StandardizedMeanDifference) Name() string {
	return "smd"
}

// Description returns a human-readable description
func (m *StandardizedMeanDifference) Description() string {
	return "Mean difference scaled by pooled standard deviation"
}

// AppliesTo declares the applicable variable types
func (m *StandardizedMeanDifference) AppliesTo(t variable.VariableType) bool {
	return t == variable.TypeContinuous
}

// Compute calculates the SMD with the degenerate-variance rules: a zero
// variance on either side yields 0.0 (reason degenerate_equal) when the
// means agree and an invalid result (degenerate_unequal) when they
// differ. The quotient is computed only when both groups vary; a
// constant group must never be scaled by the other group's spread.
func (m *StandardizedMeanDifference) Compute(cohort, reference *distribution.Profile, opts Options) bias.MetricResult {
	if reason := guard(cohort, reference, opts); reason != bias.ReasonNone {
		return bias.Invalid(keyOf(cohort, reference), m.Name(), reason)
	}

	detail := map[string]float64{
		"cohort_mean":    cohort.Mean,
		"reference_mean": reference.Mean,
	}

	if cohort.Variance <= 0 || reference.Variance <= 0 {
		if cohort.Mean == reference.Mean {
			return bias.MetricResult{
				Variable: cohort.Variable,
				Metric:   m.Name(),
				Value:    0.0,
				Valid:    true,
				Reason:   bias.ReasonDegenerateEqual,
				Detail:   detail,
			}
		}
		return bias.Invalid(cohort.Variable, m.Name(), bias.ReasonDegenerateUnequal)
	}

	nc := float64(cohort.Count)
	nr := float64(reference.Count)
	pooledSD := math.Sqrt(((nc-1)*cohort.Variance + (nr-1)*reference.Variance) / (nc + nr - 2))
	detail["pooled_sd"] = pooledSD

	return bias.MetricResult{
		Variable: cohort.Variable,
		Metric:   m.Name(),
		Value:    (cohort.Mean - reference.Mean) / pooledSD,
		Valid:    true,
		Detail:   detail,
	}
}
