package metrics

import (
	"gonum.org/v1/gonum/stat/distuv"

	"biascope/domain/bias"
	"biascope/domain/distribution"
	"biascope/domain/variable"
)

// ChiSquare computes the two-sample chi-square homogeneity statistic over
// observed category counts. No Yates continuity correction is applied;
// the uncorrected statistic keeps values comparable across category
// counts within a report. Degrees of freedom and the p-value are reported
// as details alongside the statistic.
type ChiSquare struct{}

// NewChiSquare creates the chi-square metric
func NewChiSquare() *ChiSquare {
	return &ChiSquare{}
}

// Name returns the metric name
func (m *ChiSquare) Name() string {
	return "chi_square"
}

// Description returns a human-readable description
func (m *ChiSquare) Description() string {
	return "Two-sample chi-square homogeneity statistic (no continuity correction)"
}

// AppliesTo declares the applicable variable types
func (m *ChiSquare) AppliesTo(t variable.VariableType) bool {
	return t.IsCategoricalKind()
}

// Compute builds the 2 x k contingency table from the paired category
// counts and sums (observed-expected)^2/expected. Categories empty in
// both groups contribute no expected count and are skipped.
func (m *ChiSquare) Compute(cohort, reference *distribution.Profile, opts Options) bias.MetricResult {
	if reason := guard(cohort, reference, opts); reason != bias.ReasonNone {
		return bias.Invalid(keyOf(cohort, reference), m.Name(), reason)
	}

	oc := cohort.CategoryCounts
	or := reference.CategoryCounts
	nc := float64(cohort.Count)
	nr := float64(reference.Count)
	total := nc + nr

	statistic := 0.0
	used := 0
	for i := range oc {
		colTotal := float64(oc[i] + or[i])
		if colTotal == 0 {
			continue
		}
		used++
		expC := nc * colTotal / total
		expR := nr * colTotal / total
		dc := float64(oc[i]) - expC
		dr := float64(or[i]) - expR
		statistic += dc * dc / expC
		statistic += dr * dr / expR
	}

	detail := map[string]float64{
		"degrees_freedom": float64(used - 1),
		"p_value":         1.0,
	}
	if used > 1 && statistic > 0 {
		dist := distuv.ChiSquared{K: float64(used - 1)}
		detail["p_value"] = dist.Survival(statistic)
	}
	if used <= 1 {
		// Single shared support category: the distributions cannot
		// disagree, the statistic is zero by construction.
		detail["degrees_freedom"] = 0
		statistic = 0
	}

	return bias.MetricResult{
		Variable: cohort.Variable,
		Metric:   m.Name(),
		Value:    statistic,
		Valid:    true,
		Detail:   detail,
	}
}
