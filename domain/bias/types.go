package bias

import (
	"strconv"

	"biascope/domain/core"
	"biascope/domain/variable"
)

// Reason explains why a result is invalid, or qualifies a defined-by-rule
// value (degenerate_equal). Empty for ordinary valid results.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInsufficientSample Reason = "insufficient_sample"
	ReasonDegenerateEqual    Reason = "degenerate_equal"
	ReasonDegenerateUnequal  Reason = "degenerate_unequal"
	ReasonDomainMismatch     Reason = "domain_mismatch"
	ReasonProfilingError     Reason = "profiling_error"
	ReasonNoValidInputs      Reason = "no_valid_inputs"
)

// MetricResult is one (variable, metric) outcome. Immutable once produced.
// Field names are part of the reporting contract consumed by the
// visualization layer; do not rename.
type MetricResult struct {
	Variable core.VariableKey   `json:"variable"`
	Metric   string             `json:"metric"`
	Value    float64            `json:"value"`
	Valid    bool               `json:"valid"`
	Reason   Reason             `json:"reason,omitempty"`
	Detail   map[string]float64 `json:"detail,omitempty"`
}

// Invalid builds an invalid result carrying only its reason.
func Invalid(key core.VariableKey, metric string, reason Reason) MetricResult {
	return MetricResult{Variable: key, Metric: metric, Valid: false, Reason: reason}
}

// AggregationMethod is the closed set of composite score methods.
type AggregationMethod string

const (
	AggregateMean         AggregationMethod = "mean"
	AggregateWeightedMean AggregationMethod = "weighted_mean"
	AggregateMax          AggregationMethod = "max"
)

// IsValid reports whether m names a supported method.
func (m AggregationMethod) IsValid() bool {
	switch m {
	case AggregateMean, AggregateWeightedMean, AggregateMax:
		return true
	}
	return false
}

// AggregationSpec configures one composite score.
type AggregationSpec struct {
	Method AggregationMethod `json:"method" yaml:"method"`

	// Weights are per-variable weights for weighted_mean. Renormalized
	// over the variables that produced at least one valid result.
	Weights map[core.VariableKey]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// Contribution records one variable's part in a composite score.
type Contribution struct {
	Variable core.VariableKey `json:"variable"`
	Weight   float64          `json:"weight"`
	Score    float64          `json:"score"`
}

// CompositeScore is an aggregate bias indicator. Value is nil when no
// variable produced a valid result; a 0 score must never stand in for
// "bias could not be measured".
type CompositeScore struct {
	Method        AggregationMethod `json:"method"`
	Value         *float64          `json:"value"`
	Reason        Reason            `json:"reason,omitempty"`
	Contributions []Contribution    `json:"contributions,omitempty"`
}

// MetricSelection maps each variable type to the metric names to run.
type MetricSelection map[variable.VariableType][]string

// BiasReport is the terminal artifact handed to the reporting layer.
// Results keep the input variable order; the core never mutates a report
// after assembly.
type BiasReport struct {
	ID          core.ReportID  `json:"id"`
	CohortID    core.CohortID  `json:"cohort_id"`
	ReferenceID core.CohortID  `json:"reference_id,omitempty"`
	GeneratedAt core.Timestamp `json:"generated_at"`

	Results    []MetricResult   `json:"results"`
	Composites []CompositeScore `json:"composites"`

	Fingerprint core.ReportFingerprint `json:"fingerprint"`
}

// ComputeFingerprint derives the determinism fingerprint from the ordered
// results. Values are formatted with full precision so byte-identical
// inputs reproduce byte-identical fingerprints.
func (r *BiasReport) ComputeFingerprint() core.ReportFingerprint {
	parts := make(map[string]string, len(r.Results))
	for i, res := range r.Results {
		key := strconv.Itoa(i) + ":" + res.Variable.String() + ":" + res.Metric
		val := strconv.FormatFloat(res.Value, 'g', -1, 64) +
			":" + strconv.FormatBool(res.Valid) + ":" + string(res.Reason)
		parts[key] = val
	}
	return core.ComputeReportFingerprint(parts)
}

// ValidResults filters the valid metric results.
func (r *BiasReport) ValidResults() []MetricResult {
	out := make([]MetricResult, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Valid {
			out = append(out, res)
		}
	}
	return out
}
