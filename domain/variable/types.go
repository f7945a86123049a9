package variable

import (
	"fmt"
	"math"

	"biascope/domain/core"
)

// VariableType is the closed set of supported variable kinds. Metrics
// declare which members they apply to at definition time, so mismatches
// are caught during configuration validation rather than per call.
type VariableType string

const (
	TypeContinuous  VariableType = "continuous"
	TypeCategorical VariableType = "categorical"
	TypeOrdinal     VariableType = "ordinal"
)

// IsValid reports whether t is one of the supported variable types.
func (t VariableType) IsValid() bool {
	switch t {
	case TypeContinuous, TypeCategorical, TypeOrdinal:
		return true
	}
	return false
}

// IsCategoricalKind reports whether values are category labels.
// Ordinal variables profile and score like categorical ones, with
// category order fixed by the declared domain.
func (t VariableType) IsCategoricalKind() bool {
	return t == TypeCategorical || t == TypeOrdinal
}

// Spec describes a tracked variable. Immutable; supplied by configuration.
type Spec struct {
	Key  core.VariableKey `json:"key" yaml:"key"`
	Type VariableType     `json:"type" yaml:"type"`

	// Domain is the declared category set for categorical/ordinal
	// variables, in presentation order. Optional.
	Domain []string `json:"domain,omitempty" yaml:"domain,omitempty"`

	// Lower/Upper are optional bounds for continuous variables.
	Lower *float64 `json:"lower,omitempty" yaml:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty" yaml:"upper,omitempty"`
}

// Validate checks structural well-formedness of the spec.
func (s Spec) Validate() error {
	if core.ID(s.Key).IsEmpty() {
		return fmt.Errorf("variable spec requires a key")
	}
	if !s.Type.IsValid() {
		return fmt.Errorf("variable %s: %w: %q", s.Key, core.ErrUnsupportedType, s.Type)
	}
	if s.Type == TypeContinuous && len(s.Domain) > 0 {
		return fmt.Errorf("variable %s: continuous variables cannot declare a category domain", s.Key)
	}
	if s.Lower != nil && s.Upper != nil && *s.Lower >= *s.Upper {
		return fmt.Errorf("variable %s: lower bound must be below upper bound", s.Key)
	}
	return nil
}

// Group identifies which population a series was drawn from.
type Group string

const (
	GroupCohort    Group = "cohort"
	GroupReference Group = "reference"
)

// SampleSeries is one group's observed values for one variable.
// Continuous values use NaN as the missing marker; categorical values
// use the empty string. Never mutated after creation.
type SampleSeries struct {
	Variable core.VariableKey
	Group    Group

	Numeric []float64 // continuous observations
	Labels  []string  // categorical/ordinal observations
}

// NewContinuousSeries builds a series of numeric observations.
func NewContinuousSeries(key core.VariableKey, group Group, values []float64) SampleSeries {
	vals := make([]float64, len(values))
	copy(vals, values)
	return SampleSeries{Variable: key, Group: group, Numeric: vals}
}

// NewCategoricalSeries builds a series of category labels.
func NewCategoricalSeries(key core.VariableKey, group Group, labels []string) SampleSeries {
	vals := make([]string, len(labels))
	copy(vals, labels)
	return SampleSeries{Variable: key, Group: group, Labels: vals}
}

// Len returns the total number of observations, missing included.
func (s SampleSeries) Len() int {
	if s.Numeric != nil {
		return len(s.Numeric)
	}
	return len(s.Labels)
}

// MissingCount returns the number of missing markers in the series.
func (s SampleSeries) MissingCount() int {
	missing := 0
	for _, v := range s.Numeric {
		if math.IsNaN(v) {
			missing++
		}
	}
	for _, l := range s.Labels {
		if l == "" {
			missing++
		}
	}
	return missing
}

// ObservedCount returns the number of usable (non-missing) observations.
func (s SampleSeries) ObservedCount() int {
	return s.Len() - s.MissingCount()
}
