package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"biascope/domain/bias"
	"biascope/domain/core"
	"biascope/domain/distribution"
	"biascope/domain/variable"
	"biascope/internal/errors"
)

// Study is the declarative description of one bias evaluation: which
// variables to track, which metrics to run per type, how to bin, and
// which composites to produce. Loaded from YAML and validated before it
// reaches the engine.
type Study struct {
	Variables    []variable.Spec              `yaml:"variables"`
	Metrics      map[string][]string          `yaml:"metrics"`
	Binning      distribution.BinningPolicy   `yaml:"binning"`
	Aggregations []StudyAggregation           `yaml:"aggregations"`
	Weights      map[core.VariableKey]float64 `yaml:"weights"`
}

// StudyAggregation names one composite method.
type StudyAggregation struct {
	Method string `yaml:"method"`
}

// LoadStudy parses and validates a study definition file.
func LoadStudy(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read study file %s", path)
	}
	var study Study
	if err := yaml.Unmarshal(data, &study); err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("study file %s is not valid YAML: %v", path, err))
	}
	if err := study.Validate(); err != nil {
		return nil, err
	}
	return &study, nil
}

// Validate checks structural well-formedness; metric-name and type
// compatibility checks happen in the engine's selection validation.
func (s *Study) Validate() error {
	if len(s.Variables) == 0 {
		return errors.ConfigInvalid("study must declare at least one variable")
	}
	seen := make(map[core.VariableKey]bool, len(s.Variables))
	for _, spec := range s.Variables {
		if err := spec.Validate(); err != nil {
			return errors.ConfigInvalid(err.Error())
		}
		if seen[spec.Key] {
			return errors.ConfigInvalid(fmt.Sprintf("duplicate variable %s", spec.Key))
		}
		seen[spec.Key] = true
	}
	if s.Binning.Strategy == "" {
		s.Binning.Strategy = distribution.BinsEqualWidth
	}
	if s.Binning.Bins == 0 {
		s.Binning.Bins = 10
	}
	if err := s.Binning.Validate(); err != nil {
		return errors.ConfigInvalid("invalid binning policy")
	}
	for _, agg := range s.Aggregations {
		if !bias.AggregationMethod(agg.Method).IsValid() {
			return errors.ConfigInvalid(fmt.Sprintf("unknown aggregation method %q", agg.Method))
		}
	}
	return nil
}

// Selection converts the study's metric mapping to the engine's form,
// falling back to nil (engine defaults) when the study omits it.
func (s *Study) Selection() bias.MetricSelection {
	if len(s.Metrics) == 0 {
		return nil
	}
	selection := make(bias.MetricSelection, len(s.Metrics))
	for t, names := range s.Metrics {
		selection[variable.VariableType(t)] = names
	}
	return selection
}

// AggregationSpecs materializes the composite configurations, attaching
// the study weights to weighted methods.
func (s *Study) AggregationSpecs() []bias.AggregationSpec {
	if len(s.Aggregations) == 0 {
		return []bias.AggregationSpec{{Method: bias.AggregateMean}}
	}
	specs := make([]bias.AggregationSpec, 0, len(s.Aggregations))
	for _, agg := range s.Aggregations {
		spec := bias.AggregationSpec{Method: bias.AggregationMethod(agg.Method)}
		if spec.Method == bias.AggregateWeightedMean {
			spec.Weights = s.Weights
		}
		specs = append(specs, spec)
	}
	return specs
}
