package testkit

import (
	"math"
	"math/rand"

	"biascope/domain/core"
	"biascope/domain/variable"
)

// PopulationConfig configures the synthetic population generator
type PopulationConfig struct {
	Size        int     `json:"size"`
	AgeMean     float64 `json:"age_mean"`
	AgeStdDev   float64 `json:"age_std_dev"`
	MissingRate float64 `json:"missing_rate"`
	Seed        int64   `json:"seed"`
}

// DefaultPopulationConfig returns sensible defaults for population generation
func DefaultPopulationConfig() PopulationConfig {
	return PopulationConfig{
		Size:        1000,
		AgeMean:     52.0,
		AgeStdDev:   16.0,
		MissingRate: 0.02,
		Seed:        42,
	}
}

// PopulationGenerator produces deterministic synthetic health-record
// samples for tests and demos. Same config, same series, every run.
type PopulationGenerator struct {
	config PopulationConfig
	rng    *rand.Rand
}

// NewPopulationGenerator creates a new population generator
func NewPopulationGenerator(config PopulationConfig) *PopulationGenerator {
	return &PopulationGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// ContinuousSeries generates a normal series with the configured mean and
// spread, shifted by offset, with the configured fraction of missing
// markers interleaved.
func (g *PopulationGenerator) ContinuousSeries(key core.VariableKey, group variable.Group, offset float64) variable.SampleSeries {
	values := make([]float64, g.config.Size)
	for i := range values {
		if g.rng.Float64() < g.config.MissingRate {
			values[i] = math.NaN()
			continue
		}
		values[i] = g.config.AgeMean + offset + g.rng.NormFloat64()*g.config.AgeStdDev
	}
	return variable.NewContinuousSeries(key, group, values)
}

// CategoricalSeries draws labels from the given categories with the
// given proportions. Proportions not summing to 1 are renormalized; the
// configured missing rate is applied on top.
func (g *PopulationGenerator) CategoricalSeries(key core.VariableKey, group variable.Group, categories []string, proportions []float64) variable.SampleSeries {
	total := 0.0
	for _, p := range proportions {
		total += p
	}

	labels := make([]string, g.config.Size)
	for i := range labels {
		if g.rng.Float64() < g.config.MissingRate {
			labels[i] = ""
			continue
		}
		u := g.rng.Float64() * total
		acc := 0.0
		labels[i] = categories[len(categories)-1]
		for j, p := range proportions {
			acc += p
			if u < acc {
				labels[i] = categories[j]
				break
			}
		}
	}
	return variable.NewCategoricalSeries(key, group, labels)
}
