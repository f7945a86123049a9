package engine

import (
	"math"

	"biascope/domain/bias"
	"biascope/domain/core"
)

// Aggregator folds per-variable metric results into composite scores.
type Aggregator struct{}

// NewAggregator creates a new aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// variableScore is the collapsed per-variable bias magnitude: the mean of
// the absolute values of that variable's valid metric results. Absolute
// values keep sign conventions (SMD flips under group swap) from
// cancelling real divergence.
type variableScore struct {
	key   core.VariableKey
	score float64
	valid int
}

// Aggregate builds one composite score. Invalid metric results never
// enter a denominator; when no variable produced a valid result the
// composite carries a nil value and reason no_valid_inputs, because a 0
// must never be read as "no bias" when bias could not be measured.
func (a *Aggregator) Aggregate(results []bias.MetricResult, spec bias.AggregationSpec) (bias.CompositeScore, error) {
	if !spec.Method.IsValid() {
		return bias.CompositeScore{}, core.NewConfigurationError(string(spec.Method), core.ErrUnknownAggregation)
	}

	scores := collapseByVariable(results)
	if len(scores) == 0 {
		return bias.CompositeScore{
			Method: spec.Method,
			Reason: bias.ReasonNoValidInputs,
		}, nil
	}

	switch spec.Method {
	case bias.AggregateMean:
		return a.mean(scores), nil
	case bias.AggregateWeightedMean:
		return a.weightedMean(scores, spec.Weights), nil
	default:
		return a.max(scores), nil
	}
}

func (a *Aggregator) mean(scores []variableScore) bias.CompositeScore {
	weight := 1.0 / float64(len(scores))
	sum := 0.0
	contributions := make([]bias.Contribution, 0, len(scores))
	for _, s := range scores {
		sum += s.score
		contributions = append(contributions, bias.Contribution{
			Variable: s.key,
			Weight:   weight,
			Score:    s.score,
		})
	}
	value := sum / float64(len(scores))
	return bias.CompositeScore{
		Method:        bias.AggregateMean,
		Value:         &value,
		Contributions: contributions,
	}
}

// weightedMean renormalizes the caller-supplied weights over the
// variables that produced at least one valid result. Variables without a
// supplied weight default to 1.
func (a *Aggregator) weightedMean(scores []variableScore, weights map[core.VariableKey]float64) bias.CompositeScore {
	totalWeight := 0.0
	for _, s := range scores {
		totalWeight += weightFor(weights, s.key)
	}
	if totalWeight <= 0 {
		return bias.CompositeScore{
			Method: bias.AggregateWeightedMean,
			Reason: bias.ReasonNoValidInputs,
		}
	}

	sum := 0.0
	contributions := make([]bias.Contribution, 0, len(scores))
	for _, s := range scores {
		w := weightFor(weights, s.key) / totalWeight
		sum += w * s.score
		contributions = append(contributions, bias.Contribution{
			Variable: s.key,
			Weight:   w,
			Score:    s.score,
		})
	}
	return bias.CompositeScore{
		Method:        bias.AggregateWeightedMean,
		Value:         &sum,
		Contributions: contributions,
	}
}

// max reports the most-biased variable; its contribution carries weight 1.
func (a *Aggregator) max(scores []variableScore) bias.CompositeScore {
	best := 0
	for i, s := range scores {
		if s.score > scores[best].score {
			best = i
		}
	}
	contributions := make([]bias.Contribution, 0, len(scores))
	for i, s := range scores {
		w := 0.0
		if i == best {
			w = 1.0
		}
		contributions = append(contributions, bias.Contribution{
			Variable: s.key,
			Weight:   w,
			Score:    s.score,
		})
	}
	value := scores[best].score
	return bias.CompositeScore{
		Method:        bias.AggregateMax,
		Value:         &value,
		Contributions: contributions,
	}
}

func weightFor(weights map[core.VariableKey]float64, key core.VariableKey) float64 {
	if weights == nil {
		return 1.0
	}
	if w, ok := weights[key]; ok {
		if w < 0 {
			return 0
		}
		return w
	}
	return 1.0
}

// collapseByVariable folds metric results into one score per variable in
// first-appearance order. Variables whose results are all invalid are
// excluded entirely, never counted as zero.
func collapseByVariable(results []bias.MetricResult) []variableScore {
	order := make([]core.VariableKey, 0)
	acc := make(map[core.VariableKey]*variableScore)
	for _, r := range results {
		if !r.Valid {
			continue
		}
		s, ok := acc[r.Variable]
		if !ok {
			s = &variableScore{key: r.Variable}
			acc[r.Variable] = s
			order = append(order, r.Variable)
		}
		s.score += math.Abs(r.Value)
		s.valid++
	}

	out := make([]variableScore, 0, len(order))
	for _, key := range order {
		s := acc[key]
		s.score /= float64(s.valid)
		out = append(out, *s)
	}
	return out
}
