package distribution

import (
	"math"

	"biascope/domain/core"
	"biascope/domain/variable"
)

// OtherBucket collects observed categories outside the declared domain,
// so cohort and reference profiles always share an identical category set.
const OtherBucket = "__other__"

// BinStrategy selects how shared bin edges are derived.
type BinStrategy string

const (
	BinsEqualWidth BinStrategy = "equal_width"
	BinsQuantile   BinStrategy = "quantile"
)

// BinningPolicy configures continuous profiling. Immutable.
type BinningPolicy struct {
	Strategy BinStrategy `json:"strategy" yaml:"strategy"`
	Bins     int         `json:"bins" yaml:"bins"`

	// MinCount is the minimum usable observations before a profile is
	// flagged low-confidence. Defaults to 2 when zero.
	MinCount int `json:"min_count" yaml:"min_count"`
}

// EffectiveMinCount applies the default minimum.
func (p BinningPolicy) EffectiveMinCount() int {
	if p.MinCount <= 0 {
		return 2
	}
	return p.MinCount
}

// Validate checks the policy is usable for continuous profiling.
func (p BinningPolicy) Validate() error {
	switch p.Strategy {
	case BinsEqualWidth, BinsQuantile:
	default:
		return core.ErrBinningInvalid
	}
	if p.Bins < 2 {
		return core.ErrBinningInvalid
	}
	return nil
}

// SharedBins carries one set of bin edges used identically for the cohort
// and reference profiles of a variable. Derived once, then passed
// explicitly into both profiling calls; never re-derived per group.
type SharedBins struct {
	Edges       []float64
	Fingerprint core.BinningFingerprint
}

// NewSharedBins freezes a set of edges and fingerprints them.
func NewSharedBins(strategy BinStrategy, edges []float64) SharedBins {
	frozen := make([]float64, len(edges))
	copy(frozen, edges)
	return SharedBins{
		Edges:       frozen,
		Fingerprint: core.ComputeBinningFingerprint(string(strategy), frozen),
	}
}

// BinCount returns the number of bins the edges describe.
func (b SharedBins) BinCount() int {
	if len(b.Edges) < 2 {
		return 0
	}
	return len(b.Edges) - 1
}

// Kind discriminates the two profile shapes.
type Kind string

const (
	KindContinuous  Kind = "continuous"
	KindCategorical Kind = "categorical"
)

// Profile is the normalized distribution summary for one series.
// Value-like: produced fresh per run and never mutated afterwards.
type Profile struct {
	Variable core.VariableKey `json:"variable"`
	Group    variable.Group   `json:"group"`
	Kind     Kind             `json:"kind"`

	// Count is the number of usable observations; bucket counts always
	// sum to Count. Missing markers are excluded but tracked.
	Count        int `json:"count"`
	MissingCount int `json:"missing_count"`

	// Continuous summary. Variance is the sample variance.
	Mean     float64 `json:"mean,omitempty"`
	Variance float64 `json:"variance,omitempty"`

	// Continuous histogram on shared edges (len(Edges) == len(BinCounts)+1).
	Edges     []float64 `json:"edges,omitempty"`
	BinCounts []int     `json:"bin_counts,omitempty"`

	// Categorical frequency table. Categories keep declared-domain order
	// and retain zero-count entries so positions stay comparable.
	Categories     []string `json:"categories,omitempty"`
	CategoryCounts []int    `json:"category_counts,omitempty"`

	// LowConfidence marks profiles built from fewer usable observations
	// than the policy minimum.
	LowConfidence bool `json:"low_confidence"`

	Fingerprint core.BinningFingerprint `json:"fingerprint"`
}

// Buckets returns the positional counts regardless of kind.
func (p *Profile) Buckets() []int {
	if p.Kind == KindContinuous {
		return p.BinCounts
	}
	return p.CategoryCounts
}

// Proportions normalizes bucket counts to probability mass. Returns nil
// when the profile holds no usable observations.
func (p *Profile) Proportions() []float64 {
	buckets := p.Buckets()
	if p.Count == 0 || len(buckets) == 0 {
		return nil
	}
	props := make([]float64, len(buckets))
	total := float64(p.Count)
	for i, c := range buckets {
		props[i] = float64(c) / total
	}
	return props
}

// Comparable reports whether two profiles were built on the identical
// bucket structure. The profiler contract guarantees this for paired
// profiles; metrics re-check defensively.
func (p *Profile) Comparable(other *Profile) bool {
	if p == nil || other == nil || p.Kind != other.Kind {
		return false
	}
	switch p.Kind {
	case KindContinuous:
		if len(p.Edges) != len(other.Edges) {
			return false
		}
		for i := range p.Edges {
			if p.Edges[i] != other.Edges[i] && !(math.IsInf(p.Edges[i], 0) && math.IsInf(other.Edges[i], 0)) {
				return false
			}
		}
		return true
	case KindCategorical:
		if len(p.Categories) != len(other.Categories) {
			return false
		}
		for i := range p.Categories {
			if p.Categories[i] != other.Categories[i] {
				return false
			}
		}
		return true
	}
	return false
}
