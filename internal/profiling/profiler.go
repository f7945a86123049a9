package profiling

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"biascope/domain/core"
	"biascope/domain/distribution"
	"biascope/domain/variable"
)

// Profiler converts raw sample series into typed distribution profiles.
// Pure: no state crosses calls, so one Profiler is safe for concurrent
// use across variables.
type Profiler struct{}

// NewProfiler creates a new profiler
func NewProfiler() *Profiler {
	return &Profiler{}
}

// Shared bundles the binning decision for one variable. It is derived
// once per (variable, reference) pair and reused verbatim for both
// groups, so positional buckets always line up.
type Shared struct {
	Bins       distribution.SharedBins
	Categories distribution.SharedCategories
}

// DeriveShared computes the shared bucket structure for a variable.
// Continuous edges come from the reference series (the first argument);
// categorical sets are the union of the declared domain and every
// observed category across all given series.
func (p *Profiler) DeriveShared(spec variable.Spec, policy distribution.BinningPolicy, reference variable.SampleSeries, others ...variable.SampleSeries) (Shared, error) {
	if spec.Type.IsCategoricalKind() {
		all := append([]variable.SampleSeries{reference}, others...)
		return Shared{Categories: deriveCategories(spec, all)}, nil
	}
	if spec.Type != variable.TypeContinuous {
		return Shared{}, core.NewProfilingError(spec.Key, core.ErrUnsupportedType)
	}
	if err := policy.Validate(); err != nil {
		return Shared{}, core.NewProfilingError(spec.Key, err)
	}
	bins, err := deriveEdges(spec, policy, reference)
	if err != nil {
		return Shared{}, core.NewProfilingError(spec.Key, err)
	}
	return Shared{Bins: bins}, nil
}

// Profile converts one series into a distribution profile using the
// shared bucket structure. Missing markers are excluded from bucket
// counts but tracked; profiles below the policy minimum succeed with
// the low-confidence flag set.
func (p *Profiler) Profile(series variable.SampleSeries, spec variable.Spec, policy distribution.BinningPolicy, shared Shared) (*distribution.Profile, error) {
	switch {
	case spec.Type == variable.TypeContinuous:
		return p.profileContinuous(series, spec, policy, shared.Bins)
	case spec.Type.IsCategoricalKind():
		return p.profileCategorical(series, spec, policy, shared.Categories)
	default:
		return nil, core.NewProfilingError(spec.Key, core.ErrUnsupportedType)
	}
}

func (p *Profiler) profileContinuous(series variable.SampleSeries, spec variable.Spec, policy distribution.BinningPolicy, bins distribution.SharedBins) (*distribution.Profile, error) {
	usable := make([]float64, 0, len(series.Numeric))
	missing := 0
	for _, v := range series.Numeric {
		if math.IsNaN(v) {
			missing++
			continue
		}
		usable = append(usable, v)
	}
	if len(usable) == 0 {
		return nil, core.NewProfilingError(spec.Key, core.ErrEmptySeries)
	}
	if bins.BinCount() == 0 {
		return nil, core.NewProfilingError(spec.Key, core.ErrBinningInvalid)
	}

	mean, err := stats.Mean(usable)
	if err != nil {
		return nil, core.NewProfilingError(spec.Key, err)
	}
	// Sample variance needs two observations; a singleton profiles with
	// zero variance and the low-confidence flag.
	variance := 0.0
	if len(usable) > 1 {
		variance, err = stats.SampleVariance(usable)
		if err != nil {
			return nil, core.NewProfilingError(spec.Key, err)
		}
	}

	counts := make([]int, bins.BinCount())
	for _, v := range usable {
		counts[locateBin(bins.Edges, v)]++
	}

	edges := make([]float64, len(bins.Edges))
	copy(edges, bins.Edges)

	return &distribution.Profile{
		Variable:      series.Variable,
		Group:         series.Group,
		Kind:          distribution.KindContinuous,
		Count:         len(usable),
		MissingCount:  missing,
		Mean:          mean,
		Variance:      variance,
		Edges:         edges,
		BinCounts:     counts,
		LowConfidence: len(usable) < policy.EffectiveMinCount(),
		Fingerprint:   bins.Fingerprint,
	}, nil
}

func (p *Profiler) profileCategorical(series variable.SampleSeries, spec variable.Spec, policy distribution.BinningPolicy, cats distribution.SharedCategories) (*distribution.Profile, error) {
	if len(cats.Categories) == 0 {
		return nil, core.NewProfilingError(spec.Key, core.ErrBinningInvalid)
	}

	counts := make([]int, len(cats.Categories))
	usable := 0
	missing := 0
	for _, label := range series.Labels {
		if label == "" {
			missing++
			continue
		}
		counts[cats.Index(label)]++
		usable++
	}
	if usable == 0 {
		return nil, core.NewProfilingError(spec.Key, core.ErrEmptySeries)
	}

	categories := make([]string, len(cats.Categories))
	copy(categories, cats.Categories)

	return &distribution.Profile{
		Variable:       series.Variable,
		Group:          series.Group,
		Kind:           distribution.KindCategorical,
		Count:          usable,
		MissingCount:   missing,
		Categories:     categories,
		CategoryCounts: counts,
		LowConfidence:  usable < policy.EffectiveMinCount(),
		Fingerprint:    cats.Fingerprint,
	}, nil
}

// deriveCategories builds the ordered shared category set: declared
// domain order first, then observed extras only when no domain was
// declared (sorted for determinism), then the reserved other bucket.
// Zero-count categories are retained downstream, never dropped.
func deriveCategories(spec variable.Spec, series []variable.SampleSeries) distribution.SharedCategories {
	var ordered []string
	if len(spec.Domain) > 0 {
		ordered = append(ordered, spec.Domain...)
	} else {
		seen := make(map[string]bool)
		for _, s := range series {
			for _, label := range s.Labels {
				if label != "" && !seen[label] {
					seen[label] = true
					ordered = append(ordered, label)
				}
			}
		}
		sort.Strings(ordered)
	}
	ordered = append(ordered, distribution.OtherBucket)
	return distribution.NewSharedCategories(ordered)
}

// deriveEdges computes continuous bin edges from the reference series.
func deriveEdges(spec variable.Spec, policy distribution.BinningPolicy, reference variable.SampleSeries) (distribution.SharedBins, error) {
	usable := make([]float64, 0, len(reference.Numeric))
	for _, v := range reference.Numeric {
		if !math.IsNaN(v) {
			usable = append(usable, v)
		}
	}
	if len(usable) == 0 {
		return distribution.SharedBins{}, core.ErrEmptySeries
	}

	lo, _ := stats.Min(usable)
	hi, _ := stats.Max(usable)
	if spec.Lower != nil {
		lo = *spec.Lower
	}
	if spec.Upper != nil {
		hi = *spec.Upper
	}
	// A constant reference still needs a non-degenerate range so cohort
	// values on either side land in distinct end bins.
	if hi <= lo {
		lo -= 0.5
		hi += 0.5
	}

	if policy.Strategy == distribution.BinsQuantile {
		edges, ok := quantileEdges(usable, policy.Bins, lo, hi)
		if ok {
			return distribution.NewSharedBins(distribution.BinsQuantile, edges), nil
		}
		// Heavy ties collapse quantile edges; equal width keeps the
		// requested bin count and stays deterministic.
	}

	edges := make([]float64, policy.Bins+1)
	width := (hi - lo) / float64(policy.Bins)
	for i := 0; i <= policy.Bins; i++ {
		edges[i] = lo + width*float64(i)
	}
	edges[policy.Bins] = hi
	return distribution.NewSharedBins(distribution.BinsEqualWidth, edges), nil
}

func quantileEdges(usable []float64, bins int, lo, hi float64) ([]float64, bool) {
	edges := make([]float64, bins+1)
	edges[0] = lo
	edges[bins] = hi
	for i := 1; i < bins; i++ {
		q, err := stats.Percentile(usable, float64(i)*100.0/float64(bins))
		if err != nil {
			return nil, false
		}
		edges[i] = q
	}
	for i := 1; i <= bins; i++ {
		if edges[i] <= edges[i-1] {
			return nil, false
		}
	}
	return edges, true
}

// locateBin finds the positional bin for a value. Values outside the
// shared range clamp into the end bins so cohort observations beyond the
// reference span still count.
func locateBin(edges []float64, v float64) int {
	last := len(edges) - 2
	if v < edges[0] {
		return 0
	}
	if v >= edges[len(edges)-1] {
		return last
	}
	// Binary search over the upper edges.
	lo, hi := 0, last
	for lo < hi {
		mid := (lo + hi) / 2
		if v >= edges[mid+1] {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
