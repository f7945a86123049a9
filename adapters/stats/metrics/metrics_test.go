package metrics

import (
	"math"
	"testing"

	"biascope/domain/bias"
	"biascope/domain/distribution"
	"biascope/domain/variable"
	"biascope/internal/profiling"
)

func buildContinuousPair(t *testing.T, cohortVals, refVals []float64, bins int) (*distribution.Profile, *distribution.Profile) {
	t.Helper()
	spec := variable.Spec{Key: "age", Type: variable.TypeContinuous}
	policy := distribution.BinningPolicy{Strategy: distribution.BinsEqualWidth, Bins: bins}
	cohort := variable.NewContinuousSeries("age", variable.GroupCohort, cohortVals)
	reference := variable.NewContinuousSeries("age", variable.GroupReference, refVals)

	p := profiling.NewProfiler()
	shared, err := p.DeriveShared(spec, policy, reference, cohort)
	if err != nil {
		t.Fatalf("DeriveShared failed: %v", err)
	}
	cp, err := p.Profile(cohort, spec, policy, shared)
	if err != nil {
		t.Fatalf("cohort profile failed: %v", err)
	}
	rp, err := p.Profile(reference, spec, policy, shared)
	if err != nil {
		t.Fatalf("reference profile failed: %v", err)
	}
	return cp, rp
}

func buildCategoricalPair(t *testing.T, domain, cohortLabels, refLabels []string) (*distribution.Profile, *distribution.Profile) {
	t.Helper()
	spec := variable.Spec{Key: "gender", Type: variable.TypeCategorical, Domain: domain}
	policy := distribution.BinningPolicy{Strategy: distribution.BinsEqualWidth, Bins: 4}
	cohort := variable.NewCategoricalSeries("gender", variable.GroupCohort, cohortLabels)
	reference := variable.NewCategoricalSeries("gender", variable.GroupReference, refLabels)

	p := profiling.NewProfiler()
	shared, err := p.DeriveShared(spec, policy, reference, cohort)
	if err != nil {
		t.Fatalf("DeriveShared failed: %v", err)
	}
	cp, err := p.Profile(cohort, spec, policy, shared)
	if err != nil {
		t.Fatalf("cohort profile failed: %v", err)
	}
	rp, err := p.Profile(reference, spec, policy, shared)
	if err != nil {
		t.Fatalf("reference profile failed: %v", err)
	}
	return cp, rp
}

func repeatLabels(label string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = label
	}
	return out
}

func TestIdenticalDistributionsScoreZero(t *testing.T) {
	vals := []float64{10, 20, 30, 40, 50, 60, 70, 80}
	cp, rp := buildContinuousPair(t, vals, vals, 4)

	for _, name := range []string{"smd", "ks", "js_divergence"} {
		m, ok := Lookup(name)
		if !ok {
			t.Fatalf("metric %s not registered", name)
		}
		res := m.Compute(cp, rp, Options{})
		if !res.Valid {
			t.Fatalf("%s: expected valid result, got reason %s", name, res.Reason)
		}
		if math.Abs(res.Value) > 1e-12 {
			t.Errorf("%s on identical distributions = %g, want 0", name, res.Value)
		}
	}

	labels := append(repeatLabels("male", 30), repeatLabels("female", 20)...)
	ccp, crp := buildCategoricalPair(t, []string{"male", "female"}, labels, labels)
	for _, name := range []string{"chi_square", "tvd", "js_divergence"} {
		m, _ := Lookup(name)
		res := m.Compute(ccp, crp, Options{})
		if !res.Valid {
			t.Fatalf("%s: expected valid result, got reason %s", name, res.Reason)
		}
		if math.Abs(res.Value) > 1e-12 {
			t.Errorf("%s on identical tables = %g, want 0", name, res.Value)
		}
	}
}

func TestMagnitudeSymmetricUnderGroupSwap(t *testing.T) {
	a := []float64{10, 15, 20, 25, 30, 35, 40, 45}
	b := []float64{30, 35, 40, 45, 50, 55, 60, 65}
	cp, rp := buildContinuousPair(t, a, b, 5)

	for _, name := range []string{"smd", "ks", "js_divergence"} {
		m, _ := Lookup(name)
		forward := m.Compute(cp, rp, Options{})
		backward := m.Compute(rp, cp, Options{})
		if !forward.Valid || !backward.Valid {
			t.Fatalf("%s: both directions should be valid", name)
		}
		if math.Abs(math.Abs(forward.Value)-math.Abs(backward.Value)) > 1e-12 {
			t.Errorf("%s magnitude not symmetric: %g vs %g", name, forward.Value, backward.Value)
		}
	}

	// SMD sign flips under swap.
	smd, _ := Lookup("smd")
	forward := smd.Compute(cp, rp, Options{})
	backward := smd.Compute(rp, cp, Options{})
	if forward.Value >= 0 {
		t.Errorf("cohort below reference should give negative smd, got %g", forward.Value)
	}
	if math.Abs(forward.Value+backward.Value) > 1e-12 {
		t.Errorf("smd should negate under swap: %g vs %g", forward.Value, backward.Value)
	}
}

func TestBoundedMetricsStayInRange(t *testing.T) {
	// Declared bounds pin the bin range so the two groups occupy fully
	// disjoint bins, pushing the bounded metrics to their caps.
	lower, upper := 0.0, 100.0
	spec := variable.Spec{Key: "age", Type: variable.TypeContinuous, Lower: &lower, Upper: &upper}
	policy := distribution.BinningPolicy{Strategy: distribution.BinsEqualWidth, Bins: 5}
	cohort := variable.NewContinuousSeries("age", variable.GroupCohort,
		[]float64{62, 68, 75, 81, 88, 95})
	reference := variable.NewContinuousSeries("age", variable.GroupReference,
		[]float64{2, 8, 15, 21, 28, 35})

	p := profiling.NewProfiler()
	shared, err := p.DeriveShared(spec, policy, reference, cohort)
	if err != nil {
		t.Fatalf("DeriveShared failed: %v", err)
	}
	cp, err := p.Profile(cohort, spec, policy, shared)
	if err != nil {
		t.Fatalf("cohort profile failed: %v", err)
	}
	rp, err := p.Profile(reference, spec, policy, shared)
	if err != nil {
		t.Fatalf("reference profile failed: %v", err)
	}

	ks, _ := Lookup("ks")
	res := ks.Compute(cp, rp, Options{})
	if res.Value < 0 || res.Value > 1 {
		t.Errorf("ks out of [0,1]: %g", res.Value)
	}
	if res.Value < 0.99 {
		t.Errorf("disjoint supports should give ks near 1, got %g", res.Value)
	}

	js, _ := Lookup("js_divergence")
	res = js.Compute(cp, rp, Options{})
	if res.Value < 0 || res.Value > math.Ln2 {
		t.Errorf("js out of [0, ln2]: %g", res.Value)
	}
	if math.Abs(res.Value-math.Ln2) > 1e-9 {
		t.Errorf("disjoint supports should reach ln2, got %g", res.Value)
	}

	cohortLabels := repeatLabels("male", 40)
	refLabels := repeatLabels("female", 40)
	ccp, crp := buildCategoricalPair(t, []string{"male", "female"}, cohortLabels, refLabels)
	tvd, _ := Lookup("tvd")
	res = tvd.Compute(ccp, crp, Options{})
	if math.Abs(res.Value-1.0) > 1e-12 {
		t.Errorf("disjoint tables should give tvd 1, got %g", res.Value)
	}
}

func TestSMDDegenerateVarianceRules(t *testing.T) {
	// Both groups constant at the same value: defined as exactly zero.
	same := []float64{5, 5, 5, 5}
	cp, rp := buildContinuousPair(t, same, same, 2)
	smd, _ := Lookup("smd")
	res := smd.Compute(cp, rp, Options{})
	if !res.Valid || res.Value != 0 {
		t.Fatalf("equal constants: want valid 0, got valid=%v value=%g", res.Valid, res.Value)
	}
	if res.Reason != bias.ReasonDegenerateEqual {
		t.Errorf("reason = %s, want %s", res.Reason, bias.ReasonDegenerateEqual)
	}

	// Both constant at different values: undefined, never infinity.
	cp2, rp2 := buildContinuousPair(t, []float64{5, 5, 5}, []float64{9, 9, 9}, 2)
	res = smd.Compute(cp2, rp2, Options{})
	if res.Valid {
		t.Fatalf("unequal constants: want invalid, got value %g", res.Value)
	}
	if res.Reason != bias.ReasonDegenerateUnequal {
		t.Errorf("reason = %s, want %s", res.Reason, bias.ReasonDegenerateUnequal)
	}
}

func TestZeroVarianceCohortStillMeasurableByJS(t *testing.T) {
	// Cohort concentrated at one value inside a dispersed reference: SMD
	// is undefined (a constant group must not be scaled by the other
	// group's spread), but JS still sees the shape difference.
	cohort := []float64{30, 30, 30, 30}
	reference := []float64{10, 30, 50, 70, 90}
	cp, rp := buildContinuousPair(t, cohort, reference, 4)

	smd, _ := Lookup("smd")
	res := smd.Compute(cp, rp, Options{})
	if res.Valid {
		t.Errorf("constant cohort with shifted mean should be invalid, got value %g", res.Value)
	}
	if res.Reason != bias.ReasonDegenerateUnequal {
		t.Errorf("reason = %s, want %s", res.Reason, bias.ReasonDegenerateUnequal)
	}

	js, _ := Lookup("js_divergence")
	res = js.Compute(cp, rp, Options{})
	if !res.Valid || res.Value <= 0 {
		t.Errorf("concentrated cohort should diverge from dispersed reference, got %g", res.Value)
	}
}

func TestConstantCohortAgainstMixedReference(t *testing.T) {
	// Ten constant cohort values against a half-5.0 half-7.0 reference:
	// the cohort variance is zero and the means differ, so SMD is
	// undefined even though the reference varies, while JS on a 2-bin
	// shared histogram still reports positive divergence.
	cohortVals := make([]float64, 10)
	for i := range cohortVals {
		cohortVals[i] = 5.0
	}
	refVals := []float64{5, 5, 5, 5, 5, 7, 7, 7, 7, 7}
	cp, rp := buildContinuousPair(t, cohortVals, refVals, 2)

	smd, _ := Lookup("smd")
	res := smd.Compute(cp, rp, Options{})
	if res.Valid {
		t.Fatalf("zero-variance cohort with shifted mean: want invalid, got value %g", res.Value)
	}
	if res.Reason != bias.ReasonDegenerateUnequal {
		t.Errorf("reason = %s, want %s", res.Reason, bias.ReasonDegenerateUnequal)
	}

	// Constant cohort with the matching mean stays defined as exactly 0.
	matched := make([]float64, 10)
	for i := range matched {
		matched[i] = (5.0*5 + 7.0*5) / 10
	}
	mcp, mrp := buildContinuousPair(t, matched, refVals, 2)
	res = smd.Compute(mcp, mrp, Options{})
	if !res.Valid || res.Value != 0 {
		t.Errorf("matched means: want valid 0, got valid=%v value=%g", res.Valid, res.Value)
	}
	if res.Reason != bias.ReasonDegenerateEqual {
		t.Errorf("reason = %s, want %s", res.Reason, bias.ReasonDegenerateEqual)
	}

	js, _ := Lookup("js_divergence")
	res = js.Compute(cp, rp, Options{})
	if !res.Valid || res.Value <= 0 {
		t.Errorf("half the reference mass sits in a bin the cohort never reaches, want positive divergence, got %g", res.Value)
	}
}

func TestInsufficientSampleGuard(t *testing.T) {
	cp, rp := buildContinuousPair(t, []float64{5}, []float64{1, 2, 3, 4}, 2)
	for _, name := range []string{"smd", "ks", "js_divergence"} {
		m, _ := Lookup(name)
		res := m.Compute(cp, rp, Options{})
		if res.Valid {
			t.Errorf("%s: single-observation cohort should be invalid", name)
		}
		if res.Reason != bias.ReasonInsufficientSample {
			t.Errorf("%s: reason = %s, want %s", name, res.Reason, bias.ReasonInsufficientSample)
		}
		if res.Variable != "age" {
			t.Errorf("%s: invalid result lost its variable key: %q", name, res.Variable)
		}
	}
}

func TestDomainMismatchGuard(t *testing.T) {
	ccp, _ := buildCategoricalPair(t, []string{"male", "female"},
		repeatLabels("male", 10), repeatLabels("female", 10))
	_, other := buildCategoricalPair(t, []string{"a", "b", "c"},
		repeatLabels("a", 10), repeatLabels("b", 10))

	tvd, _ := Lookup("tvd")
	res := tvd.Compute(ccp, other, Options{})
	if res.Valid {
		t.Fatal("mismatched category structures should be invalid")
	}
	if res.Reason != bias.ReasonDomainMismatch {
		t.Errorf("reason = %s, want %s", res.Reason, bias.ReasonDomainMismatch)
	}
}

func TestChiSquareMatchedProportions(t *testing.T) {
	// 50/50 in both groups: statistic exactly zero, p-value 1.
	labels := append(repeatLabels("male", 50), repeatLabels("female", 50)...)
	ccp, crp := buildCategoricalPair(t, []string{"male", "female"}, labels, labels)

	chi, _ := Lookup("chi_square")
	res := chi.Compute(ccp, crp, Options{})
	if !res.Valid || res.Value != 0 {
		t.Fatalf("matched proportions: want valid 0, got valid=%v value=%g", res.Valid, res.Value)
	}
	if res.Detail["p_value"] != 1.0 {
		t.Errorf("p_value = %g, want 1", res.Detail["p_value"])
	}
	if res.Detail["degrees_freedom"] != 1 {
		t.Errorf("degrees_freedom = %g, want 1", res.Detail["degrees_freedom"])
	}
}

func TestChiSquareSkipsEmptySharedCategories(t *testing.T) {
	// Declared domain category observed in neither group contributes no
	// expected count and no degree of freedom.
	domain := []string{"male", "female", "other"}
	cohortLabels := append(repeatLabels("male", 30), repeatLabels("female", 10)...)
	refLabels := append(repeatLabels("male", 20), repeatLabels("female", 20)...)
	ccp, crp := buildCategoricalPair(t, domain, cohortLabels, refLabels)

	chi, _ := Lookup("chi_square")
	res := chi.Compute(ccp, crp, Options{})
	if !res.Valid {
		t.Fatalf("expected valid result, got %s", res.Reason)
	}
	if res.Detail["degrees_freedom"] != 1 {
		t.Errorf("degrees_freedom = %g, want 1 (empty categories skipped)", res.Detail["degrees_freedom"])
	}
	if res.Value <= 0 {
		t.Errorf("shifted proportions should give positive statistic, got %g", res.Value)
	}
	if p := res.Detail["p_value"]; p <= 0 || p >= 1 {
		t.Errorf("p_value = %g, want in (0,1)", p)
	}
}

func TestDefaultSelectionCoversEveryType(t *testing.T) {
	selection := DefaultSelection()
	for _, vt := range []variable.VariableType{variable.TypeContinuous, variable.TypeCategorical, variable.TypeOrdinal} {
		names := selection[vt]
		if len(names) == 0 {
			t.Fatalf("no default metrics for %s", vt)
		}
		for _, name := range names {
			m, ok := Lookup(name)
			if !ok {
				t.Fatalf("default selection names unknown metric %s", name)
			}
			if !m.AppliesTo(vt) {
				t.Errorf("default metric %s does not apply to %s", name, vt)
			}
		}
	}
}
