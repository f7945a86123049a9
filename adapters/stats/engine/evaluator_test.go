package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"biascope/domain/bias"
	"biascope/domain/core"
	"biascope/domain/distribution"
	"biascope/domain/variable"
	"biascope/internal/testkit"
)

func testRequest() Request {
	ageSpec := variable.Spec{Key: "age", Type: variable.TypeContinuous}
	genderSpec := variable.Spec{
		Key:    "gender",
		Type:   variable.TypeCategorical,
		Domain: []string{"male", "female"},
	}

	return Request{
		Variables: []VariableInput{
			{
				Spec: ageSpec,
				Cohort: variable.NewContinuousSeries("age", variable.GroupCohort,
					[]float64{61, 64, 67, 70, 72, 75}),
				Reference: variable.NewContinuousSeries("age", variable.GroupReference,
					[]float64{35, 42, 48, 55, 61, 68, 74, 80}),
			},
			{
				Spec: genderSpec,
				Cohort: variable.NewCategoricalSeries("gender", variable.GroupCohort,
					[]string{"male", "male", "male", "female"}),
				Reference: variable.NewCategoricalSeries("gender", variable.GroupReference,
					[]string{"male", "female", "male", "female", "female", "male"}),
			},
		},
		Selection: bias.MetricSelection{
			variable.TypeContinuous:  {"smd", "ks", "js_divergence"},
			variable.TypeCategorical: {"chi_square", "tvd"},
		},
		Binning: distribution.BinningPolicy{Strategy: distribution.BinsEqualWidth, Bins: 5},
	}
}

func TestEvaluateProducesOrderedResults(t *testing.T) {
	e := NewEvaluator()
	results, err := e.Evaluate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	wantOrder := []struct {
		variable core.VariableKey
		metric   string
	}{
		{"age", "smd"},
		{"age", "ks"},
		{"age", "js_divergence"},
		{"gender", "chi_square"},
		{"gender", "tvd"},
	}
	if len(results) != len(wantOrder) {
		t.Fatalf("got %d results, want %d", len(results), len(wantOrder))
	}
	for i, want := range wantOrder {
		if results[i].Variable != want.variable || results[i].Metric != want.metric {
			t.Errorf("results[%d] = (%s, %s), want (%s, %s)",
				i, results[i].Variable, results[i].Metric, want.variable, want.metric)
		}
	}
	for _, res := range results {
		if !res.Valid {
			t.Errorf("(%s, %s) unexpectedly invalid: %s", res.Variable, res.Metric, res.Reason)
		}
	}
}

func TestEvaluateDeterministicAcrossRuns(t *testing.T) {
	e := NewEvaluator(WithWorkers(4))

	first, err := e.Evaluate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("first Evaluate failed: %v", err)
	}
	second, err := e.Evaluate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("second Evaluate failed: %v", err)
	}

	firstReport := bias.BiasReport{Results: first}
	secondReport := bias.BiasReport{Results: second}
	if firstReport.ComputeFingerprint() != secondReport.ComputeFingerprint() {
		t.Error("identical inputs produced different result fingerprints")
	}
}

func TestEvaluateIsolatesPerVariableFailures(t *testing.T) {
	req := testRequest()
	// Break one variable: a cohort of nothing but missing markers fails
	// profiling, but the other variable's results must be unaffected.
	req.Variables[0].Cohort = variable.NewContinuousSeries("age", variable.GroupCohort,
		[]float64{math.NaN(), math.NaN()})

	e := NewEvaluator()
	results, err := e.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	ageInvalid := 0
	genderValid := 0
	for _, res := range results {
		switch res.Variable {
		case "age":
			if res.Valid {
				t.Errorf("age result should be invalid, got value %g", res.Value)
			}
			if res.Reason != bias.ReasonProfilingError {
				t.Errorf("age reason = %s, want %s", res.Reason, bias.ReasonProfilingError)
			}
			ageInvalid++
		case "gender":
			if res.Valid {
				genderValid++
			}
		}
	}
	if ageInvalid != 3 {
		t.Errorf("expected 3 invalid age results, got %d", ageInvalid)
	}
	if genderValid != 2 {
		t.Errorf("expected 2 valid gender results, got %d", genderValid)
	}
}

func TestValidateSelectionRejectsMisconfiguration(t *testing.T) {
	unknown := bias.MetricSelection{
		variable.TypeContinuous: {"smd", "mahalanobis"},
	}
	if err := ValidateSelection(unknown); !errors.Is(err, core.ErrUnknownMetric) {
		t.Errorf("unknown metric: got %v, want ErrUnknownMetric", err)
	}

	mismatch := bias.MetricSelection{
		variable.TypeCategorical: {"smd"},
	}
	if err := ValidateSelection(mismatch); !errors.Is(err, core.ErrMetricTypeMismatch) {
		t.Errorf("type mismatch: got %v, want ErrMetricTypeMismatch", err)
	}

	if err := ValidateSelection(bias.MetricSelection{
		variable.TypeOrdinal: {"chi_square", "tvd", "js_divergence"},
	}); err != nil {
		t.Errorf("valid ordinal selection rejected: %v", err)
	}
}

func TestEvaluateRejectsBadSelectionBeforeComputing(t *testing.T) {
	req := testRequest()
	req.Selection = bias.MetricSelection{variable.TypeContinuous: {"nope"}}

	e := NewEvaluator()
	if _, err := e.Evaluate(context.Background(), req); !errors.Is(err, core.ErrUnknownMetric) {
		t.Errorf("got %v, want ErrUnknownMetric", err)
	}
}

func TestEvaluateUsesReferenceCache(t *testing.T) {
	cache := NewMemoryCache()
	e := NewEvaluator(WithCache(cache))

	req := testRequest()
	req.ReferenceVersion = "v1"

	first, err := e.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("first Evaluate failed: %v", err)
	}
	// Both variables are cacheable: age is continuous, gender declares a
	// domain.
	if cache.Len() != 2 {
		t.Fatalf("cache holds %d entries, want 2", cache.Len())
	}

	second, err := e.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("second Evaluate failed: %v", err)
	}
	firstReport := bias.BiasReport{Results: first}
	secondReport := bias.BiasReport{Results: second}
	if firstReport.ComputeFingerprint() != secondReport.ComputeFingerprint() {
		t.Error("cached reference profiles changed the results")
	}
}

func TestEvaluateSkipsCachingWithoutVersion(t *testing.T) {
	cache := NewMemoryCache()
	e := NewEvaluator(WithCache(cache))

	req := testRequest() // no ReferenceVersion
	if _, err := e.Evaluate(context.Background(), req); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("cache holds %d entries, want 0 without a reference version", cache.Len())
	}
}

func TestEvaluateSyntheticPopulationAtScale(t *testing.T) {
	// A cohort shifted 12 years older than its reference over generated
	// samples: every metric valid, smd positive, and two independent
	// generator runs with the same seed score byte-identically.
	buildRequest := func() Request {
		refGen := testkit.NewPopulationGenerator(testkit.DefaultPopulationConfig())
		cohortCfg := testkit.DefaultPopulationConfig()
		cohortCfg.Size = 400
		cohortCfg.Seed = 7
		cohortGen := testkit.NewPopulationGenerator(cohortCfg)

		return Request{
			Variables: []VariableInput{
				{
					Spec:      variable.Spec{Key: "age", Type: variable.TypeContinuous},
					Cohort:    cohortGen.ContinuousSeries("age", variable.GroupCohort, 12),
					Reference: refGen.ContinuousSeries("age", variable.GroupReference, 0),
				},
				{
					Spec: variable.Spec{Key: "gender", Type: variable.TypeCategorical,
						Domain: []string{"male", "female"}},
					Cohort: cohortGen.CategoricalSeries("gender", variable.GroupCohort,
						[]string{"male", "female"}, []float64{0.7, 0.3}),
					Reference: refGen.CategoricalSeries("gender", variable.GroupReference,
						[]string{"male", "female"}, []float64{0.5, 0.5}),
				},
			},
			Selection: bias.MetricSelection{
				variable.TypeContinuous:  {"smd", "ks", "js_divergence"},
				variable.TypeCategorical: {"chi_square", "tvd", "js_divergence"},
			},
			Binning: distribution.BinningPolicy{Strategy: distribution.BinsEqualWidth, Bins: 10},
		}
	}

	e := NewEvaluator(WithWorkers(2))
	first, err := e.Evaluate(context.Background(), buildRequest())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	second, err := e.Evaluate(context.Background(), buildRequest())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	for _, res := range first {
		if !res.Valid {
			t.Errorf("(%s, %s) invalid: %s", res.Variable, res.Metric, res.Reason)
		}
		if res.Metric == "smd" && res.Value <= 0 {
			t.Errorf("older cohort should give positive smd, got %g", res.Value)
		}
	}

	firstReport := bias.BiasReport{Results: first}
	secondReport := bias.BiasReport{Results: second}
	if firstReport.ComputeFingerprint() != secondReport.ComputeFingerprint() {
		t.Error("seeded generators produced non-reproducible evaluations")
	}
}

func TestEvaluateHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEvaluator()
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Completed work may still be returned; the call must simply not
		// hang on a dead context.
		e.Evaluate(ctx, testRequest())
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Evaluate did not return under a cancelled context")
	}
}
