package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biascope/adapters/stats/engine"
	"biascope/domain/bias"
	"biascope/domain/cohort"
	"biascope/domain/core"
	"biascope/domain/distribution"
	"biascope/domain/variable"
	"biascope/ports"
)

// fakeRepo serves canned series from memory.
type fakeRepo struct {
	definitions map[core.CohortID]*cohort.Definition
	cohortData  map[core.CohortID]map[core.VariableKey]variable.SampleSeries
	refData     map[core.VariableKey]variable.SampleSeries
	version     string

	referenceCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		definitions: make(map[core.CohortID]*cohort.Definition),
		cohortData:  make(map[core.CohortID]map[core.VariableKey]variable.SampleSeries),
		refData:     make(map[core.VariableKey]variable.SampleSeries),
		version:     "ref-v1",
	}
}

func (r *fakeRepo) addCohort(id core.CohortID, name string) {
	r.definitions[id] = &cohort.Definition{
		ID:        id,
		Name:      name,
		CreatedAt: core.NewTimestamp(time.Now()),
	}
	r.cohortData[id] = make(map[core.VariableKey]variable.SampleSeries)
}

func (r *fakeRepo) CreateFromQuery(ctx context.Context, name, description, query, createdBy string) (core.CohortID, error) {
	id := core.CohortID(core.NewID())
	r.addCohort(id, name)
	return id, nil
}

func (r *fakeRepo) GetDefinition(ctx context.Context, id core.CohortID) (*cohort.Definition, error) {
	def, ok := r.definitions[id]
	if !ok {
		return nil, core.NewNotFoundError("cohort", id.String())
	}
	return def, nil
}

func (r *fakeRepo) ListDefinitions(ctx context.Context) ([]cohort.Definition, error) {
	out := make([]cohort.Definition, 0, len(r.definitions))
	for _, def := range r.definitions {
		out = append(out, *def)
	}
	return out, nil
}

func (r *fakeRepo) Stats(ctx context.Context, id core.CohortID) (*cohort.Stats, error) {
	return &cohort.Stats{TotalCount: len(r.cohortData[id])}, nil
}

func (r *fakeRepo) CohortSeries(ctx context.Context, spec variable.Spec, id core.CohortID) (variable.SampleSeries, error) {
	series, ok := r.cohortData[id][spec.Key]
	if !ok {
		return variable.SampleSeries{}, core.NewNotFoundError("series", spec.Key.String())
	}
	return series, nil
}

func (r *fakeRepo) ReferenceSeries(ctx context.Context, spec variable.Spec) (variable.SampleSeries, error) {
	r.referenceCalls++
	series, ok := r.refData[spec.Key]
	if !ok {
		return variable.SampleSeries{}, core.NewNotFoundError("series", spec.Key.String())
	}
	return series, nil
}

func (r *fakeRepo) ReferenceVersion(ctx context.Context) (string, error) {
	return r.version, nil
}

var _ ports.CohortRepository = (*fakeRepo)(nil)

// captureSink records the reports it receives.
type captureSink struct {
	reports []*bias.BiasReport
}

func (s *captureSink) Write(ctx context.Context, report *bias.BiasReport) error {
	s.reports = append(s.reports, report)
	return nil
}

func seededService(t *testing.T) (*BiasService, *fakeRepo, *captureSink, core.CohortID) {
	t.Helper()
	repo := newFakeRepo()
	id := core.CohortID(core.NewID())
	repo.addCohort(id, "elderly admissions")
	repo.cohortData[id]["age"] = variable.NewContinuousSeries("age", variable.GroupCohort,
		[]float64{68, 71, 74, 77, 80, 83})
	repo.cohortData[id]["gender"] = variable.NewCategoricalSeries("gender", variable.GroupCohort,
		[]string{"female", "female", "female", "male"})
	repo.refData["age"] = variable.NewContinuousSeries("age", variable.GroupReference,
		[]float64{25, 34, 41, 50, 58, 67, 75, 82})
	repo.refData["gender"] = variable.NewCategoricalSeries("gender", variable.GroupReference,
		[]string{"male", "female", "male", "female", "male", "female"})

	sink := &captureSink{}
	service := NewBiasService(repo,
		engine.NewEvaluator(engine.WithCache(engine.NewMemoryCache())),
		engine.NewAggregator(),
		sink,
	)
	return service, repo, sink, id
}

func evaluationRequest(id core.CohortID) EvaluationRequest {
	return EvaluationRequest{
		CohortID: id,
		Variables: []variable.Spec{
			{Key: "age", Type: variable.TypeContinuous},
			{Key: "gender", Type: variable.TypeCategorical, Domain: []string{"male", "female"}},
		},
		Selection: bias.MetricSelection{
			variable.TypeContinuous:  {"smd", "ks"},
			variable.TypeCategorical: {"tvd"},
		},
		Binning:      distribution.BinningPolicy{Strategy: distribution.BinsEqualWidth, Bins: 5},
		Aggregations: []bias.AggregationSpec{{Method: bias.AggregateMean}, {Method: bias.AggregateMax}},
	}
}

func TestEvaluateBiasAssemblesReport(t *testing.T) {
	service, _, sink, id := seededService(t)

	report, err := service.EvaluateBias(context.Background(), evaluationRequest(id))
	require.NoError(t, err)

	assert.Equal(t, id, report.CohortID)
	assert.NotEmpty(t, report.ID)
	assert.NotEmpty(t, report.Fingerprint)
	assert.Len(t, report.Results, 3)
	assert.Len(t, report.Composites, 2)
	for _, res := range report.Results {
		assert.True(t, res.Valid, "(%s, %s): %s", res.Variable, res.Metric, res.Reason)
	}
	for _, comp := range report.Composites {
		require.NotNil(t, comp.Value)
		assert.GreaterOrEqual(t, *comp.Value, 0.0)
	}

	require.Len(t, sink.reports, 1)
	assert.Equal(t, report.ID, sink.reports[0].ID)
}

func TestEvaluateBiasDeterministicFingerprint(t *testing.T) {
	service, _, _, id := seededService(t)

	first, err := service.EvaluateBias(context.Background(), evaluationRequest(id))
	require.NoError(t, err)
	second, err := service.EvaluateBias(context.Background(), evaluationRequest(id))
	require.NoError(t, err)

	// Report IDs differ per run; the result fingerprint must not.
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestEvaluateBiasUnknownCohort(t *testing.T) {
	service, _, _, _ := seededService(t)

	_, err := service.EvaluateBias(context.Background(), evaluationRequest(core.CohortID(core.NewID())))
	require.Error(t, err)
	assert.True(t, core.IsNotFoundError(err))
}

func TestEvaluateBiasRejectsBadSelection(t *testing.T) {
	service, _, _, id := seededService(t)

	req := evaluationRequest(id)
	req.Selection = bias.MetricSelection{variable.TypeContinuous: {"tvd"}}
	_, err := service.EvaluateBias(context.Background(), req)
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestCompareCohortsSharesConfiguration(t *testing.T) {
	service, repo, _, left := seededService(t)

	right := core.CohortID(core.NewID())
	repo.addCohort(right, "younger admissions")
	repo.cohortData[right]["age"] = repo.cohortData[left]["age"]
	repo.cohortData[right]["gender"] = repo.cohortData[left]["gender"]

	comparison, err := service.CompareCohorts(context.Background(), left, right, evaluationRequest(left))
	require.NoError(t, err)

	// Identical membership under identical configuration scores identically.
	assert.Equal(t, comparison.Left.Fingerprint, comparison.Right.Fingerprint)
	assert.Equal(t, left, comparison.Left.CohortID)
	assert.Equal(t, right, comparison.Right.CohortID)
}

func TestEvaluateBiasAgainstCohortReference(t *testing.T) {
	service, repo, _, id := seededService(t)

	ref := core.CohortID(core.NewID())
	repo.addCohort(ref, "all admissions")
	repo.cohortData[ref]["age"] = variable.NewContinuousSeries("age", variable.GroupCohort,
		[]float64{25, 34, 41, 50, 58, 67, 75, 82})
	repo.cohortData[ref]["gender"] = variable.NewCategoricalSeries("gender", variable.GroupCohort,
		[]string{"male", "female", "male", "female", "male", "female"})

	req := evaluationRequest(id)
	req.ReferenceID = ref
	report, err := service.EvaluateBias(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, ref, report.ReferenceID)
	// The whole-population reference must never be consulted.
	assert.Zero(t, repo.referenceCalls)
	for _, res := range report.Results {
		assert.True(t, res.Valid, "(%s, %s): %s", res.Variable, res.Metric, res.Reason)
	}
}

func TestCreateAndListCohorts(t *testing.T) {
	service, _, _, _ := seededService(t)

	id, err := service.CreateCohort(context.Background(), "test", "desc",
		"SELECT person_id, cohort_start_date, cohort_end_date FROM visits", "tester")
	require.NoError(t, err)

	def, err := service.GetCohort(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "test", def.Name)

	defs, err := service.ListCohorts(context.Background())
	require.NoError(t, err)
	assert.Len(t, defs, 2)
}
