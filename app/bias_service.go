package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"biascope/adapters/stats/engine"
	"biascope/domain/bias"
	"biascope/domain/cohort"
	"biascope/domain/core"
	"biascope/domain/distribution"
	"biascope/domain/variable"
	"biascope/ports"
)

// BiasService orchestrates cohort evaluation: it pulls sample series from
// the repository, runs the metric engine, folds composites, and hands the
// finished report to the configured sinks.
type BiasService struct {
	repo       ports.CohortRepository
	evaluator  *engine.Evaluator
	aggregator *engine.Aggregator
	sinks      []ports.ReportSink
}

// EvaluationRequest defines inputs for one bias evaluation run
type EvaluationRequest struct {
	CohortID core.CohortID

	// ReferenceID optionally names a second cohort to stand in for the
	// whole-population reference.
	ReferenceID core.CohortID

	Variables    []variable.Spec
	Selection    bias.MetricSelection
	Binning      distribution.BinningPolicy
	Aggregations []bias.AggregationSpec
}

// NewBiasService creates a bias service
func NewBiasService(repo ports.CohortRepository, evaluator *engine.Evaluator, aggregator *engine.Aggregator, sinks ...ports.ReportSink) *BiasService {
	return &BiasService{
		repo:       repo,
		evaluator:  evaluator,
		aggregator: aggregator,
		sinks:      sinks,
	}
}

// CreateCohort materializes a cohort from a selection query.
func (s *BiasService) CreateCohort(ctx context.Context, name, description, query, createdBy string) (core.CohortID, error) {
	id, err := s.repo.CreateFromQuery(ctx, name, description, query, createdBy)
	if err != nil {
		return "", fmt.Errorf("cohort creation failed: %w", err)
	}
	log.Printf("[BiasService] cohort %s created (%s)", id, name)
	return id, nil
}

// GetCohort retrieves a cohort definition.
func (s *BiasService) GetCohort(ctx context.Context, id core.CohortID) (*cohort.Definition, error) {
	return s.repo.GetDefinition(ctx, id)
}

// ListCohorts retrieves all cohort definitions.
func (s *BiasService) ListCohorts(ctx context.Context) ([]cohort.Definition, error) {
	return s.repo.ListDefinitions(ctx)
}

// CohortStats summarizes membership windows for a cohort.
func (s *BiasService) CohortStats(ctx context.Context, id core.CohortID) (*cohort.Stats, error) {
	if _, err := s.repo.GetDefinition(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Stats(ctx, id)
}

// EvaluateBias runs the full pipeline for one cohort against the
// reference population and assembles the report.
func (s *BiasService) EvaluateBias(ctx context.Context, req EvaluationRequest) (*bias.BiasReport, error) {
	startTime := time.Now()

	// Fail fast on unknown cohorts before touching any series.
	if _, err := s.repo.GetDefinition(ctx, req.CohortID); err != nil {
		return nil, err
	}
	if !core.ID(req.ReferenceID).IsEmpty() {
		if _, err := s.repo.GetDefinition(ctx, req.ReferenceID); err != nil {
			return nil, err
		}
	}

	// Misconfiguration surfaces here, before any extraction work.
	if err := engine.ValidateSelection(req.Selection); err != nil {
		return nil, err
	}

	inputs, err := s.loadInputs(ctx, req)
	if err != nil {
		return nil, err
	}

	// Reference-profile caching is keyed to the population snapshot, so a
	// cohort-as-reference run never consults it.
	refVersion := ""
	if core.ID(req.ReferenceID).IsEmpty() {
		refVersion, err = s.repo.ReferenceVersion(ctx)
		if err != nil {
			log.Printf("[BiasService] reference version unavailable, caching disabled: %v", err)
			refVersion = ""
		}
	}

	results, err := s.evaluator.Evaluate(ctx, engine.Request{
		Variables:        inputs,
		Selection:        req.Selection,
		Binning:          req.Binning,
		ReferenceVersion: refVersion,
	})
	if err != nil {
		return nil, err
	}

	composites := make([]bias.CompositeScore, 0, len(req.Aggregations))
	for _, spec := range req.Aggregations {
		composite, err := s.aggregator.Aggregate(results, spec)
		if err != nil {
			return nil, err
		}
		composites = append(composites, composite)
	}

	report := &bias.BiasReport{
		ID:          core.ReportID(core.NewID()),
		CohortID:    req.CohortID,
		ReferenceID: req.ReferenceID,
		GeneratedAt: core.NewTimestamp(time.Now()),
		Results:     results,
		Composites:  composites,
	}
	report.Fingerprint = report.ComputeFingerprint()

	for _, sink := range s.sinks {
		if err := sink.Write(ctx, report); err != nil {
			// Sinks are best-effort side channels; the report itself is
			// still the caller's.
			log.Printf("[BiasService] report sink failed: %v", err)
		}
	}

	log.Printf("[BiasService] evaluated cohort %s: %d variables, %d results in %dms",
		req.CohortID, len(req.Variables), len(results), time.Since(startTime).Milliseconds())
	return report, nil
}

// CohortComparison pairs two cohorts' reports evaluated under identical
// variable, metric and binning configuration.
type CohortComparison struct {
	Left  *bias.BiasReport `json:"left"`
	Right *bias.BiasReport `json:"right"`
}

// CompareCohorts evaluates two cohorts against the same reference
// population with the same configuration, so their scores are directly
// comparable.
func (s *BiasService) CompareCohorts(ctx context.Context, left, right core.CohortID, req EvaluationRequest) (*CohortComparison, error) {
	leftReq := req
	leftReq.CohortID = left
	leftReport, err := s.EvaluateBias(ctx, leftReq)
	if err != nil {
		return nil, fmt.Errorf("evaluation of cohort %s failed: %w", left, err)
	}

	rightReq := req
	rightReq.CohortID = right
	rightReport, err := s.EvaluateBias(ctx, rightReq)
	if err != nil {
		return nil, fmt.Errorf("evaluation of cohort %s failed: %w", right, err)
	}

	return &CohortComparison{Left: leftReport, Right: rightReport}, nil
}

// loadInputs extracts both groups' series for every requested variable.
func (s *BiasService) loadInputs(ctx context.Context, req EvaluationRequest) ([]engine.VariableInput, error) {
	inputs := make([]engine.VariableInput, 0, len(req.Variables))
	for _, spec := range req.Variables {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		cohortSeries, err := s.repo.CohortSeries(ctx, spec, req.CohortID)
		if err != nil {
			return nil, fmt.Errorf("failed to load cohort series for %s: %w", spec.Key, err)
		}
		referenceSeries, err := s.loadReference(ctx, spec, req.ReferenceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load reference series for %s: %w", spec.Key, err)
		}
		inputs = append(inputs, engine.VariableInput{
			Spec:      spec,
			Cohort:    cohortSeries,
			Reference: referenceSeries,
		})
	}
	return inputs, nil
}

// loadReference fetches the reference series: the whole population by
// default, or a second cohort's members relabeled as the reference group.
func (s *BiasService) loadReference(ctx context.Context, spec variable.Spec, referenceID core.CohortID) (variable.SampleSeries, error) {
	if core.ID(referenceID).IsEmpty() {
		return s.repo.ReferenceSeries(ctx, spec)
	}
	series, err := s.repo.CohortSeries(ctx, spec, referenceID)
	if err != nil {
		return variable.SampleSeries{}, err
	}
	if spec.Type == variable.TypeContinuous {
		return variable.NewContinuousSeries(spec.Key, variable.GroupReference, series.Numeric), nil
	}
	return variable.NewCategoricalSeries(spec.Key, variable.GroupReference, series.Labels), nil
}
