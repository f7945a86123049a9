package ports

import (
	"context"

	"biascope/domain/cohort"
	"biascope/domain/core"
	"biascope/domain/variable"
)

// CohortRepository is the data-access collaborator. The core depends only
// on the SampleSeries shape it returns, not on how rows were fetched.
type CohortRepository interface {
	// CreateFromQuery materializes a cohort by executing a caller-supplied
	// read-only selection query against the clinical schema and storing
	// the resulting membership under a new definition.
	CreateFromQuery(ctx context.Context, name, description, query, createdBy string) (core.CohortID, error)

	GetDefinition(ctx context.Context, id core.CohortID) (*cohort.Definition, error)
	ListDefinitions(ctx context.Context) ([]cohort.Definition, error)

	// Stats summarizes membership windows for a cohort.
	Stats(ctx context.Context, id core.CohortID) (*cohort.Stats, error)

	// CohortSeries extracts one variable's observed values for the
	// members of a cohort.
	CohortSeries(ctx context.Context, spec variable.Spec, id core.CohortID) (variable.SampleSeries, error)

	// ReferenceSeries extracts one variable's observed values for the
	// whole reference population.
	ReferenceSeries(ctx context.Context, spec variable.Spec) (variable.SampleSeries, error)

	// ReferenceVersion identifies the current reference-population
	// snapshot; it keys the reference-profile cache.
	ReferenceVersion(ctx context.Context) (string, error)
}
