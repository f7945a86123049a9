package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"biascope/domain/cohort"
	"biascope/domain/core"
	"biascope/domain/variable"
	"biascope/ports"
)

// Series extraction queries per tracked variable, split by group. Cohort
// variants join members to the clinical person table; reference variants
// run over the whole person table. Concept-id to label mappings follow
// the OMOP vocabulary.
var cohortSeriesQueries = map[core.VariableKey]string{
	"age": `SELECT EXTRACT(YEAR FROM c.cohort_start_date) - p.year_of_birth AS value
		FROM cohort c JOIN person p ON c.subject_id = p.person_id
		WHERE c.cohort_definition_id = $1
		ORDER BY p.person_id`,
	"gender": `SELECT CASE
			WHEN p.gender_concept_id = 8507 THEN 'male'
			WHEN p.gender_concept_id = 8532 THEN 'female'
			ELSE 'other'
		END AS value
		FROM cohort c JOIN person p ON c.subject_id = p.person_id
		WHERE c.cohort_definition_id = $1
		ORDER BY p.person_id`,
	"race": `SELECT CASE
			WHEN p.race_concept_id = 8516 THEN 'Black or African American'
			WHEN p.race_concept_id = 8515 THEN 'Asian'
			WHEN p.race_concept_id = 8657 THEN 'American Indian or Alaska Native'
			WHEN p.race_concept_id = 8527 THEN 'White'
			WHEN p.race_concept_id = 8557 THEN 'Native Hawaiian or Other Pacific Islander'
			ELSE 'Other'
		END AS value
		FROM cohort c JOIN person p ON c.subject_id = p.person_id
		WHERE c.cohort_definition_id = $1
		ORDER BY p.person_id`,
	"ethnicity": `SELECT CASE
			WHEN p.ethnicity_concept_id = 38003563 THEN 'Hispanic or Latino'
			WHEN p.ethnicity_concept_id = 38003564 THEN 'Not Hispanic or Latino'
			ELSE 'other'
		END AS value
		FROM cohort c JOIN person p ON c.subject_id = p.person_id
		WHERE c.cohort_definition_id = $1
		ORDER BY p.person_id`,
}

var referenceSeriesQueries = map[core.VariableKey]string{
	"age": `SELECT EXTRACT(YEAR FROM CURRENT_DATE) - year_of_birth AS value
		FROM person ORDER BY person_id`,
	"gender": `SELECT CASE
			WHEN gender_concept_id = 8507 THEN 'male'
			WHEN gender_concept_id = 8532 THEN 'female'
			ELSE 'other'
		END AS value
		FROM person ORDER BY person_id`,
	"race": `SELECT CASE
			WHEN race_concept_id = 8516 THEN 'Black or African American'
			WHEN race_concept_id = 8515 THEN 'Asian'
			WHEN race_concept_id = 8657 THEN 'American Indian or Alaska Native'
			WHEN race_concept_id = 8527 THEN 'White'
			WHEN race_concept_id = 8557 THEN 'Native Hawaiian or Other Pacific Islander'
			ELSE 'Other'
		END AS value
		FROM person ORDER BY person_id`,
	"ethnicity": `SELECT CASE
			WHEN ethnicity_concept_id = 38003563 THEN 'Hispanic or Latino'
			WHEN ethnicity_concept_id = 38003564 THEN 'Not Hispanic or Latino'
			ELSE 'other'
		END AS value
		FROM person ORDER BY person_id`,
}

// cohortRepository implements ports.CohortRepository on PostgreSQL.
type cohortRepository struct {
	db *sqlx.DB
}

// NewCohortRepository creates a new cohort repository
func NewCohortRepository(db *sqlx.DB) ports.CohortRepository {
	return &cohortRepository{db: db}
}

// CreateFromQuery executes the caller-supplied selection query read-only
// and materializes the resulting membership under a new definition. The
// query must yield person_id, cohort_start_date and cohort_end_date.
func (r *cohortRepository) CreateFromQuery(ctx context.Context, name, description, query, createdBy string) (core.CohortID, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to execute cohort selection query: %w", err)
	}
	defer rows.Close()

	type member struct {
		subjectID int64
		start     time.Time
		end       time.Time
	}
	members := make([]member, 0)
	for rows.Next() {
		var m member
		if err := rows.Scan(&m.subjectID, &m.start, &m.end); err != nil {
			return "", fmt.Errorf("cohort selection query must return (person_id, cohort_start_date, cohort_end_date): %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read cohort selection rows: %w", err)
	}

	id := core.CohortID(core.NewID())
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO cohort_definition (
		id, name, description, created_at, creation_query, created_by
	) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, name, description, time.Now(), query, createdBy,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create cohort definition: %w", err)
	}

	for _, m := range members {
		_, err = tx.ExecContext(ctx, `INSERT INTO cohort (
			subject_id, cohort_definition_id, cohort_start_date, cohort_end_date
		) VALUES ($1, $2, $3, $4)`,
			m.subjectID, id, m.start, m.end,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert cohort member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit cohort: %w", err)
	}
	return id, nil
}

// GetDefinition retrieves a cohort definition by ID
func (r *cohortRepository) GetDefinition(ctx context.Context, id core.CohortID) (*cohort.Definition, error) {
	query := `SELECT id, name, COALESCE(description, '') AS description, created_at,
		COALESCE(creation_query, '') AS creation_query, COALESCE(created_by, '') AS created_by
	FROM cohort_definition WHERE id = $1`

	var def cohort.Definition
	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&def.ID, &def.Name, &def.Description, &createdAt, &def.CreationQuery, &def.CreatedBy,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("cohort", id.String())
		}
		return nil, fmt.Errorf("failed to get cohort definition: %w", err)
	}
	def.CreatedAt = core.NewTimestamp(createdAt)
	return &def, nil
}

// ListDefinitions retrieves all cohort definitions, newest first
func (r *cohortRepository) ListDefinitions(ctx context.Context) ([]cohort.Definition, error) {
	query := `SELECT id, name, COALESCE(description, '') AS description, created_at,
		COALESCE(creation_query, '') AS creation_query, COALESCE(created_by, '') AS created_by
	FROM cohort_definition ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cohort definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]cohort.Definition, 0)
	for rows.Next() {
		var def cohort.Definition
		var createdAt time.Time
		if err := rows.Scan(&def.ID, &def.Name, &def.Description, &createdAt, &def.CreationQuery, &def.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan cohort definition: %w", err)
		}
		def.CreatedAt = core.NewTimestamp(createdAt)
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// Stats summarizes membership windows for a cohort
func (r *cohortRepository) Stats(ctx context.Context, id core.CohortID) (*cohort.Stats, error) {
	query := `WITH durations AS (
		SELECT cohort_start_date, cohort_end_date,
			EXTRACT(EPOCH FROM cohort_end_date - cohort_start_date) / 86400.0 AS duration_days
		FROM cohort WHERE cohort_definition_id = $1
	)
	SELECT COUNT(*) AS total_count,
		MIN(cohort_start_date) AS earliest_start,
		MAX(cohort_start_date) AS latest_start,
		MIN(cohort_end_date) AS earliest_end,
		MAX(cohort_end_date) AS latest_end,
		MIN(duration_days) AS min_duration_days,
		MAX(duration_days) AS max_duration_days,
		AVG(duration_days) AS avg_duration_days
	FROM durations`

	var stats cohort.Stats
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&stats.TotalCount,
		&stats.EarliestStart, &stats.LatestStart,
		&stats.EarliestEnd, &stats.LatestEnd,
		&stats.MinDurationDays, &stats.MaxDurationDays, &stats.AvgDurationDays,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cohort stats: %w", err)
	}
	return &stats, nil
}

// CohortSeries extracts one variable's observed values for cohort members
func (r *cohortRepository) CohortSeries(ctx context.Context, spec variable.Spec, id core.CohortID) (variable.SampleSeries, error) {
	query, ok := cohortSeriesQueries[spec.Key]
	if !ok {
		return variable.SampleSeries{}, core.NewNotFoundError("series query for variable", spec.Key.String())
	}
	return r.scanSeries(ctx, spec, variable.GroupCohort, query, id)
}

// ReferenceSeries extracts one variable's observed values for the whole
// reference population
func (r *cohortRepository) ReferenceSeries(ctx context.Context, spec variable.Spec) (variable.SampleSeries, error) {
	query, ok := referenceSeriesQueries[spec.Key]
	if !ok {
		return variable.SampleSeries{}, core.NewNotFoundError("series query for variable", spec.Key.String())
	}
	return r.scanSeries(ctx, spec, variable.GroupReference, query)
}

// ReferenceVersion fingerprints the reference population so cached
// reference profiles invalidate when the person table changes.
func (r *cohortRepository) ReferenceVersion(ctx context.Context) (string, error) {
	var version string
	query := `SELECT md5(COUNT(*)::text || COALESCE(MAX(person_id), 0)::text) FROM person`
	if err := r.db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to compute reference version: %w", err)
	}
	return version, nil
}

// scanSeries reads a one-column result set into a SampleSeries, turning
// SQL NULLs into the series' missing markers.
func (r *cohortRepository) scanSeries(ctx context.Context, spec variable.Spec, group variable.Group, query string, args ...interface{}) (variable.SampleSeries, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return variable.SampleSeries{}, fmt.Errorf("failed to extract %s series for %s: %w", group, spec.Key, err)
	}
	defer rows.Close()

	if spec.Type == variable.TypeContinuous {
		values := make([]float64, 0)
		for rows.Next() {
			var v sql.NullFloat64
			if err := rows.Scan(&v); err != nil {
				return variable.SampleSeries{}, fmt.Errorf("failed to scan %s value: %w", spec.Key, err)
			}
			if v.Valid {
				values = append(values, v.Float64)
			} else {
				values = append(values, math.NaN())
			}
		}
		if err := rows.Err(); err != nil {
			return variable.SampleSeries{}, err
		}
		return variable.NewContinuousSeries(spec.Key, group, values), nil
	}

	labels := make([]string, 0)
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return variable.SampleSeries{}, fmt.Errorf("failed to scan %s label: %w", spec.Key, err)
		}
		if v.Valid {
			labels = append(labels, v.String)
		} else {
			labels = append(labels, "")
		}
	}
	if err := rows.Err(); err != nil {
		return variable.SampleSeries{}, err
	}
	return variable.NewCategoricalSeries(spec.Key, group, labels), nil
}
