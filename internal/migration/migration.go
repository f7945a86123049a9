package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"biascope/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Only the
// engine's own tables are created here; the clinical person table belongs
// to the source schema and is never touched.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createCohortDefinitionTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create cohort_definition table")
	}
	if err := r.createCohortTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create cohort table")
	}
	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}
	return nil
}

func (r *MigrationRunner) createCohortDefinitionTable(ctx context.Context, db *sqlx.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS cohort_definition (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		creation_query TEXT,
		created_by VARCHAR(255)
	)`
	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createCohortTable(ctx context.Context, db *sqlx.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS cohort (
		subject_id BIGINT NOT NULL,
		cohort_definition_id VARCHAR(36) NOT NULL REFERENCES cohort_definition(id) ON DELETE CASCADE,
		cohort_start_date DATE NOT NULL,
		cohort_end_date DATE NOT NULL,
		PRIMARY KEY (subject_id, cohort_definition_id, cohort_start_date)
	)`
	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_cohort_definition_id ON cohort(cohort_definition_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cohort_subject_id ON cohort(subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cohort_definition_created_at ON cohort_definition(created_at DESC)`,
	}
	for _, query := range indexes {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}
