package container

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"

	"biascope/adapters/excel"
	"biascope/adapters/postgres"
	"biascope/adapters/stats/engine"
	"biascope/app"
	"biascope/internal/config"
	"biascope/internal/errors"
	"biascope/internal/migration"
	"biascope/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Data access layer
	CohortRepo ports.CohortRepository

	// Engine components
	Evaluator  *engine.Evaluator
	Aggregator *engine.Aggregator
	Cache      *engine.MemoryCache

	// Application services
	BiasService *app.BiasService
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("configuration is required")
	}
	return &Container{Config: cfg}, nil
}

// InitWithDatabase wires all components that need the database connection
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return errors.ConfigInvalid("database connection is required")
	}
	c.DB = db

	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		return errors.Wrap(err, "database migration failed")
	}

	c.CohortRepo = postgres.NewCohortRepository(db)
	c.Cache = engine.NewMemoryCache()
	c.Evaluator = engine.NewEvaluator(
		engine.WithWorkers(c.Config.Evaluation.Workers),
		engine.WithCache(c.Cache),
		engine.WithMinSampleSize(c.Config.Evaluation.MinSampleSize),
	)
	c.Aggregator = engine.NewAggregator()

	sinks := make([]ports.ReportSink, 0, 1)
	if c.Config.Report.ExcelFile != "" {
		sinks = append(sinks, excel.NewReportWriter(c.Config.Report.ExcelFile))
	}
	c.BiasService = app.NewBiasService(c.CohortRepo, c.Evaluator, c.Aggregator, sinks...)

	log.Printf("[Container] initialized with %d evaluation workers", c.Config.Evaluation.Workers)
	return nil
}

// Shutdown releases held resources
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
