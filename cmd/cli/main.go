package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"biascope/adapters/excel"
	"biascope/adapters/postgres"
	"biascope/adapters/stats/engine"
	"biascope/adapters/stats/metrics"
	"biascope/app"
	"biascope/domain/core"
	"biascope/internal/config"
	"biascope/internal/report"
)

// The CLI runs one evaluation end to end: load a study file, evaluate a
// cohort against the reference population, and emit the report as JSON,
// markdown, or an xlsx workbook.
func main() {
	var (
		studyPath = flag.String("study", "", "path to the study definition YAML")
		cohortID  = flag.String("cohort", "", "cohort definition id to evaluate")
		format    = flag.String("format", "json", "output format: json, markdown, html")
		xlsxPath  = flag.String("xlsx", "", "also export the report to this xlsx file")
	)
	flag.Parse()

	if *studyPath == "" || *cohortID == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	study, err := config.LoadStudy(*studyPath)
	if err != nil {
		log.Fatalf("Failed to load study: %v", err)
	}

	id, err := core.ParseCohortID(*cohortID)
	if err != nil {
		log.Fatalf("Invalid cohort id: %v", err)
	}

	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	service := buildService(db, appConfig, *xlsxPath)

	selection := study.Selection()
	if selection == nil {
		selection = metrics.DefaultSelection()
	}

	reportOut, err := service.EvaluateBias(context.Background(), app.EvaluationRequest{
		CohortID:     id,
		Variables:    study.Variables,
		Selection:    selection,
		Binning:      study.Binning,
		Aggregations: study.AggregationSpecs(),
	})
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	switch *format {
	case "markdown":
		fmt.Print(report.RenderMarkdown(reportOut))
	case "html":
		os.Stdout.Write(report.RenderHTML(reportOut))
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reportOut); err != nil {
			log.Fatalf("Failed to encode report: %v", err)
		}
	}
}

func buildService(db *sqlx.DB, appConfig *config.Config, xlsxPath string) *app.BiasService {
	repo := postgres.NewCohortRepository(db)
	evaluator := engine.NewEvaluator(
		engine.WithWorkers(appConfig.Evaluation.Workers),
		engine.WithCache(engine.NewMemoryCache()),
		engine.WithMinSampleSize(appConfig.Evaluation.MinSampleSize),
	)
	aggregator := engine.NewAggregator()

	if xlsxPath != "" {
		return app.NewBiasService(repo, evaluator, aggregator, excel.NewReportWriter(xlsxPath))
	}
	return app.NewBiasService(repo, evaluator, aggregator)
}
