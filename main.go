package main

import (
	"context"
	"log"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"biascope/adapters/stats/metrics"
	"biascope/domain/bias"
	"biascope/domain/distribution"
	"biascope/domain/variable"
	"biascope/internal/api"
	"biascope/internal/config"
	"biascope/internal/container"
	"biascope/internal/errors"
)

// initDatabase initializes the PostgreSQL database connection
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return db, nil
}

// defaultVariables is the demographic set evaluated when a request does
// not supply its own variable specs.
func defaultVariables() []variable.Spec {
	return []variable.Spec{
		{Key: "age", Type: variable.TypeContinuous},
		{Key: "gender", Type: variable.TypeCategorical, Domain: []string{"male", "female", "other"}},
		{Key: "race", Type: variable.TypeCategorical, Domain: []string{
			"American Indian or Alaska Native",
			"Asian",
			"Black or African American",
			"Native Hawaiian or Other Pacific Islander",
			"White",
			"Other",
		}},
		{Key: "ethnicity", Type: variable.TypeCategorical, Domain: []string{
			"Hispanic or Latino",
			"Not Hispanic or Latino",
			"other",
		}},
	}
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initDatabase(appConfig)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := appContainer.InitWithDatabase(db); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	defaults := api.EvaluationDefaults{
		Variables: defaultVariables(),
		Selection: metrics.DefaultSelection(),
		Binning: distribution.BinningPolicy{
			Strategy: distribution.BinStrategy(appConfig.Evaluation.BinStrategy),
			Bins:     appConfig.Evaluation.Bins,
		},
		Aggregations: []bias.AggregationSpec{
			{Method: bias.AggregateMean},
			{Method: bias.AggregateMax},
		},
	}

	// Operational endpoint on its own listener
	opsRouter := api.NewOpsRouter(db, appConfig.Ops.PprofEnabled)
	go func() {
		log.Printf("[Main] ops endpoint listening on :%s", appConfig.Ops.Port)
		if err := http.ListenAndServe(":"+appConfig.Ops.Port, opsRouter); err != nil {
			log.Printf("[Main] ops endpoint stopped: %v", err)
		}
	}()

	server := api.NewServer(api.Config{
		Port:    appConfig.Server.Port,
		GinMode: appConfig.Server.GinMode,
	}, appContainer.BiasService, defaults)

	log.Printf("[Main] API server listening on :%s", appConfig.Server.Port)
	if err := server.Run(appConfig.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
