package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"geocausal/adapters/causal"
	"geocausal/adapters/excel"
	"geocausal/adapters/postgres"
	"geocausal/app"
	"geocausal/internal/config"
	"geocausal/internal/errors"
	"geocausal/ports"
	"geocausal/ui"
)

// initDatabase connects to the optional postgres result store and runs
// its migrations.
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	if appConfig.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}
	if err := postgres.Migrate(context.Background(), db); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
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
	gin.SetMode(appConfig.Server.GinMode)

	// Results persist to postgres only when a DATABASE_URL is configured;
	// otherwise the server runs on in-memory session state alone.
	var store ports.ResultStore
	if appConfig.Database.Enabled {
		db, err := initDatabase(appConfig)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		store = postgres.NewResultStore(db)
		log.Println("Postgres result store initialized")
	}

	cfg := causal.DefaultEstimatorConfig()
	cfg.Seed = appConfig.Estimation.Seed
	engine := causal.NewEngine(cfg)

	estimation := app.NewEstimationService(engine, appConfig.Estimation.MinSampleSize, appConfig.Estimation.FitTimeout)
	reports := app.NewReportService()
	reader := excel.NewPanelReader()

	server := ui.NewServer(reader, estimation, reports, store)

	if err := server.LoadPanel(appConfig.Data.PanelFile); err != nil {
		log.Fatalf("Failed to load panel %s: %v", appConfig.Data.PanelFile, err)
	}

	if appConfig.Data.ResultsFile != "" {
		rows, err := excel.ReadModelTable(appConfig.Data.ResultsFile)
		if err != nil {
			log.Fatalf("Failed to load result table %s: %v", appConfig.Data.ResultsFile, err)
		}
		server.SetModelTable(rows)
		log.Printf("Loaded %d precomputed model rows from %s", len(rows), appConfig.Data.ResultsFile)

		if store != nil {
			if err := store.SaveModelTable(context.Background(), rows); err != nil {
				log.Printf("Warning: failed to persist model table: %v", err)
			}
		}
	} else if store != nil {
		rows, err := store.LoadModelTable(context.Background())
		if err != nil {
			log.Printf("Warning: failed to load model table from database: %v", err)
		} else if len(rows) > 0 {
			server.SetModelTable(rows)
			log.Printf("Loaded %d model rows from database", len(rows))
		}
	}

	if appConfig.Data.CATEFile != "" {
		cateRows, err := excel.ReadCATETable(appConfig.Data.CATEFile)
		if err != nil {
			log.Fatalf("Failed to load conditional-effect table %s: %v", appConfig.Data.CATEFile, err)
		}
		server.SetCATERows(cateRows)
		log.Printf("Loaded %d conditional-effect rows from %s", len(cateRows), appConfig.Data.CATEFile)
	}

	log.Printf("Starting geocausal server on port %s", appConfig.Server.Port)
	log.Fatal(server.Start(":" + appConfig.Server.Port))
}
