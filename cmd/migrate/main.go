package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/recruitlink/billing/internal/config"
	"github.com/recruitlink/billing/internal/logger"
	"github.com/recruitlink/billing/migrations"
)

func main() {
	command := flag.String("cmd", "up", "Migration command: up, down, goto, status")
	version := flag.Uint("version", 0, "Target version for the goto command")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	source, err := iofs.New(migrations.Postgres, "postgres")
	if err != nil {
		logger.Fatalw("Failed to open embedded migrations", "error", err)
	}

	logger.Infow("Connecting to database",
		"host", cfg.Postgres.Host,
		"dbname", cfg.Postgres.DBName,
	)
	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.Postgres.GetURL())
	if err != nil {
		logger.Fatalw("Failed to initialize migrations", "error", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			logger.Warnw("Failed to close migration resources", "source_error", sourceErr, "database_error", dbErr)
		}
	}()

	switch *command {
	case "up":
		err = m.Up()
	case "down":
		// only ever rolls back one step
		err = m.Steps(-1)
	case "goto":
		if *version == 0 {
			logger.Fatal("goto requires -version")
		}
		err = m.Migrate(*version)
	case "status":
		current, dirty, verr := m.Version()
		switch {
		case errors.Is(verr, migrate.ErrNilVersion):
			logger.Info("No migrations have been applied")
		case verr != nil:
			logger.Fatalw("Failed to read migration version", "error", verr)
		default:
			logger.Infow("Current migration version", "version", current, "dirty", dirty)
		}
		return
	default:
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No change: database is already up to date")
		return
	}
	if err != nil {
		logger.Fatalw("Migration failed", "command", *command, "error", err)
	}
	logger.Infow("Migration completed successfully", "command", *command)
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go -cmd [command]")
	fmt.Println("Commands:")
	fmt.Println("  up                  apply every pending migration")
	fmt.Println("  down                roll back the last migration")
	fmt.Println("  goto -version N     migrate to version N")
	fmt.Println("  status              print the current version")
}
