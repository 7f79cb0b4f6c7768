package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"ballot-engine/config"
	"ballot-engine/internal/repository"
	"ballot-engine/pkg/database"
	"ballot-engine/pkg/logger"

	"gorm.io/gorm"
)

const usage = `
Ballot Engine - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Run raw SQL migrations, then create tables, constraints and triggers
  down        Drop every table owned by the service
  status      Show connection status and row counts
  seed        Insert demo polls (an election, a referendum, a survey)
  reset       Drop all tables and re-run migrations (DANGEROUS)

Flags:
  -migrations string   Path to raw SQL migrations directory (default "migrations")
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to raw SQL migrations directory")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	log := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(log)
	defer log.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	defer database.Close()

	switch command := flag.Arg(0); command {
	case "up":
		err = migrateUp(db, *migrationsDir)
	case "down":
		err = repository.DropSchema(db)
	case "status":
		err = showStatus(db)
	case "seed":
		_, err = database.Seed(context.Background(), repository.NewPollRepository(db))
	case "reset":
		log.Warnf("Dropping all tables and re-running migrations")
		if err = repository.DropSchema(db); err == nil {
			err = migrateUp(db, *migrationsDir)
		}
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		log.Errorf("%s failed: %v", flag.Arg(0), err)
		os.Exit(1)
	}
	log.Infof("%s completed", flag.Arg(0))
}

func migrateUp(db *gorm.DB, migrationsDir string) error {
	if err := database.ApplyRawMigrations(migrationsDir); err != nil {
		return err
	}
	return repository.InitSchema(db)
}

func showStatus(db *gorm.DB) error {
	log := logger.GetGlobalLogger()
	if err := database.HealthCheck(context.Background()); err != nil {
		return err
	}
	log.Infof("Database connection: OK")

	for _, table := range []string{"polls", "poll_choices", "ballots", "outbox_events"} {
		if !db.Migrator().HasTable(table) {
			log.Warnf("Table %-15s does not exist", table)
			continue
		}
		var count int64
		if err := db.Table(table).Count(&count).Error; err != nil {
			log.Warnf("Table %-15s count failed: %v", table, err)
			continue
		}
		log.Infof("Table %-15s exists (%d rows)", table, count)
	}
	return nil
}
