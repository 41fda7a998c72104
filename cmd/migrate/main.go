package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"scrazino/internal/config"
	"scrazino/internal/database"
	"scrazino/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, App: "scrazino-migrate"})
	defer func() { _ = log.Sync() }()

	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate create <migration_name>")
		}
		if err := createMigration(cfg.MigrationsPath, os.Args[2], log); err != nil {
			log.Fatal("create migration", zap.Error(err))
		}
		return
	}

	db, err := sql.Open("pgx", cfg.Postgres.DSN())
	if err != nil {
		log.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	switch command {
	case "up":
		log.Info("running migrations", zap.String("path", cfg.MigrationsPath))
		if err := database.RunMigrations(db, cfg.MigrationsPath); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("migrations completed")

	case "down":
		log.Info("rolling back last migration")
		if err := database.RollbackMigration(db, cfg.MigrationsPath); err != nil {
			log.Fatal("rollback failed", zap.Error(err))
		}
		log.Info("rollback completed")

	case "version":
		version, dirty, err := database.GetMigrationVersion(db, cfg.MigrationsPath)
		if err != nil {
			log.Fatal("get version", zap.Error(err))
		}
		if dirty {
			log.Warn("current version is dirty, needs manual intervention", zap.Uint("version", version))
		} else {
			log.Info("current version", zap.Uint("version", version))
		}

	default:
		log.Error("unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

// createMigration writes an empty up/down pair numbered after the highest
// existing version.
func createMigration(dir, name string, log *zap.Logger) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}

	next := 1
	for _, file := range files {
		var version int
		if _, err := fmt.Sscanf(file.Name(), "%06d_", &version); err == nil && version >= next {
			next = version + 1
		}
	}

	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	upFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.up.sql", next, name))
	downFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.down.sql", next, name))

	upContent := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n", name, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(upFile, []byte(upContent), 0o644); err != nil {
		return fmt.Errorf("write up migration: %w", err)
	}
	downContent := fmt.Sprintf("-- Rollback: %s\n\n", name)
	if err := os.WriteFile(downFile, []byte(downContent), 0o644); err != nil {
		return fmt.Errorf("write down migration: %w", err)
	}

	log.Info("created migration files", zap.String("up", upFile), zap.String("down", downFile))
	return nil
}

func printUsage() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate up              Run all pending migrations")
	fmt.Println("  migrate down            Rollback the last migration")
	fmt.Println("  migrate version         Show current migration version")
	fmt.Println("  migrate create <name>   Create a new migration file")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  BLUEPRINT_DB_HOST       Database host (default: localhost)")
	fmt.Println("  BLUEPRINT_DB_PORT       Database port (default: 5432)")
	fmt.Println("  BLUEPRINT_DB_DATABASE   Database name (default: scrazino)")
	fmt.Println("  BLUEPRINT_DB_USERNAME   Database user (default: postgres)")
	fmt.Println("  BLUEPRINT_DB_PASSWORD   Database password (default: postgres)")
	fmt.Println("  MIGRATIONS_PATH         Path to migrations (default: ./internal/database/migrations)")
}
