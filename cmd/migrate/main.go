// Package main provides the schema migration CLI.
// Usage: migrate up
//        migrate down
//        migrate steps -1
//        migrate force 1
//        migrate version
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"logibill/internal/infrastructure/config"
	"logibill/internal/infrastructure/migration"
	"logibill/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		printUsage()
		return
	}

	cfg, err := config.LoadClient(os.Getenv("LOGIBILL_CONFIG"))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		fmt.Println("Error: LOGIBILL_DATABASE_URL environment variable is required")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Development()})
	if err != nil {
		fmt.Printf("Error: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	ctx := logger.WithLogger(context.Background(), log.WithComponent("migrate"))

	m, err := migration.New(cfg.Database.URL, cfg.Database.MigrationsPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = m.Close() }()

	switch command {
	case "up":
		err = m.Up(ctx)
	case "down":
		err = m.Down(ctx)
	case "steps":
		var n int
		if n, err = intArg("steps"); err == nil {
			err = m.Steps(ctx, n)
		}
	case "force":
		var v int
		if v, err = intArg("force"); err == nil {
			err = m.Force(ctx, v)
		}
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = m.Version()
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		}
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func intArg(command string) (int, error) {
	if len(os.Args) < 3 {
		return 0, fmt.Errorf("%s requires an integer argument", command)
	}
	n, err := strconv.Atoi(os.Args[2])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", command, os.Args[2])
	}
	return n, nil
}

func printUsage() {
	fmt.Println(`logibill schema migrations

Usage:
  migrate <command> [argument]

Commands:
  up          Apply all pending migrations
  down        Roll back all migrations
  steps N     Apply N migrations (negative N rolls back)
  force V     Set the schema version without running migrations
  version     Print the current schema version
  help        Show this help

Environment Variables:
  LOGIBILL_DATABASE_URL             Connection string (required)
  LOGIBILL_DATABASE_MIGRATIONS_PATH Directory of SQL migrations (default: migrations)
  LOGIBILL_CONFIG                   Optional config file`)
}
