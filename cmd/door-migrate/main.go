package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/doorpi/pkg/config"
	"github.com/saaga0h/doorpi/pkg/postgres"
)

const usage = `Usage: door-migrate [flags] <command>

Commands:
  up              apply all pending migrations
  down [version]  roll back the latest migration, or down to version
  status          print applied and pending migrations
  version         print the current schema version
`

func main() {
	cfg, err := config.Load("door-migrate", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Positional arguments are whatever the flag set leaves behind
	fs := config.NewConfig().FlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	args := fs.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger, _ := config.NewLogger(os.Stdout, cfg.LogLevel)

	// Migrations run explicitly below
	cfg.MigrateOnStart = false

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgClient := postgres.NewClient(cfg, logger)
	if err := pgClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Disconnect()

	migrator, err := postgres.NewMigrator(pgClient.DB(), logger)
	if err != nil {
		logger.Error("Failed to create migrator", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, migrator, args); err != nil {
		logger.Error("Migration command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, m *postgres.Migrator, args []string) error {
	switch args[0] {
	case "up":
		return m.Up(ctx)

	case "down":
		var target int64
		if len(args) > 1 {
			v, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid target version %q: %w", args[1], err)
			}
			target = v
		}
		return m.Down(ctx, target)

	case "status":
		return m.Status(ctx)

	case "version":
		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
