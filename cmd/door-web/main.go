package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/doorpi/internal/doorlog"
	"github.com/saaga0h/doorpi/internal/occupancy"
	"github.com/saaga0h/doorpi/internal/web"
	"github.com/saaga0h/doorpi/pkg/config"
	"github.com/saaga0h/doorpi/pkg/health"
	"github.com/saaga0h/doorpi/pkg/postgres"
	"github.com/saaga0h/doorpi/pkg/redis"
)

func main() {
	cfg, err := config.Load("door-web", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, level := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Starting DoorPi web",
		"service_name", cfg.ServiceName,
		"port", cfg.WebPort,
		"location", cfg.DoorLocation,
		"timezone", cfg.Timezone,
		"future_policy", cfg.FuturePolicy)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient := postgres.NewClient(cfg, logger)
	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	err = pgClient.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Disconnect()

	redisClient := redis.NewClient(cfg, logger)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("Redis unavailable, serving without cache", "error", err)
	}

	store := doorlog.NewStore(pgClient, logger)
	status := doorlog.NewStatusCache(redisClient, store, cfg.StatusCacheTTL, logger)
	estimator := occupancy.NewService(store, redisClient, cfg, logger)
	checker := health.NewChecker(nil, redisClient, pgClient, logger)

	server, err := web.NewServer(estimator, status, checker, cfg, logger)
	if err != nil {
		logger.Error("Failed to create web server", "error", err)
		os.Exit(1)
	}

	if cfg.ConfigFile != "" {
		go func() {
			err := config.Watch(ctx, cfg.ConfigFile, os.Args[1:], logger, func(next *config.Config) {
				level.Set(config.ParseLogLevel(next.LogLevel))
				logger.Info("Log level updated", "log_level", next.LogLevel)
			})
			if err != nil {
				logger.Warn("Config watcher stopped", "error", err)
			}
		}()
	}

	if err := server.Run(ctx); err != nil {
		logger.Error("Web server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Web shutdown complete")
}
