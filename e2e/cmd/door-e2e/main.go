package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/doorpi/e2e/internal/checker"
	"github.com/saaga0h/doorpi/e2e/internal/executor"
	"github.com/saaga0h/doorpi/e2e/internal/reporter"
	"github.com/saaga0h/doorpi/e2e/internal/scenario"
	"github.com/saaga0h/doorpi/internal/doorlog"
	"github.com/saaga0h/doorpi/pkg/config"
	"github.com/saaga0h/doorpi/pkg/mqtt"
	"github.com/saaga0h/doorpi/pkg/postgres"
	"github.com/saaga0h/doorpi/pkg/redis"
)

func main() {
	scenarioPath := pflag.String("scenario", "", "Path to YAML scenario file (required)")
	outputDir := pflag.String("output-dir", "./test-output", "Output directory for test artifacts")
	timeScale := pflag.Int("time-scale", 1, "Divide scenario offsets by this factor")
	verbose := pflag.Bool("verbose", false, "Enable debug logging")
	pflag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --scenario is required\n")
		pflag.Usage()
		os.Exit(1)
	}

	// Connection settings come from DOORPI_CONFIG and DOORPI_* variables
	cfg, err := config.Load("door-e2e", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	cfg.MQTTClientID = fmt.Sprintf("door-e2e-%d", time.Now().UnixNano())
	cfg.MigrateOnStart = false

	logger, _ := config.NewLogger(os.Stderr, cfg.LogLevel)

	logger.Info("Loading scenario", "path", *scenarioPath)
	scen, err := scenario.LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scenario: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mqttClient := mqtt.NewClient(cfg, logger)
	if err := mqttClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to MQTT", "error", err)
		os.Exit(1)
	}
	defer mqttClient.Disconnect()

	redisClient := redis.NewClient(cfg, logger)
	defer redisClient.Close()

	var eventLog checker.EventReader
	pgClient := postgres.NewClient(cfg, logger)
	if err := pgClient.Connect(ctx); err != nil {
		logger.Warn("Postgres unavailable, event count checks will fail", "error", err)
	} else {
		defer pgClient.Disconnect()
		eventLog = doorlog.NewStore(pgClient, logger)
	}

	runner := executor.NewRunner(mqttClient, redisClient, eventLog, *timeScale, logger)

	result, timelineEvents, err := runner.Run(ctx, scen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Test execution failed: %v\n", err)
		os.Exit(1)
	}

	scenarioName := strings.TrimSuffix(filepath.Base(*scenarioPath), filepath.Ext(*scenarioPath))

	timeline := reporter.GenerateTimeline(result, timelineEvents)
	fmt.Println(timeline)

	timelinePath := filepath.Join(*outputDir, "timelines", scenarioName+".txt")
	if err := reporter.SaveTimeline(timeline, timelinePath); err != nil {
		logger.Warn("Failed to save timeline", "error", err)
	} else {
		logger.Info("Timeline saved", "path", timelinePath)
	}

	capturePath := filepath.Join(*outputDir, "captures", scenarioName+".json")
	if err := runner.SaveCapture(capturePath); err != nil {
		logger.Warn("Failed to save capture", "error", err)
	} else {
		logger.Info("MQTT capture saved", "path", capturePath)
	}

	summaryPath := filepath.Join(*outputDir, "summaries", scenarioName+".json")
	if err := reporter.SaveSummary(result, summaryPath); err != nil {
		logger.Warn("Failed to save summary", "error", err)
	} else {
		logger.Info("Summary saved", "path", summaryPath)
	}

	if !result.Passed {
		os.Exit(1)
	}
}
