// Package main provides the Weft server: the workflow API, the execution
// coordinator and the wait scheduler in one process.
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/weftlabs/weft/pkg/cmd"
	"github.com/weftlabs/weft/pkg/log"
	"github.com/weftlabs/weft/pkg/otelhelper"
	"github.com/weftlabs/weft/pkg/scheduler"
	"github.com/weftlabs/weft/pkg/services"
)

const defaultPort = 9090

func main() {
	command := &cli.Command{
		Name:                  "weft-server",
		Usage:                 "Manage workflows and run them",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "worker-binary",
				Usage:   "Path to the weft-worker binary; empty runs executions in-process",
				Sources: cli.EnvVars("WORKER_BINARY"),
			},
			&cli.StringFlag{
				Name:    "server-id",
				Usage:   "Custom server ID (auto-generated if not provided)",
				Sources: cli.EnvVars("SERVER_ID"),
			},
			&cli.StringFlag{
				Name:    "binary-data-mode",
				Usage:   "Binary data mode (default, filesystem, redis)",
				Sources: cli.EnvVars("BINARY_DATA_MODE"),
			},
			&cli.StringFlag{
				Name:    "binary-data-path",
				Usage:   "Filesystem root for binary data",
				Sources: cli.EnvVars("BINARY_DATA_PATH"),
			},
			&cli.StringFlag{
				Name:    "binary-data-redis-url",
				Usage:   "Redis URL for binary data",
				Sources: cli.EnvVars("BINARY_DATA_REDIS_URL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces (configure the exporter via OTEL_EXPORTER_OTLP_* variables)",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	serverID := command.String("server-id")
	if serverID == "" {
		serverID = "server-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("weft-server").With("server_id", serverID)
	logger.InfoContext(ctx, "Initializing Weft server")

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "server", logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	binaryService, err := cmd.NewBinaryDataService(
		command.String("binary-data-mode"),
		"",
		command.String("binary-data-path"),
		command.String("binary-data-redis-url"),
	)
	if err != nil {
		return err
	}

	registry := cmd.NewRegistry(logger)

	var tracer trace.Tracer

	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, "weft-server")
		if err != nil {
			return err
		}
	}

	executionService := services.NewExecution(services.ExecutionConfig{
		Logger:       logger,
		Store:        store,
		Registry:     registry,
		Binary:       binaryService,
		Bus:          eventBus,
		Tracer:       tracer,
		WorkerBinary: command.String("worker-binary"),
		WorkerID:     serverID,
	})
	workflowService := services.NewWorkflow(logger, store, eventBus)

	waitTracker := scheduler.NewWaitTracker(logger, store, executionService.Resume)
	waitTracker.Start(ctx)

	defer waitTracker.Stop()

	activator := scheduler.NewActivator(logger, store, registry, executionService.Start)
	activator.Start(ctx)

	defer activator.Stop()

	api := NewAPI(logger, workflowService, executionService)

	if err := api.Start(command.Int("port")); err != nil {
		logger.ErrorContext(ctx, "Failed to start API server", "error", err)

		return err
	}

	return nil
}
