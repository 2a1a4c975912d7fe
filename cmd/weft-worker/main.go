// Package main provides the Weft worker: it runs exactly one workflow
// execution, driven by the server over stdin/stdout. It has no database
// access; sub-workflows are resolved by the server over the pipe.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/weftlabs/weft/pkg/cmd"
	"github.com/weftlabs/weft/pkg/log"
	"github.com/weftlabs/weft/pkg/otelhelper"
	"github.com/weftlabs/weft/pkg/runner"
)

func main() {
	command := &cli.Command{
		Name:                  "weft-worker",
		Usage:                 "Execute one workflow run in isolation",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
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

	// Logs go to stderr; stdout carries the message pipe.
	logger := log.WithModule("weft-worker")

	// SIGTERM/SIGINT start the graceful shutdown window; the running
	// execution gets the grace period before it is canceled.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	binaryService, err := cmd.NewBinaryDataService(
		command.String("binary-data-mode"),
		"",
		command.String("binary-data-path"),
		command.String("binary-data-redis-url"),
	)
	if err != nil {
		return err
	}

	var tracer trace.Tracer

	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, "weft-worker")
		if err != nil {
			return err
		}
	}

	worker := runner.NewWorker(runner.WorkerConfig{
		Logger:   logger,
		Registry: cmd.NewRegistry(logger),
		Binary:   binaryService,
		Tracer:   tracer,
	})

	return worker.Run(ctx, runner.NewTransport(os.Stdin, os.Stdout))
}
