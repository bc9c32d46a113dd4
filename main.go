package main

import (
	"context"
	"os"
	"time"

	"github.com/Darkness4/debounce-go/cmd/demo"
	"github.com/Darkness4/debounce-go/cmd/pipe"
	"github.com/Darkness4/debounce-go/cmd/watch"
	"github.com/Darkness4/debounce-go/logger"
	"github.com/Darkness4/debounce-go/telemetry"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var version = "dev"

var app = &cli.App{
	Name:    "debounce-go",
	Usage:   "Coalesce bursts of events into single, delayed runs.",
	Version: version,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level: trace, debug, info, warn, error.",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:    "log-json",
			Usage:   "Write the logs as JSON.",
			EnvVars: []string{"LOG_JSON"},
		},
		&cli.BoolFlag{
			Name:    "otlp",
			Usage:   "Export traces and metrics over OTLP/gRPC. Configured with OTEL_EXPORTER_OTLP_* variables.",
			EnvVars: []string{"OTEL_ENABLED"},
		},
		&cli.BoolFlag{
			Name:  "stdout",
			Usage: "Export traces and metrics to stdout.",
		},
	},
	Suggest:              true,
	EnableBashCompletion: true,
	Commands: []*cli.Command{
		watch.Command,
		demo.Command,
		pipe.Command,
	},
	Before: func(cCtx *cli.Context) error {
		logger.Setup(os.Stderr, cCtx.String("log-level"), cCtx.Bool("log-json"))

		opts := []telemetry.Option{telemetry.WithPrometheus()}
		if cCtx.Bool("otlp") {
			opts = append(opts, telemetry.WithOTLP())
		}
		if cCtx.Bool("stdout") {
			opts = append(opts, telemetry.WithStdout())
		}
		shutdown, err := telemetry.SetupOTELSDK(cCtx.Context, opts...)
		if err != nil {
			return err
		}
		otelShutdown = shutdown
		return nil
	},
	After: func(_ *cli.Context) error {
		if otelShutdown == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return otelShutdown(ctx)
	},
}

var otelShutdown func(context.Context) error

func main() {
	_ = godotenv.Load(".env")
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("app crashed")
	}
}
