package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/spectrum-watch/cmd/sweeper/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath string
	flag.StringVar(&configPath, "c", "", "Path to the YAML file with device, scan band, detection and output settings")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -c config.yaml\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Sweeps the configured band segment by segment, logs power surges above")
		fmt.Fprintln(flag.CommandLine.Output(), "each segment's baseline and keeps a rolling waterfall of the band.")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	if configPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error("invalid sweeper configuration", slog.String("path", configPath), slog.String("error", err.Error()))
		os.Exit(1)
	}

	logLevel.Set(config.Settings.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting sweep", slog.String("config", configPath))

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error("sweep stopped", slog.String("error", err.Error()))

		cancel()
		os.Exit(1)
	}

	logger.Info("sweep finished")
}
