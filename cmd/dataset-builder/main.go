package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"dataset-builder/cmd"
	"dataset-builder/internal/config"
	"dataset-builder/internal/pipeline"
)

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cmd.SetupLogger(cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := cmd.CreateDeps(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	summary, err := pipeline.Run(ctx, cfg, deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n%s: %v\n", pipeline.Classify(err), err)
		stop()
		os.Exit(1)
	}

	slog.Info("all operations completed successfully",
		"run_id", summary.RunID,
		"frames", summary.Extraction.Frames,
		"uploaded", summary.Upload.Uploaded,
		"upload_failures", summary.Upload.Failed,
		"descriptor", summary.Descriptor,
	)
}
