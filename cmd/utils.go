package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"dataset-builder/internal/config"
	"dataset-builder/internal/pipeline"
	"dataset-builder/internal/storage"
	"dataset-builder/internal/upload"
	"dataset-builder/internal/video"

	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		if err := godotenv.Load(); err == nil {
			log.Printf("loaded env from .env")
			return
		}
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

func SetupLogger(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func CreateArchiveStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.ArchiveBackend {
	case "local":
		store, err := storage.NewLocalObjectStore(cfg.ArchiveDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		store, err := storage.NewS3ObjectStore(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.ArchiveBackend)
	}
}

func CreateDeps(ctx context.Context, cfg *config.Config) (pipeline.Deps, error) {
	if err := video.CheckInstallation(); err != nil {
		return pipeline.Deps{}, err
	}

	archive, err := CreateArchiveStore(ctx, cfg)
	if err != nil {
		return pipeline.Deps{}, fmt.Errorf("error creating archive store: %w", err)
	}

	deps := pipeline.Deps{
		Opener: video.FfmpegOpener{},
		Transport: upload.NewDatasetClient(upload.ClientConfig{
			BaseURL: cfg.DatasetAPIURL,
			APIKey:  cfg.DatasetAPIKey,
			Project: cfg.DatasetProject,
			Timeout: cfg.UploadTimeout,
		}),
		Archive: archive,
	}
	if cfg.ShowProgress {
		deps.Progress = os.Stderr
	}
	return deps, nil
}
