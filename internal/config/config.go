package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

var DefaultClasses = []string{
	"Car", "Truck", "Bus", "Motorcycle",
	"Pedestrian",
	"TrafficLightRed", "TrafficLightGreen", "TrafficLightYellow",
}

type Config struct {
	VideoDir          string  `env:"VIDEO_DIR" envDefault:"Videos"`
	FrameDir          string  `env:"FRAME_DIR" envDefault:"frames"`
	FrameEverySeconds float64 `env:"FRAME_EVERY_SECONDS" envDefault:"1"`
	DefaultFrameRate  float64 `env:"DEFAULT_FRAME_RATE" envDefault:"30"`
	VideoExt          string  `env:"VIDEO_EXT" envDefault:".mp4"`
	ImageExt          string  `env:"IMAGE_EXT" envDefault:".jpg"`
	JPEGQuality       int     `env:"JPEG_QUALITY" envDefault:"95"`

	DatasetAPIURL    string        `env:"DATASET_API_URL" envDefault:"https://api.roboflow.com"`
	DatasetAPIKey    string        `env:"DATASET_API_KEY,notEmpty,required"`
	DatasetWorkspace string        `env:"DATASET_WORKSPACE" envDefault:"projectcamera"`
	DatasetProject   string        `env:"DATASET_PROJECT" envDefault:"traffic-control-managment"`
	DatasetVersion   int           `env:"DATASET_VERSION" envDefault:"1"`
	UploadLimit      int           `env:"UPLOAD_LIMIT" envDefault:"200"`
	UploadMaxRetries int           `env:"UPLOAD_MAX_RETRIES" envDefault:"3"`
	UploadRetryDelay time.Duration `env:"UPLOAD_RETRY_DELAY" envDefault:"2s"`
	UploadTimeout    time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"30s"`
	UploadSplit      string        `env:"UPLOAD_SPLIT" envDefault:"train"`
	ShowProgress     bool          `env:"SHOW_PROGRESS" envDefault:"true"`

	Classes        []string `env:"CLASSES" envSeparator:","`
	DescriptorPath string   `env:"DESCRIPTOR_PATH" envDefault:"dataset/data.yaml"`
	TrainImages    string   `env:"TRAIN_IMAGES" envDefault:"images/train"`
	ValImages      string   `env:"VAL_IMAGES" envDefault:"images/val"`

	// none, local or s3
	ArchiveBackend    string `env:"ARCHIVE_BACKEND" envDefault:"none"`
	ArchiveDir        string `env:"ARCHIVE_DIR" envDefault:"archive"`
	ArchiveBucket     string `env:"ARCHIVE_BUCKET" envDefault:"frames"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if len(cfg.Classes) == 0 {
		cfg.Classes = append([]string(nil), DefaultClasses...)
	}
	for i := range cfg.Classes {
		cfg.Classes[i] = strings.TrimSpace(cfg.Classes[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.ArchiveBackend == "s3" && cfg.S3EndpointURL != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
		slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.FrameEverySeconds <= 0 {
		errs = append(errs, fmt.Errorf("FRAME_EVERY_SECONDS must be positive, got %v", c.FrameEverySeconds))
	}
	if c.DefaultFrameRate <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_FRAME_RATE must be positive, got %v", c.DefaultFrameRate))
	}
	if c.UploadLimit <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_LIMIT must be positive, got %d", c.UploadLimit))
	}
	if c.UploadMaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_RETRIES must be positive, got %d", c.UploadMaxRetries))
	}
	if c.UploadRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_RETRY_DELAY must not be negative, got %s", c.UploadRetryDelay))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("JPEG_QUALITY must be in [1, 100], got %d", c.JPEGQuality))
	}
	for _, class := range c.Classes {
		if class == "" {
			errs = append(errs, errors.New("CLASSES must not contain empty names"))
			break
		}
	}
	if len(c.Classes) == 0 {
		errs = append(errs, errors.New("CLASSES must not be empty"))
	}
	switch c.ArchiveBackend {
	case "none", "local", "s3":
	default:
		errs = append(errs, fmt.Errorf("ARCHIVE_BACKEND must be one of none, local, s3, got %q", c.ArchiveBackend))
	}
	return errors.Join(errs...)
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
