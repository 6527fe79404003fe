package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"dataset-builder/internal/config"
	"dataset-builder/internal/descriptor"
	"dataset-builder/internal/sampler"
	"dataset-builder/internal/storage"
	"dataset-builder/internal/upload"
	"dataset-builder/internal/video"

	"github.com/google/uuid"
)

// Deps are the collaborators a run talks to. Archive may be nil.
type Deps struct {
	Opener    video.Opener
	Transport upload.Transport
	Archive   storage.ObjectStore
	Progress  io.Writer
	Sleep     func(ctx context.Context, d time.Duration) error
}

type Summary struct {
	RunID      string
	Extraction sampler.Report
	Upload     upload.Summary
	Archived   int
	Descriptor string
}

// DescriptorError reports a failure writing the training descriptor.
type DescriptorError struct {
	Err error
}

func (e *DescriptorError) Error() string {
	return "failed to create descriptor: " + e.Err.Error()
}

func (e *DescriptorError) Unwrap() error {
	return e.Err
}

type Kind string

const (
	KindExtraction Kind = "Frame extraction error"
	KindUpload     Kind = "Upload error"
	KindDescriptor Kind = "Descriptor error"
	KindUnexpected Kind = "Unexpected error"
)

// Classify maps an error returned by Run to the stage that produced it.
func Classify(err error) Kind {
	var extractionErr *sampler.ExtractionError
	var uploadErr *upload.UploadError
	var descriptorErr *DescriptorError
	switch {
	case errors.As(err, &extractionErr):
		return KindExtraction
	case errors.As(err, &uploadErr):
		return KindUpload
	case errors.As(err, &descriptorErr):
		return KindDescriptor
	default:
		return KindUnexpected
	}
}

func Run(ctx context.Context, cfg *config.Config, deps Deps) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	log := slog.With("run_id", summary.RunID)

	log.Info("[1] extracting frames", "input", cfg.VideoDir, "output", cfg.FrameDir)
	s := &sampler.Sampler{
		Opener:           deps.Opener,
		Writer:           sampler.JPEGWriter{Quality: cfg.JPEGQuality},
		Period:           cfg.FrameEverySeconds,
		DefaultFrameRate: cfg.DefaultFrameRate,
		VideoExt:         cfg.VideoExt,
		ImageExt:         cfg.ImageExt,
	}
	report, err := s.Extract(ctx, cfg.VideoDir, cfg.FrameDir)
	summary.Extraction = report
	if err != nil {
		return summary, err
	}
	log.Info("extracted frames", "frames", report.Frames, "processed", report.Processed, "discovered", report.Discovered)

	if deps.Archive != nil {
		archiver := &storage.Archiver{Store: deps.Archive, Bucket: cfg.ArchiveBucket}
		n, err := archiver.Archive(ctx, cfg.FrameDir, summary.RunID)
		if err != nil {
			log.Warn("failed to archive frames", "error", err)
		}
		summary.Archived = n
	}

	log.Info("[2] uploading frames", "workspace", cfg.DatasetWorkspace, "project", cfg.DatasetProject, "version", cfg.DatasetVersion, "limit", cfg.UploadLimit)
	u := &upload.Uploader{
		Transport:  deps.Transport,
		MaxRetries: cfg.UploadMaxRetries,
		RetryDelay: cfg.UploadRetryDelay,
		Limit:      cfg.UploadLimit,
		Split:      cfg.UploadSplit,
		ImageExt:   cfg.ImageExt,
		Sleep:      deps.Sleep,
		Progress:   deps.Progress,
	}
	uploaded, err := u.UploadDir(ctx, cfg.FrameDir)
	summary.Upload = uploaded
	if err != nil {
		return summary, err
	}
	log.Info("uploaded files", "uploaded", uploaded.Uploaded, "failed", uploaded.Failed)

	log.Info("[3] generating training descriptor", "path", cfg.DescriptorPath)
	d := descriptor.New(cfg.Classes)
	d.Train = cfg.TrainImages
	d.Val = cfg.ValImages
	if err := descriptor.Write(cfg.DescriptorPath, d); err != nil {
		return summary, &DescriptorError{Err: err}
	}
	summary.Descriptor = cfg.DescriptorPath
	log.Info("created descriptor", "path", cfg.DescriptorPath, "classes", d.NC)

	return summary, nil
}
