package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"dataset-builder/internal/utils"
	"dataset-builder/internal/video"
)

const (
	DefaultFrameRate = 30.0
	DefaultVideoExt  = ".mp4"
	DefaultImageExt  = ".jpg"
)

type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result is the outcome of sampling a single video.
type Result struct {
	Video  string
	Status Status
	Reason string
	Frames int
}

type Report struct {
	Frames     int
	Processed  int
	Discovered int
	Results    []Result
}

type Sampler struct {
	Opener video.Opener
	Writer FrameWriter

	// Period is the sampling period in seconds.
	Period           float64
	DefaultFrameRate float64
	VideoExt         string
	ImageExt         string
}

// Interval returns the number of decoded frames between two selected frames.
func Interval(frameRate, period float64) int {
	interval := math.Round(frameRate * period)
	if math.IsNaN(interval) || interval < 1 {
		return 1
	}
	if interval > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(interval)
}

func FrameName(index int, ext string) string {
	return fmt.Sprintf("frame_%05d%s", index, ext)
}

func (s *Sampler) Extract(ctx context.Context, inputDir, outputDir string) (Report, error) {
	videoExt := withDefault(s.VideoExt, DefaultVideoExt)

	if err := checkReadableDir(inputDir); err != nil {
		return Report{}, err
	}
	if err := prepareOutputDir(outputDir); err != nil {
		return Report{}, err
	}

	videos, err := utils.ListFiles(inputDir, videoExt)
	if err != nil {
		return Report{}, extractionErrorf(err, "error listing %s", inputDir)
	}
	if len(videos) == 0 {
		return Report{}, extractionErrorf(nil, "no %s files found in %s", strings.TrimPrefix(videoExt, "."), inputDir)
	}

	report := Report{Discovered: len(videos)}

	for _, name := range videos {
		if err := ctx.Err(); err != nil {
			return report, extractionErrorf(err, "interrupted after %d frames", report.Frames)
		}

		res := s.sampleVideo(ctx, filepath.Join(inputDir, name), outputDir, &report.Frames)
		res.Video = name
		report.Results = append(report.Results, res)

		switch res.Status {
		case StatusProcessed:
			report.Processed++
			slog.Info("processed video", "video", name, "frames", res.Frames)
		default:
			slog.Warn("video not fully processed", "video", name, "status", res.Status, "reason", res.Reason, "frames", res.Frames)
		}
	}

	if report.Frames == 0 {
		return report, extractionErrorf(nil, "no frames were extracted from any video")
	}

	slog.Info("frame extraction complete", "frames", report.Frames, "processed", report.Processed, "discovered", report.Discovered)
	return report, nil
}

// sampleVideo selects frames from one video, advancing next for every frame
// persisted. The source is always closed before returning.
func (s *Sampler) sampleVideo(ctx context.Context, path, outputDir string, next *int) Result {
	if _, err := os.Stat(path); err != nil {
		return Result{Status: StatusSkipped, Reason: fmt.Sprintf("file not found: %v", err)}
	}

	src, err := s.Opener.Open(ctx, path)
	if err != nil {
		return Result{Status: StatusSkipped, Reason: fmt.Sprintf("could not open video: %v", err)}
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("error releasing video", "video", path, "error", err)
		}
	}()

	rate := src.FrameRate()
	if rate <= 0 || math.IsNaN(rate) {
		fallback := withDefaultRate(s.DefaultFrameRate)
		slog.Warn("invalid frame rate, using default", "video", path, "frame_rate", rate, "default", fallback)
		rate = fallback
	}

	interval := Interval(rate, s.Period)
	imageExt := withDefault(s.ImageExt, DefaultImageExt)
	res := Result{Status: StatusProcessed}

	for i := 0; ; i++ {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return res
		}
		if err != nil {
			res.Status = StatusFailed
			res.Reason = fmt.Sprintf("decode error at frame %d: %v", i, err)
			return res
		}

		if i%interval != 0 {
			continue
		}

		dest := filepath.Join(outputDir, FrameName(*next, imageExt))
		if err := s.Writer.WriteFrame(dest, frame); err != nil {
			slog.Warn("error saving frame", "frame", *next, "path", dest, "error", err)
			continue
		}
		*next++
		res.Frames++
	}
}

func checkReadableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return extractionErrorf(nil, "video directory not found: %s", dir)
		}
		return extractionErrorf(err, "cannot access video directory %s", dir)
	}
	if !info.IsDir() {
		return extractionErrorf(nil, "video path is not a directory: %s", dir)
	}

	f, err := os.Open(dir)
	if err != nil {
		return extractionErrorf(err, "no read permissions for %s", dir)
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return extractionErrorf(err, "no read permissions for %s", dir)
	}
	return nil
}

func prepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return extractionErrorf(err, "cannot create output directory %s", dir)
	}

	probe, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return extractionErrorf(err, "no write permissions for %s", dir)
	}
	probe.Close()
	os.Remove(probe.Name()) //nolint:errcheck
	return nil
}

func withDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func withDefaultRate(rate float64) float64 {
	if rate <= 0 {
		return DefaultFrameRate
	}
	return rate
}
