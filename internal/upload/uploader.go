package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dataset-builder/internal/utils"

	"github.com/schollz/progressbar/v3"
)

const (
	DefaultSplit      = "train"
	DefaultImageExt   = ".jpg"
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

type Job struct {
	Path  string
	Name  string
	Split string
}

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Outcome struct {
	Job      Job
	Status   Status
	Attempts int
	Reason   string
}

type Summary struct {
	Uploaded  int
	Failed    int
	Attempted int
	Outcomes  []Outcome
}

type state int

const (
	statePending state = iota
	stateAttempting
	stateRetrying
	stateSucceeded
	stateExhausted
)

type Uploader struct {
	Transport Transport

	MaxRetries int
	RetryDelay time.Duration
	// Limit caps the number of files attempted; 0 means no limit.
	Limit    int
	Split    string
	ImageExt string

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Progress receives a progress bar when set.
	Progress io.Writer
}

func (u *Uploader) UploadDir(ctx context.Context, dir string) (Summary, error) {
	imageExt := u.ImageExt
	if imageExt == "" {
		imageExt = DefaultImageExt
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Summary{}, uploadErrorf(nil, "frame directory not found: %s", dir)
		}
		return Summary{}, uploadErrorf(err, "cannot access frame directory %s", dir)
	}
	if !info.IsDir() {
		return Summary{}, uploadErrorf(nil, "frame path is not a directory: %s", dir)
	}

	files, err := utils.ListFiles(dir, imageExt)
	if err != nil {
		return Summary{}, uploadErrorf(err, "error listing %s", dir)
	}
	if len(files) == 0 {
		return Summary{}, uploadErrorf(nil, "no %s files found in %s", strings.ToUpper(strings.TrimPrefix(imageExt, ".")), dir)
	}

	if u.Limit > 0 && len(files) > u.Limit {
		files = files[:u.Limit]
	}

	split := u.Split
	if split == "" {
		split = DefaultSplit
	}

	bar := u.newProgressBar(len(files))

	var summary Summary
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return summary, uploadErrorf(err, "interrupted after %d uploads", summary.Uploaded)
		}

		outcome := u.UploadFile(ctx, Job{Path: filepath.Join(dir, name), Name: name, Split: split})
		summary.Outcomes = append(summary.Outcomes, outcome)
		summary.Attempted++
		if outcome.Status == StatusSucceeded {
			summary.Uploaded++
		} else {
			summary.Failed++
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if summary.Uploaded == 0 {
		return summary, uploadErrorf(nil, "no files were successfully uploaded")
	}

	slog.Info("upload complete", "uploaded", summary.Uploaded, "failed", summary.Failed)
	return summary, nil
}

// UploadFile drives one job through pending -> attempting ->
// {succeeded, retrying, exhausted}. The retry delay follows every failed
// attempt, including the last one.
func (u *Uploader) UploadFile(ctx context.Context, job Job) Outcome {
	maxRetries := u.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	outcome := Outcome{Job: job}
	var lastErr error

	for st := statePending; ; {
		switch st {
		case statePending:
			if _, err := os.Stat(job.Path); err != nil {
				slog.Warn("file not found, skipping", "file", job.Name, "error", err)
				outcome.Status = StatusFailed
				outcome.Reason = fmt.Sprintf("file not found: %v", err)
				return outcome
			}
			st = stateAttempting

		case stateAttempting:
			outcome.Attempts++
			lastErr = u.attempt(ctx, job)
			switch {
			case lastErr == nil:
				st = stateSucceeded
			case outcome.Attempts >= maxRetries:
				st = stateExhausted
			default:
				slog.Debug("upload attempt failed", "file", job.Name, "attempt", outcome.Attempts, "error", lastErr)
				st = stateRetrying
			}

		case stateRetrying:
			if err := u.sleep(ctx); err != nil {
				outcome.Status = StatusFailed
				outcome.Reason = fmt.Sprintf("cancelled after %d attempts: %v", outcome.Attempts, err)
				return outcome
			}
			st = stateAttempting

		case stateSucceeded:
			outcome.Status = StatusSucceeded
			return outcome

		case stateExhausted:
			slog.Warn("failed to upload file", "file", job.Name, "attempts", outcome.Attempts, "error", lastErr)
			outcome.Status = StatusFailed
			outcome.Reason = lastErr.Error()
			_ = u.sleep(ctx)
			return outcome
		}
	}
}

func (u *Uploader) attempt(ctx context.Context, job Job) error {
	f, err := os.Open(job.Path)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", job.Path, err)
	}
	defer f.Close()

	res, err := u.Transport.Upload(ctx, job.Name, job.Split, f)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: res.StatusCode, Body: res.Body}
	}
	return nil
}

func (u *Uploader) sleep(ctx context.Context) error {
	delay := u.RetryDelay
	if u.Sleep != nil {
		return u.Sleep(ctx, delay)
	}
	return sleepContext(ctx, delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (u *Uploader) newProgressBar(total int) *progressbar.ProgressBar {
	if u.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(u.Progress),
		progressbar.OptionSetDescription("Uploading frames"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
