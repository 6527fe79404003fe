package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// CheckInstallation verifies that ffmpeg and ffprobe are available on PATH.
func CheckInstallation() error {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s is not installed or not in PATH: %w", bin, err)
		}
	}
	return nil
}

type StreamInfo struct {
	Width     int
	Height    int
	FrameRate float64
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

func Probe(ctx context.Context, path string) (StreamInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return StreamInfo{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbeOutput(output)
}

func parseProbeOutput(data []byte) (StreamInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return StreamInfo{}, fmt.Errorf("error parsing ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return StreamInfo{}, errors.New("no video stream found")
	}

	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return StreamInfo{}, fmt.Errorf("invalid frame dimensions %dx%d", s.Width, s.Height)
	}

	rate := parseRate(s.RFrameRate)
	if rate <= 0 {
		rate = parseRate(s.AvgFrameRate)
	}

	return StreamInfo{Width: s.Width, Height: s.Height, FrameRate: rate}, nil
}

// parseRate parses ffprobe rationals such as "30000/1001". Anything
// unparseable yields 0.
func parseRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

type FfmpegOpener struct {
	Threads int
}

var _ Opener = FfmpegOpener{}

// decodeArgs builds the ffmpeg command line that streams the first video
// stream as packed rgb24. Rotation metadata is ignored and the output is
// pinned to the probed size so every frame is exactly Width*Height*3 bytes.
func decodeArgs(path string, info StreamInfo, threads int) []string {
	return []string{
		"-v", "error",
		"-threads", strconv.Itoa(threads),
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-vf", fmt.Sprintf("scale=%d:%d", info.Width, info.Height),
		"-c:v", "rawvideo", "-pix_fmt", "rgb24", "-f", "rawvideo",
		"-",
	}
}

func (o FfmpegOpener) Open(ctx context.Context, path string) (Source, error) {
	info, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	threads := o.Threads
	if threads <= 0 {
		threads = 2
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", decodeArgs(path, info, threads)...)
	stderr := &syncBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	return &ffmpegSource{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		info:   info,
	}, nil
}

// syncBuffer collects ffmpeg's stderr. exec copies into it from its own
// goroutine until Wait returns.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}

type ffmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *syncBuffer
	info   StreamInfo

	// drained is set once Next has hit the end of stdout and reaped ffmpeg.
	drained bool

	waitOnce sync.Once
	waitErr  error

	closeOnce sync.Once
	closeErr  error
}

func (s *ffmpegSource) FrameRate() float64 {
	return s.info.FrameRate
}

func (s *ffmpegSource) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

func (s *ffmpegSource) Next() (image.Image, error) {
	if s.drained {
		return nil, io.EOF
	}

	img := image.NewRGBA(image.Rect(0, 0, s.info.Width, s.info.Height))
	buf := make([]byte, s.info.Width*s.info.Height*3)

	if _, err := io.ReadFull(s.stdout, buf); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			s.drained = true
			// A clean end of stdout only means success if ffmpeg agrees.
			if werr := s.wait(); werr != nil {
				return nil, fmt.Errorf("ffmpeg failed: %w: %s", werr, s.stderr.String())
			}
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			s.drained = true
			_ = s.wait()
			return nil, fmt.Errorf("truncated frame: %w: %s", err, s.stderr.String())
		default:
			return nil, fmt.Errorf("error reading frame: %w", err)
		}
	}

	for src, dst := 0, 0; src < len(buf); src, dst = src+3, dst+4 {
		img.Pix[dst] = buf[src]
		img.Pix[dst+1] = buf[src+1]
		img.Pix[dst+2] = buf[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img, nil
}

func (s *ffmpegSource) Close() error {
	s.closeOnce.Do(func() {
		if s.drained {
			// Next already reported the exit status.
			return
		}
		s.stdout.Close()
		if err := s.wait(); err != nil {
			// Closing the pipe before the end of the stream makes ffmpeg exit
			// on SIGPIPE.
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				s.closeErr = fmt.Errorf("error waiting for ffmpeg: %w", err)
			}
		}
	})
	return s.closeErr
}
