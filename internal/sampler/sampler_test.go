package sampler

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"dataset-builder/internal/utils"
	"dataset-builder/internal/video"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVideo struct {
	rate    float64
	frames  int
	failAt  int // -1 for no decode failure
	openErr error
}

type fakeSource struct {
	video  fakeVideo
	pos    int
	closed *bool
}

func (s *fakeSource) FrameRate() float64 { return s.video.rate }

func (s *fakeSource) Next() (image.Image, error) {
	if s.video.failAt >= 0 && s.pos == s.video.failAt {
		return nil, errors.New("corrupt packet")
	}
	if s.pos >= s.video.frames {
		return nil, io.EOF
	}
	s.pos++
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (s *fakeSource) Close() error {
	*s.closed = true
	return nil
}

type fakeOpener struct {
	videos map[string]fakeVideo
	opened []string
	closed map[string]*bool
}

func newFakeOpener(videos map[string]fakeVideo) *fakeOpener {
	return &fakeOpener{videos: videos, closed: map[string]*bool{}}
}

func (o *fakeOpener) Open(ctx context.Context, path string) (video.Source, error) {
	name := filepath.Base(path)
	o.opened = append(o.opened, name)
	v, ok := o.videos[name]
	if !ok {
		return nil, errors.New("unknown video")
	}
	if v.openErr != nil {
		return nil, v.openErr
	}
	closed := false
	o.closed[name] = &closed
	return &fakeSource{video: v, closed: &closed}, nil
}

type failingWriter struct {
	inner FrameWriter
	fails int
	calls int
}

func (w *failingWriter) WriteFrame(path string, img image.Image) error {
	w.calls++
	if w.calls <= w.fails {
		return errors.New("disk full")
	}
	return w.inner.WriteFrame(path, img)
}

func setupDirs(t *testing.T, videos ...string) (string, string) {
	t.Helper()
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "frames")
	for _, v := range videos {
		require.NoError(t, os.WriteFile(filepath.Join(input, v), []byte("x"), 0o644))
	}
	return input, output
}

func newTestSampler(opener video.Opener) *Sampler {
	return &Sampler{
		Opener:           opener,
		Writer:           JPEGWriter{Quality: 80},
		Period:           1,
		DefaultFrameRate: DefaultFrameRate,
	}
}

func frameFiles(t *testing.T, dir string) []string {
	t.Helper()
	names, err := utils.ListFiles(dir, DefaultImageExt)
	require.NoError(t, err)
	return names
}

func TestInterval(t *testing.T) {
	assert.Equal(t, 10, Interval(10, 1))
	assert.Equal(t, 30, Interval(29.97, 1))
	assert.Equal(t, 15, Interval(30, 0.5))
	assert.Equal(t, 1, Interval(0.4, 1))
	assert.Equal(t, 1, Interval(30, 0.01))
	assert.Equal(t, 1, Interval(30, 0))
	assert.Equal(t, 2, Interval(1.5, 1))
}

func TestFrameName(t *testing.T) {
	assert.Equal(t, "frame_00000.jpg", FrameName(0, ".jpg"))
	assert.Equal(t, "frame_00042.jpg", FrameName(42, ".jpg"))
	assert.Equal(t, "frame_123456.jpg", FrameName(123456, ".jpg"))
}

func TestExtract_SingleVideo(t *testing.T) {
	input, output := setupDirs(t, "clip.mp4")
	opener := newFakeOpener(map[string]fakeVideo{
		"clip.mp4": {rate: 10, frames: 20, failAt: -1},
	})

	report, err := newTestSampler(opener).Extract(context.Background(), input, output)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Frames)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Discovered)
	assert.Equal(t, []string{"frame_00000.jpg", "frame_00001.jpg"}, frameFiles(t, output))
	assert.True(t, *opener.closed["clip.mp4"])

	f, err := os.Open(filepath.Join(output, "frame_00000.jpg"))
	require.NoError(t, err)
	defer f.Close()
	_, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestExtract_InvalidFrameRateUsesDefault(t *testing.T) {
	for _, rate := range []float64{0, -5} {
		input, output := setupDirs(t, "a.mp4")
		opener := newFakeOpener(map[string]fakeVideo{"a.mp4": {rate: rate, frames: 61, failAt: -1}})
		bad, err := newTestSampler(opener).Extract(context.Background(), input, output)
		require.NoError(t, err)

		input, output = setupDirs(t, "a.mp4")
		opener = newFakeOpener(map[string]fakeVideo{"a.mp4": {rate: 30, frames: 61, failAt: -1}})
		good, err := newTestSampler(opener).Extract(context.Background(), input, output)
		require.NoError(t, err)

		assert.Equal(t, good.Frames, bad.Frames)
		assert.Equal(t, 3, bad.Frames)
	}
}

func TestExtract_GlobalCounterAcrossVideos(t *testing.T) {
	input, output := setupDirs(t, "a.mp4", "b.mp4", "c.mp4", "notes.txt")
	opener := newFakeOpener(map[string]fakeVideo{
		"a.mp4": {rate: 10, frames: 30, failAt: 15},
		"b.mp4": {openErr: errors.New("moov atom not found")},
		"c.mp4": {rate: 10, frames: 10, failAt: -1},
	})

	report, err := newTestSampler(opener).Extract(context.Background(), input, output)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.mp4", "b.mp4", "c.mp4"}, opener.opened)
	assert.Equal(t, 3, report.Frames)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 3, report.Discovered)
	assert.Equal(t, []string{"frame_00000.jpg", "frame_00001.jpg", "frame_00002.jpg"}, frameFiles(t, output))

	require.Len(t, report.Results, 3)
	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Equal(t, 2, report.Results[0].Frames)
	assert.Equal(t, StatusSkipped, report.Results[1].Status)
	assert.Contains(t, report.Results[1].Reason, "moov atom not found")
	assert.Equal(t, StatusProcessed, report.Results[2].Status)

	assert.True(t, *opener.closed["a.mp4"])
	assert.True(t, *opener.closed["c.mp4"])
}

func TestExtract_WriteFailureDoesNotAdvanceCounter(t *testing.T) {
	input, output := setupDirs(t, "a.mp4")
	opener := newFakeOpener(map[string]fakeVideo{"a.mp4": {rate: 1, frames: 4, failAt: -1}})
	s := newTestSampler(opener)
	writer := &failingWriter{inner: JPEGWriter{}, fails: 1}
	s.Writer = writer

	report, err := s.Extract(context.Background(), input, output)
	require.NoError(t, err)

	assert.Equal(t, 4, writer.calls)
	assert.Equal(t, 3, report.Frames)
	assert.Equal(t, []string{"frame_00000.jpg", "frame_00001.jpg", "frame_00002.jpg"}, frameFiles(t, output))
}

func TestExtract_NoVideos(t *testing.T) {
	input, output := setupDirs(t, "readme.txt")
	opener := newFakeOpener(nil)

	_, err := newTestSampler(opener).Extract(context.Background(), input, output)

	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Contains(t, err.Error(), "no mp4 files found")
	assert.Empty(t, opener.opened)
}

func TestExtract_AllVideosFailToOpen(t *testing.T) {
	input, output := setupDirs(t, "a.mp4", "b.mp4")
	opener := newFakeOpener(map[string]fakeVideo{
		"a.mp4": {openErr: errors.New("bad codec")},
		"b.mp4": {openErr: errors.New("bad codec")},
	})

	report, err := newTestSampler(opener).Extract(context.Background(), input, output)

	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Contains(t, err.Error(), "no frames were extracted")
	assert.Equal(t, []string{"a.mp4", "b.mp4"}, opener.opened)
	assert.Len(t, report.Results, 2)
}

func TestExtract_MissingInputDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "Videos")
	opener := newFakeOpener(nil)

	_, err := newTestSampler(opener).Extract(context.Background(), missing, t.TempDir())

	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Contains(t, err.Error(), missing)
	assert.Empty(t, opener.opened)
}

func TestExtract_InputIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "video.mp4")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := newTestSampler(newFakeOpener(nil)).Extract(context.Background(), file, t.TempDir())

	var extractionErr *ExtractionError
	assert.ErrorAs(t, err, &extractionErr)
}

func TestExtract_OutputNotCreatable(t *testing.T) {
	input, _ := setupDirs(t, "a.mp4")
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	opener := newFakeOpener(map[string]fakeVideo{"a.mp4": {rate: 10, frames: 10, failAt: -1}})
	_, err := newTestSampler(opener).Extract(context.Background(), input, filepath.Join(blocker, "frames"))

	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Empty(t, opener.opened)
}

func TestExtract_Cancelled(t *testing.T) {
	input, output := setupDirs(t, "a.mp4")
	opener := newFakeOpener(map[string]fakeVideo{"a.mp4": {rate: 10, frames: 10, failAt: -1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSampler(opener).Extract(ctx, input, output)
	assert.ErrorIs(t, err, context.Canceled)
}

// installDecoderScripts puts shell-script stand-ins for ffprobe (a 2x2
// stream at 1 fps) and ffmpeg first on PATH.
func installDecoderScripts(t *testing.T, ffmpegScript string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("decoder stand-ins are shell scripts")
	}
	dir := t.TempDir()
	probe := "#!/bin/sh\necho '{\"streams\":[{\"width\":2,\"height\":2,\"r_frame_rate\":\"1/1\"}]}'\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ffprobe"), []byte(probe), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ffmpeg"), []byte("#!/bin/sh\n"+ffmpegScript+"\n"), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestExtract_FfmpegExitAfterCompleteFrame(t *testing.T) {
	installDecoderScripts(t, "head -c 12 /dev/zero\necho 'Error while decoding stream' >&2\nexit 1")
	input, output := setupDirs(t, "broken.mp4")

	report, err := newTestSampler(video.FfmpegOpener{}).Extract(context.Background(), input, output)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, res.Frames)
	assert.Contains(t, res.Reason, "Error while decoding stream")
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, []string{"frame_00000.jpg"}, frameFiles(t, output))
}

func TestExtract_FfmpegExitWithoutFrames(t *testing.T) {
	installDecoderScripts(t, "echo 'Invalid data found when processing input' >&2\nexit 1")
	input, output := setupDirs(t, "broken.mp4")

	report, err := newTestSampler(video.FfmpegOpener{}).Extract(context.Background(), input, output)

	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Equal(t, 0, report.Processed)
}
