package analyzer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/vision/internal/config"
	"github.com/bdougie/vision/internal/extractor"
	"github.com/bdougie/vision/internal/models"
	"github.com/bdougie/vision/internal/storage"
)

// clipDecoder produces a solid-color clip of total frames
type clipDecoder struct {
	total int
	fps   float64
	next  int
}

func (d *clipDecoder) Source() string { return "clip.mp4" }
func (d *clipDecoder) FPS() float64   { return d.fps }
func (d *clipDecoder) Close() error   { return nil }

func (d *clipDecoder) Next() (extractor.Frame, error) {
	if d.next >= d.total {
		return extractor.Frame{}, io.EOF
	}
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(0, 0, color.RGBA{R: uint8(d.next), A: 255})

	f := extractor.Frame{Index: d.next, Image: img}
	d.next++
	return f, nil
}

func clipOpener(total int, fps float64) extractor.Opener {
	return func(string, int) (extractor.Decoder, error) {
		return &clipDecoder{total: total, fps: fps}, nil
	}
}

type fakeSummarizer struct {
	reply string
	err   error
	input string
	calls int
}

func (s *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	s.calls++
	s.input = text
	return s.reply, s.err
}

func newTestProcessor(t *testing.T, total int) (*Processor, string) {
	dir := filepath.Join(t.TempDir(), "frames")
	store := storage.NewFrameStore(dir)
	return NewProcessor(store, discardLogger(), WithOpener(clipOpener(total, 30))), dir
}

func TestAnalyzeVideoEndToEnd(t *testing.T) {
	proc, dir := newTestProcessor(t, 90)
	reportPath := filepath.Join(t.TempDir(), "video_analysis_report.json")

	client := &fakeVision{behave: map[string]func(string) (string, error){
		"vlm-a": func(string) (string, error) { return "a player runs up", nil },
	}}
	vision := NewVisionAnalyzer(client, VisionOptions{
		Models:      []string{"vlm-a"},
		Prompt:      config.ActionDetection.Prompt(),
		MaxTokens:   300,
		Temperature: 0.2,
		BatchSize:   4,
	}, discardLogger())
	sum := &fakeSummarizer{reply: "A penalty is taken."}

	outcome, err := proc.AnalyzeVideo(context.Background(), "/videos/penalty.avi", AnalyzeOptions{
		Preset:       config.PresetStandard,
		AnalysisType: config.ActionDetection,
		ReportPath:   reportPath,
	}, vision, sum)
	require.NoError(t, err)
	require.False(t, outcome.Failed())

	report := outcome.Report
	assert.Equal(t, 3, report.TotalFramesAnalyzed)
	assert.NotEmpty(t, report.Summary)
	assert.Equal(t, "vlm-a", report.Model)
	assert.Equal(t, "penalty.avi", report.Video)
	assert.Equal(t, "standard", report.Preset)
	assert.NotEmpty(t, report.RunID)

	indices := make([]int, 0, len(report.FrameAnalyses))
	for _, r := range report.FrameAnalyses {
		indices = append(indices, r.FrameIndex)
	}
	assert.Equal(t, []int{0, 30, 60}, indices)

	assert.Equal(t, 1, sum.calls)
	assert.Equal(t, 3, strings.Count(sum.input, "\n")+1)
	assert.True(t, strings.HasPrefix(sum.input, "[0.0s] a player runs up\n[1.0s]"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	written, err := storage.ReadReport(reportPath)
	require.NoError(t, err)
	assert.Equal(t, 3, written.TotalFramesAnalyzed)
	assert.Equal(t, report.Summary, written.Summary)
}

func TestAnalyzeVideoNoFramesAnalyzed(t *testing.T) {
	proc, _ := newTestProcessor(t, 90)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	client := &fakeVision{behave: map[string]func(string) (string, error){
		"vlm-a": alwaysFail,
		"vlm-b": alwaysFail,
	}}
	vision := NewVisionAnalyzer(client, VisionOptions{Models: []string{"vlm-a", "vlm-b"}}, discardLogger())
	sum := &fakeSummarizer{reply: "unused"}

	outcome, err := proc.AnalyzeVideo(context.Background(), "clip.mp4", AnalyzeOptions{
		Preset:       config.PresetStandard,
		AnalysisType: config.SceneUnderstanding,
		ReportPath:   reportPath,
	}, vision, sum)
	require.NoError(t, err)
	require.True(t, outcome.Failed())
	assert.Contains(t, outcome.Failure, NoFramesAnalyzed)
	assert.Zero(t, sum.calls)

	_, err = os.Stat(reportPath)
	assert.True(t, os.IsNotExist(err), "no report is written when nothing was analyzed")
}

func TestAnalyzeVideoEmptySource(t *testing.T) {
	proc, _ := newTestProcessor(t, 0)
	vision := NewVisionAnalyzer(&fakeVision{}, VisionOptions{Models: []string{"vlm-a"}}, discardLogger())

	outcome, err := proc.AnalyzeVideo(context.Background(), "empty.mp4", AnalyzeOptions{
		Preset: config.PresetFast,
	}, vision, &fakeSummarizer{})
	require.NoError(t, err)
	assert.True(t, outcome.Failed())
}

func TestAnalyzeVideoCapsFrames(t *testing.T) {
	proc, _ := newTestProcessor(t, 1200)

	client := &fakeVision{behave: map[string]func(string) (string, error){
		"vlm-a": func(string) (string, error) { return "scene", nil },
	}}
	vision := NewVisionAnalyzer(client, VisionOptions{Models: []string{"vlm-a"}}, discardLogger())

	outcome, err := proc.AnalyzeVideo(context.Background(), "long.mp4", AnalyzeOptions{
		Preset: config.PresetFast,
	}, vision, &fakeSummarizer{reply: "ok"})
	require.NoError(t, err)

	// 20 frames sampled at interval 60, capped to 10 with stride 2
	report := outcome.Report
	require.Equal(t, 10, report.TotalFramesAnalyzed)
	assert.Equal(t, 0, report.FrameAnalyses[0].FrameIndex)
	assert.Equal(t, 120, report.FrameAnalyses[1].FrameIndex)
	assert.Len(t, client.calls, 10)
}

func TestAnalyzeVideoUnreadableSource(t *testing.T) {
	store := storage.NewFrameStore(t.TempDir())
	proc := NewProcessor(store, discardLogger(), WithOpener(clipOpener(30, 0)))
	vision := NewVisionAnalyzer(&fakeVision{}, VisionOptions{Models: []string{"vlm-a"}}, discardLogger())

	_, err := proc.AnalyzeVideo(context.Background(), "broken.mp4", AnalyzeOptions{
		Preset: config.PresetStandard,
	}, vision, &fakeSummarizer{})

	var unreadable *models.UnreadableSourceError
	assert.ErrorAs(t, err, &unreadable)
}

func TestCaptionVideo(t *testing.T) {
	proc, _ := newTestProcessor(t, 300)
	model := &fakeCaptions{}
	sum := &fakeSummarizer{reply: "A short clip."}

	result, err := proc.CaptionVideo(context.Background(), "clip.mp4", CaptionOptions{
		Interval:  30,
		BatchSize: 4,
	}, NewCaptioner(model, discardLogger()), sum)
	require.NoError(t, err)

	assert.Equal(t, 10, result.Frames)
	require.Len(t, result.Captions, 10)
	assert.Equal(t, "caption of frame_000000.png", result.Captions[0])
	assert.Equal(t, "caption of frame_000270.png", result.Captions[9])
	assert.Equal(t, JoinCaptions(result.Captions), sum.input)
	assert.Equal(t, "A short clip.", result.Summary)
}

func TestCaptionVideoFailures(t *testing.T) {
	t.Run("ProviderFailureAborts", func(t *testing.T) {
		proc, dir := newTestProcessor(t, 90)
		model := &fakeCaptions{failOn: filepath.Join(dir, "frame_000030.png")}
		sum := &fakeSummarizer{}

		_, err := proc.CaptionVideo(context.Background(), "clip.mp4", CaptionOptions{Interval: 30, BatchSize: 4},
			NewCaptioner(model, discardLogger()), sum)

		var callErr *models.ProviderCallError
		require.ErrorAs(t, err, &callErr)
		assert.Equal(t, 30, callErr.FrameIndex)
		assert.Zero(t, sum.calls)
	})

	t.Run("SummaryFailureIsFatal", func(t *testing.T) {
		proc, _ := newTestProcessor(t, 30)
		boom := errors.New("quota exceeded")

		_, err := proc.CaptionVideo(context.Background(), "clip.mp4", CaptionOptions{Interval: 30, BatchSize: 4},
			NewCaptioner(&fakeCaptions{}, discardLogger()), &fakeSummarizer{err: boom})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("StorageFailureAborts", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not-a-dir")
		require.NoError(t, os.WriteFile(file, nil, 0644))

		proc := NewProcessor(storage.NewFrameStore(file), discardLogger(), WithOpener(clipOpener(30, 30)))
		_, err := proc.CaptionVideo(context.Background(), "clip.mp4", CaptionOptions{Interval: 30, BatchSize: 4},
			NewCaptioner(&fakeCaptions{}, discardLogger()), &fakeSummarizer{})

		var storageErr *models.StorageError
		assert.ErrorAs(t, err, &storageErr)
	})
}
