package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/bdougie/vision/internal/config"
	"github.com/bdougie/vision/internal/extractor"
	"github.com/bdougie/vision/internal/models"
	"github.com/bdougie/vision/internal/storage"
	"github.com/bdougie/vision/internal/summarizer"
)

// NoFramesAnalyzed prefixes the failure message of a run in which every
// model failed on every frame.
const NoFramesAnalyzed = "No frames were successfully analyzed"

// Processor runs a video through sampling, inference and summarization
type Processor struct {
	store    extractor.FrameStore
	open     extractor.Opener
	logger   *slog.Logger
	progress io.Writer
}

type ProcessorOption func(*Processor)

// WithOpener replaces the ffmpeg decoder
func WithOpener(open extractor.Opener) ProcessorOption {
	return func(p *Processor) { p.open = open }
}

// WithProgressOutput sets where progress bars are drawn. io.Discard hides them.
func WithProgressOutput(w io.Writer) ProcessorOption {
	return func(p *Processor) { p.progress = w }
}

func NewProcessor(store extractor.FrameStore, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:    store,
		open:     extractor.OpenFFmpeg,
		logger:   logger,
		progress: io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) extract(ctx context.Context, videoPath string, interval int) ([]models.FrameRecord, error) {
	p.logger.Info("processing video", "video", videoPath, "interval", interval)

	if interval <= 0 {
		return nil, fmt.Errorf("sampling interval must be positive, got %d", interval)
	}

	dec, err := p.open(videoPath, interval)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	frames, err := extractor.Extract(ctx, dec, interval, p.store)
	if err != nil {
		return nil, fmt.Errorf("failed to extract frames: %w", err)
	}

	p.logger.Info("frames extracted", "count", len(frames), "fps", dec.FPS())
	return frames, nil
}

func (p *Processor) newBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.progress),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
	)
}

// CaptionOptions configures the local captioning pipeline
type CaptionOptions struct {
	Interval  int
	BatchSize int
	MaxFrames int
}

// CaptionResult is the output of the local captioning pipeline
type CaptionResult struct {
	Frames   int
	Captions []string
	Combined string
	Summary  string
}

// CaptionVideo captions every sampled frame with a local model and condenses
// the joined captions. Any provider failure aborts the run.
func (p *Processor) CaptionVideo(ctx context.Context, videoPath string, opts CaptionOptions, captioner *Captioner, sum summarizer.Summarizer) (*CaptionResult, error) {
	frames, err := p.extract(ctx, videoPath, opts.Interval)
	if err != nil {
		return nil, err
	}
	frames = Select(frames, opts.MaxFrames)

	batches := Batches(frames, opts.BatchSize)
	bar := p.newBar(len(batches), "captioning")

	captions := make([]string, 0, len(frames))
	for _, batch := range batches {
		batchCaptions, err := captioner.CaptionBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		captions = append(captions, batchCaptions...)
		bar.Add(1)
	}
	bar.Finish()

	combined := JoinCaptions(captions)
	result := &CaptionResult{Frames: len(frames), Captions: captions, Combined: combined}
	if len(captions) == 0 {
		p.logger.Warn("no frames captioned, skipping summary")
		return result, nil
	}

	summary, err := sum.Summarize(ctx, combined)
	if err != nil {
		return nil, err
	}
	result.Summary = summary
	return result, nil
}

// AnalyzeOptions configures the remote analysis pipeline
type AnalyzeOptions struct {
	Preset       config.Preset
	AnalysisType config.AnalysisType
	ReportPath   string
}

// AnalyzeVideo describes the selected frames with the vision fallback chain,
// summarizes the timeline and writes the report. A run where no frame could
// be analyzed returns an Outcome carrying the failure instead of an error.
func (p *Processor) AnalyzeVideo(ctx context.Context, videoPath string, opts AnalyzeOptions, vision *VisionAnalyzer, sum summarizer.Summarizer) (*models.Outcome, error) {
	params := opts.Preset.Params()

	frames, err := p.extract(ctx, videoPath, params.Interval)
	if err != nil {
		return nil, err
	}

	selected := Select(frames, params.MaxFrames)
	if len(selected) < len(frames) {
		p.logger.Info("frames selected", "selected", len(selected), "extracted", len(frames), "max", params.MaxFrames)
	}
	if len(selected) == 0 {
		return &models.Outcome{Failure: NoFramesAnalyzed + ": no frames were extracted"}, nil
	}

	bar := p.newBar(len(selected), "analyzing")
	run, err := vision.WithProgress(bar).Analyze(ctx, selected)
	bar.Finish()

	var exhausted *models.ProviderExhaustedError
	if errors.As(err, &exhausted) {
		p.logger.Error("analysis failed", "error", err)
		return &models.Outcome{Failure: NoFramesAnalyzed + ": " + exhausted.Error()}, nil
	}
	if err != nil {
		return nil, err
	}

	results := run.Results()
	summary, err := sum.Summarize(ctx, FormatTimeline(results))
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		Summary:             summary,
		FrameAnalyses:       results,
		TotalFramesAnalyzed: len(results),
		RunID:               uuid.New().String(),
		Video:               filepath.Base(videoPath),
		Preset:              opts.Preset.String(),
		AnalysisType:        opts.AnalysisType.String(),
		Model:               run.Model,
		Skipped:             run.Skipped(),
		GeneratedAt:         time.Now().UTC(),
	}

	if opts.ReportPath != "" {
		if err := storage.WriteReport(report, opts.ReportPath); err != nil {
			return nil, err
		}
		p.logger.Info("report written", "path", opts.ReportPath, "frames", report.TotalFramesAnalyzed)
	}

	return &models.Outcome{Report: report}, nil
}
