package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/bdougie/vision/internal/llm"
	"github.com/bdougie/vision/internal/models"
)

const maxImageSide = 1024

// VisionModel answers one prompt about one embedded image
type VisionModel interface {
	Describe(ctx context.Context, req llm.VisionRequest) (string, error)
}

// Progress counts frames handled during a model pass
type Progress interface {
	Add(n int) error
	Reset()
}

// VisionOptions configures a VisionAnalyzer
type VisionOptions struct {
	Models      []string
	Prompt      string
	MaxTokens   int
	Temperature float64
	BatchSize   int
	PaceDelay   time.Duration
	MinResults  int
}

// VisionRun is the accepted pass of one model over the selected frames
type VisionRun struct {
	Model    string
	Outcomes []models.FrameOutcome
	Attempts []models.ModelAttempt
}

// Results returns the analyzed frames in input order
func (r *VisionRun) Results() []models.AnalysisResult {
	results := make([]models.AnalysisResult, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Analyzed() {
			results = append(results, *o.Result)
		}
	}
	return results
}

// Skipped returns the frames the accepted model could not analyze
func (r *VisionRun) Skipped() []models.SkippedFrame {
	var skipped []models.SkippedFrame
	for _, o := range r.Outcomes {
		if !o.Analyzed() {
			skipped = append(skipped, models.SkippedFrame{
				FrameIndex: o.Frame.Index,
				Timestamp:  o.Frame.Timestamp,
				Reason:     o.SkipReason,
			})
		}
	}
	return skipped
}

// VisionAnalyzer describes frames with a remote vision model, walking an
// ordered list of models until one analyzes enough frames.
type VisionAnalyzer struct {
	client   VisionModel
	opts     VisionOptions
	logger   *slog.Logger
	progress Progress

	encode func(path string) (string, error)
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewVisionAnalyzer(client VisionModel, opts VisionOptions, logger *slog.Logger) *VisionAnalyzer {
	if opts.MinResults < 1 {
		opts.MinResults = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}

	return &VisionAnalyzer{
		client: client,
		opts:   opts,
		logger: logger,
		encode: EncodeDataURL,
		sleep:  sleepContext,
	}
}

// WithProgress reports every analyzed batch to p
func (v *VisionAnalyzer) WithProgress(p Progress) *VisionAnalyzer {
	v.progress = p
	return v
}

// Analyze runs the fallback chain over frames. Results from a model that is
// abandoned are discarded. If no model reaches MinResults the error is a
// *models.ProviderExhaustedError.
func (v *VisionAnalyzer) Analyze(ctx context.Context, frames []models.FrameRecord) (*VisionRun, error) {
	var attempts []models.ModelAttempt

	for _, model := range v.opts.Models {
		outcomes, err := v.pass(ctx, model, frames)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			v.logger.Warn("model abandoned", "model", model, "error", err)
			attempts = append(attempts, models.ModelAttempt{Model: model, Reason: err.Error()})
			continue
		}

		analyzed := 0
		for _, o := range outcomes {
			if o.Analyzed() {
				analyzed++
			}
		}
		if analyzed >= v.opts.MinResults {
			v.logger.Info("model accepted", "model", model, "analyzed", analyzed, "skipped", len(outcomes)-analyzed)
			return &VisionRun{Model: model, Outcomes: outcomes, Attempts: attempts}, nil
		}

		reason := fmt.Sprintf("%d of %d frames analyzed, need %d", analyzed, len(frames), v.opts.MinResults)
		v.logger.Warn("model produced too few results", "model", model, "reason", reason)
		attempts = append(attempts, models.ModelAttempt{Model: model, Reason: reason})
	}

	return nil, &models.ProviderExhaustedError{Attempts: attempts}
}

// pass sends every frame to model, one request at a time. A non-nil error
// means the model must be abandoned.
func (v *VisionAnalyzer) pass(ctx context.Context, model string, frames []models.FrameRecord) ([]models.FrameOutcome, error) {
	v.logger.Info("analyzing frames", "model", model, "frames", len(frames))
	if v.progress != nil {
		v.progress.Reset()
	}

	outcomes := make([]models.FrameOutcome, 0, len(frames))
	for _, batch := range Batches(frames, v.opts.BatchSize) {
		for _, frame := range batch {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			analysis, err := v.describe(ctx, model, frame)
			if err != nil {
				if errors.Is(err, llm.ErrModelUnavailable) || ctx.Err() != nil {
					return nil, err
				}
				v.logger.Warn("frame skipped", "model", model, "frame", frame.Index, "error", err)
				outcomes = append(outcomes, models.FrameOutcome{Frame: frame, SkipReason: err.Error()})
				continue
			}

			outcomes = append(outcomes, models.FrameOutcome{
				Frame: frame,
				Result: &models.AnalysisResult{
					FrameIndex: frame.Index,
					Timestamp:  frame.Timestamp,
					Analysis:   analysis,
					Model:      model,
				},
			})

			if len(outcomes) < len(frames) && v.opts.PaceDelay > 0 {
				if err := v.sleep(ctx, v.opts.PaceDelay); err != nil {
					return nil, err
				}
			}
		}

		if v.progress != nil {
			v.progress.Add(len(batch))
		}
	}
	return outcomes, nil
}

func (v *VisionAnalyzer) describe(ctx context.Context, model string, frame models.FrameRecord) (string, error) {
	imageURL, err := v.encode(frame.Path)
	if err != nil {
		return "", &models.ProviderCallError{Model: model, FrameIndex: frame.Index, Err: err}
	}

	text, err := v.client.Describe(ctx, llm.VisionRequest{
		Model:       model,
		Prompt:      v.opts.Prompt,
		ImageURL:    imageURL,
		MaxTokens:   v.opts.MaxTokens,
		Temperature: v.opts.Temperature,
	})
	if err != nil {
		return "", &models.ProviderCallError{Model: model, FrameIndex: frame.Index, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &models.ProviderCallError{Model: model, FrameIndex: frame.Index, Err: errors.New("empty response")}
	}
	return text, nil
}

// EncodeDataURL loads an image, shrinks it to fit the model's input size and
// returns it as a base64 JPEG data URL.
func EncodeDataURL(path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open frame: %w", err)
	}
	img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
