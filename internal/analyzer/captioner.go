package analyzer

import (
	"context"
	"log/slog"

	"github.com/bdougie/vision/internal/models"
)

// CaptionModel produces a short caption for one stored frame
type CaptionModel interface {
	Model() string
	Caption(ctx context.Context, path string) (string, error)
}

// Captioner captions frames with a local model. It never retries: the first
// failure ends the run.
type Captioner struct {
	model  CaptionModel
	logger *slog.Logger
}

func NewCaptioner(model CaptionModel, logger *slog.Logger) *Captioner {
	return &Captioner{model: model, logger: logger}
}

// CaptionBatch returns one caption per frame, in frame order
func (c *Captioner) CaptionBatch(ctx context.Context, batch []models.FrameRecord) ([]string, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	captions := make([]string, 0, len(batch))
	for _, frame := range batch {
		caption, err := c.model.Caption(ctx, frame.Path)
		if err != nil {
			return nil, &models.ProviderCallError{Model: c.model.Model(), FrameIndex: frame.Index, Err: err}
		}
		captions = append(captions, caption)
	}

	c.logger.Debug("batch captioned", "frames", len(batch), "first_frame", batch[0].Index)
	return captions, nil
}
