package extractor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"iter"

	"github.com/bdougie/vision/internal/models"
)

// FrameStore persists retained frames
type FrameStore interface {
	Reset() error
	Save(img image.Image, index int) (string, error)
}

// Sample lazily decodes the source and yields a record for every frame whose
// position is a multiple of interval. Each retained frame is written to the
// store before it is yielded. The sequence ends at the first error.
func Sample(ctx context.Context, dec Decoder, interval int, store FrameStore) iter.Seq2[models.FrameRecord, error] {
	return func(yield func(models.FrameRecord, error) bool) {
		if interval <= 0 {
			yield(models.FrameRecord{}, fmt.Errorf("sampling interval must be positive, got %d", interval))
			return
		}

		fps := dec.FPS()
		if fps <= 0 {
			yield(models.FrameRecord{}, &models.UnreadableSourceError{
				Path:   dec.Source(),
				Reason: fmt.Sprintf("invalid frame rate %v", fps),
			})
			return
		}

		for {
			if err := ctx.Err(); err != nil {
				yield(models.FrameRecord{}, err)
				return
			}

			frame, err := dec.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(models.FrameRecord{}, err)
				return
			}
			if frame.Index%interval != 0 {
				continue
			}

			path, err := store.Save(frame.Image, frame.Index)
			if err != nil {
				yield(models.FrameRecord{}, err)
				return
			}

			record := models.FrameRecord{
				Path:      path,
				Index:     frame.Index,
				Timestamp: float64(frame.Index) / fps,
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

// Collect drains a sampled sequence, stopping at the first error
func Collect(seq iter.Seq2[models.FrameRecord, error]) ([]models.FrameRecord, error) {
	var frames []models.FrameRecord
	for record, err := range seq {
		if err != nil {
			return nil, err
		}
		frames = append(frames, record)
	}
	return frames, nil
}

// Opener opens a decoder for a video. stride is a hint that frames whose
// position is not a multiple of it will be discarded.
type Opener func(videoPath string, stride int) (Decoder, error)

// OpenFFmpeg opens videoPath with the ffmpeg decoder
func OpenFFmpeg(videoPath string, stride int) (Decoder, error) {
	return NewFFmpegDecoder(videoPath, stride)
}

// Extract resets the store and samples every interval-th frame of dec into it
func Extract(ctx context.Context, dec Decoder, interval int, store FrameStore) ([]models.FrameRecord, error) {
	if err := store.Reset(); err != nil {
		return nil, err
	}
	return Collect(Sample(ctx, dec, interval, store))
}

// ExtractFrames opens the video with ffmpeg and extracts it into store
func ExtractFrames(ctx context.Context, videoPath string, interval int, store FrameStore) ([]models.FrameRecord, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sampling interval must be positive, got %d", interval)
	}

	dec, err := NewFFmpegDecoder(videoPath, interval)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return Extract(ctx, dec, interval, store)
}
