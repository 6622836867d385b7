package analyzer

import (
	"fmt"
	"strings"

	"github.com/bdougie/vision/internal/models"
)

// Select bounds the number of frames sent for inference by keeping every
// stride-th frame, starting with the first. maxCount <= 0 disables the cap.
func Select(frames []models.FrameRecord, maxCount int) []models.FrameRecord {
	if maxCount <= 0 || len(frames) <= maxCount {
		return frames
	}

	stride := len(frames) / maxCount
	selected := make([]models.FrameRecord, 0, maxCount)
	for i := 0; i < len(frames) && len(selected) < maxCount; i += stride {
		selected = append(selected, frames[i])
	}
	return selected
}

// Batches splits frames into consecutive groups of at most size frames
func Batches(frames []models.FrameRecord, size int) [][]models.FrameRecord {
	if size <= 0 {
		size = 1
	}

	batches := make([][]models.FrameRecord, 0, (len(frames)+size-1)/size)
	for start := 0; start < len(frames); start += size {
		end := min(start+size, len(frames))
		batches = append(batches, frames[start:end])
	}
	return batches
}

// JoinCaptions concatenates captions with single spaces
func JoinCaptions(captions []string) string {
	return strings.Join(captions, " ")
}

// FormatTimeline renders one "[12.3s] text" line per result
func FormatTimeline(results []models.AnalysisResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("[%.1fs] %s", r.Timestamp, r.Analysis))
	}
	return strings.Join(lines, "\n")
}
