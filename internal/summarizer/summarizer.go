package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SummaryFailedPlaceholder replaces the summary when a structured summary
// could not be generated.
const SummaryFailedPlaceholder = "Summary generation failed."

// TextGenerator turns a prompt into a single completion
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer condenses aggregated frame text into one summary
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

const conciseTemplate = `The following text is a list of image captions extracted from a video. The text is repetitive and not well-structured.
Please rewrite it into a concise and coherent summary without repetition:

Captions:
%s
`

// Concise rewrites repetitive captions into a short paragraph. Errors are
// returned to the caller.
type Concise struct {
	gen TextGenerator
}

func NewConcise(gen TextGenerator) *Concise {
	return &Concise{gen: gen}
}

func (s *Concise) Summarize(ctx context.Context, text string) (string, error) {
	summary, err := s.gen.Generate(ctx, fmt.Sprintf(conciseTemplate, text))
	if err != nil {
		return "", fmt.Errorf("failed to summarize captions: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

const structuredTemplate = `Below is a timeline of descriptions of frames sampled from a video, one line per frame with its timestamp.

%s

Write a summary of the whole video using these sections:

1. Overview: what the video is about in two or three sentences.
2. Key Events: the main events in chronological order, with timestamps.
3. People & Objects: who and what appears and how they change over time.
4. Setting & Atmosphere: where the video takes place and its overall mood.
5. Conclusion: how the video ends and what it conveys.

Only use information present in the timeline.`

// Structured writes a sectioned report. It never fails: when the generator
// errors the summary is SummaryFailedPlaceholder.
type Structured struct {
	gen    TextGenerator
	logger *slog.Logger
}

func NewStructured(gen TextGenerator, logger *slog.Logger) *Structured {
	return &Structured{gen: gen, logger: logger}
}

func (s *Structured) Summarize(ctx context.Context, timeline string) (string, error) {
	summary, err := s.gen.Generate(ctx, fmt.Sprintf(structuredTemplate, timeline))
	if err != nil {
		s.logger.Error("summary generation failed", "error", err)
		return SummaryFailedPlaceholder, nil
	}
	return summary, nil
}
