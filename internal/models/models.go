package models

import "time"

// FrameRecord represents a sampled frame persisted in the frame store
type FrameRecord struct {
	Path      string  `json:"path"`
	Index     int     `json:"frame_index"`
	Timestamp float64 `json:"timestamp"`
}

// AnalysisResult represents the text produced for one frame by one model
type AnalysisResult struct {
	FrameIndex int     `json:"frame_index"`
	Timestamp  float64 `json:"timestamp"`
	Analysis   string  `json:"analysis"`
	Model      string  `json:"model"`
}

// FrameOutcome records whether a frame was analyzed or skipped.
// Exactly one of Result and SkipReason is set.
type FrameOutcome struct {
	Frame      FrameRecord     `json:"frame"`
	Result     *AnalysisResult `json:"result,omitempty"`
	SkipReason string          `json:"skip_reason,omitempty"`
}

// Analyzed reports whether the frame produced a result
func (o FrameOutcome) Analyzed() bool {
	return o.Result != nil
}

// SkippedFrame is the report entry for a frame that produced no result
type SkippedFrame struct {
	FrameIndex int     `json:"frame_index"`
	Timestamp  float64 `json:"timestamp"`
	Reason     string  `json:"reason"`
}

// Report is the final artifact of a run. The first three fields are the
// report proper; the rest is run metadata.
type Report struct {
	Summary             string           `json:"summary"`
	FrameAnalyses       []AnalysisResult `json:"frame_analyses"`
	TotalFramesAnalyzed int              `json:"total_frames_analyzed"`

	RunID        string         `json:"run_id,omitempty"`
	Video        string         `json:"video,omitempty"`
	Preset       string         `json:"preset,omitempty"`
	AnalysisType string         `json:"analysis_type,omitempty"`
	Model        string         `json:"model,omitempty"`
	Skipped      []SkippedFrame `json:"skipped,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at,omitzero"`
}

// Outcome is the result of a remote analysis run: either a report or a
// failure message when no frame could be analyzed.
type Outcome struct {
	Report  *Report
	Failure string
}

// Failed reports whether the run ended without a report
func (o *Outcome) Failed() bool {
	return o.Report == nil
}
