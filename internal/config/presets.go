package config

import (
	"fmt"
	"slices"
	"strings"
)

// Preset names a fixed bundle of sampling and token-budget parameters
type Preset string

const (
	PresetDetailed Preset = "detailed"
	PresetStandard Preset = "standard"
	PresetFast     Preset = "fast"
)

// Params are the numeric settings a preset fixes
type Params struct {
	Interval  int `json:"interval"`
	BatchSize int `json:"batch_size"`
	MaxTokens int `json:"max_tokens"`
	MaxFrames int `json:"max_frames"`
}

var presets = map[Preset]Params{
	PresetDetailed: {Interval: 15, BatchSize: 2, MaxTokens: 500, MaxFrames: 20},
	PresetStandard: {Interval: 30, BatchSize: 4, MaxTokens: 300, MaxFrames: 15},
	PresetFast:     {Interval: 60, BatchSize: 6, MaxTokens: 200, MaxFrames: 10},
}

// Presets lists every known preset, most thorough first
func Presets() []Preset {
	return []Preset{PresetDetailed, PresetStandard, PresetFast}
}

// ParsePreset resolves a preset name. Unknown names are an error.
func ParsePreset(name string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := presets[p]; !ok {
		return "", fmt.Errorf("unknown preset %q (want one of %s)", name, joinNames(Presets()))
	}
	return p, nil
}

// Params returns the parameters fixed by the preset
func (p Preset) Params() Params {
	return presets[p]
}

func (p Preset) String() string { return string(p) }

// AnalysisType selects the instruction sent with every frame to the vision model
type AnalysisType string

const (
	ActionDetection    AnalysisType = "action_detection"
	DetailedAnalysis   AnalysisType = "detailed_analysis"
	SceneUnderstanding AnalysisType = "scene_understanding"
)

var analysisPrompts = map[AnalysisType]string{
	ActionDetection: "Describe the actions taking place in this video frame. " +
		"Focus on what the people or objects are doing, their movements and interactions. " +
		"Be concise and specific.",
	DetailedAnalysis: "Provide a detailed analysis of this video frame. " +
		"Describe the people, objects, setting, lighting and any notable details. " +
		"Mention anything that suggests what happened before or what may happen next.",
	SceneUnderstanding: "Explain the scene shown in this video frame. " +
		"Identify the location, the context of the situation and the overall mood. " +
		"Keep the description short.",
}

// AnalysisTypes lists every known analysis type
func AnalysisTypes() []AnalysisType {
	return []AnalysisType{ActionDetection, DetailedAnalysis, SceneUnderstanding}
}

// ParseAnalysisType resolves an analysis type name. Unknown names are an error.
func ParseAnalysisType(name string) (AnalysisType, error) {
	t := AnalysisType(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := analysisPrompts[t]; !ok {
		return "", fmt.Errorf("unknown analysis type %q (want one of %s)", name, joinNames(AnalysisTypes()))
	}
	return t, nil
}

// Prompt returns the per-frame instruction for the analysis type
func (t AnalysisType) Prompt() string {
	return analysisPrompts[t]
}

func (t AnalysisType) String() string { return string(t) }

func joinNames[T ~string](names []T) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, string(n))
	}
	slices.Sort(out)
	return strings.Join(out, ", ")
}
