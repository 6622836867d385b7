package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bdougie/vision/internal/models"
)

// WriteReport serializes the report as indented JSON, replacing any file
// already at path.
func WriteReport(report *models.Report, path string) error {
	if report.FrameAnalyses == nil {
		report.FrameAnalyses = []models.AnalysisResult{}
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &models.StorageError{Op: "create", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return &models.StorageError{Op: "create", Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		tmp.Close()
		return &models.StorageError{Op: "encode", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &models.StorageError{Op: "write", Path: path, Err: err}
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return &models.StorageError{Op: "replace", Path: path, Err: err}
	}
	return nil
}

// ReadReport loads a report written by WriteReport
func ReadReport(path string) (*models.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}
