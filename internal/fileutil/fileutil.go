// Package fileutil writes run artifacts to disk.
package fileutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileExists reports whether a regular file exists at path.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// SanitizeFilename replaces characters that are unsafe in file names.
func SanitizeFilename(name string) string {
	return strings.NewReplacer(":", "-", "/", "-", "\\", "-", " ", "_").Replace(name)
}

// ArchivePath returns the file a run's archive is written to.
func ArchivePath(dir, runID string, startedAt time.Time) string {
	name := startedAt.UTC().Format("20060102T150405Z") + "-" + SanitizeFilename(runID) + ".json"
	return filepath.Join(dir, name)
}

// WriteJSONFile writes data as indented JSON, creating parent directories.
// An existing file is left alone unless overwrite is set; the bool reports
// whether the file was written.
func WriteJSONFile(data any, path string, overwrite bool) (bool, error) {
	if FileExists(path) && !overwrite {
		slog.Info("JSON file already exists, skipping", "filename", path)
		return false, nil
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0o644); err != nil {
		return false, fmt.Errorf("failed to write JSON file: %w", err)
	}
	slog.Debug("Wrote JSON file", "filename", path)
	return true, nil
}
