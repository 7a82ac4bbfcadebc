// Package fileutil holds small file-output helpers shared by the export
// paths.
package fileutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SanitizeFilename cleans a filename by replacing problematic characters
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, ":", " -")
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	return name
}

// FileExists checks if a file exists at the given path
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}

// WriteJSONFile writes data as JSON to a file, respecting the overwrite flag.
// Returns true if the file was written, false if it was skipped.
func WriteJSONFile(data any, filePath string, overwrite bool) (bool, error) {
	if FileExists(filePath) && !overwrite {
		slog.Info("JSON file already exists, skipping", "filename", filePath)
		return false, nil
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return writeFile(filePath, jsonData)
}

// WriteYAMLFile writes data as YAML to a file, respecting the overwrite flag.
// Returns true if the file was written, false if it was skipped.
func WriteYAMLFile(data any, filePath string, overwrite bool) (bool, error) {
	if FileExists(filePath) && !overwrite {
		slog.Info("YAML file already exists, skipping", "filename", filePath)
		return false, nil
	}

	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("failed to marshal YAML: %w", err)
	}

	return writeFile(filePath, yamlData)
}

func writeFile(filePath string, data []byte) (bool, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}

	slog.Info("Writing file", "filename", filePath)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write file: %w", err)
	}
	return true, nil
}
