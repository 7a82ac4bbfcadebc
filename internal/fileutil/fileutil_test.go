package fileutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Dune - Messiah", SanitizeFilename("Dune: Messiah"))
	assert.Equal(t, "a-b-c", SanitizeFilename(`a/b\c`))
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "books.json")

	written, err := WriteJSONFile(map[string]int{"books": 3}, path, false)
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 3, decoded["books"])

	// Existing file is skipped without overwrite.
	written, err = WriteJSONFile(map[string]int{"books": 9}, path, false)
	require.NoError(t, err)
	assert.False(t, written)

	written, err = WriteJSONFile(map[string]int{"books": 9}, path, true)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestWriteYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.yaml")

	written, err := WriteYAMLFile(map[string]string{"title": "Dune"}, path, false)
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]string
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "Dune", decoded["title"])
}

func TestDownloadCover(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	result, err := DownloadCover(CoverDownloadOptions{
		URL:       server.URL,
		OutputDir: dir,
		Filename:  BuildCoverFilename("Dune"),
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Downloaded)

	data, err := os.ReadFile(result.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	// Second call skips the existing file.
	result, err = DownloadCover(CoverDownloadOptions{
		URL:       server.URL,
		OutputDir: dir,
		Filename:  BuildCoverFilename("Dune"),
	})
	require.NoError(t, err)
	assert.False(t, result.Downloaded)
}

func TestDownloadCoverEmptyURL(t *testing.T) {
	result, err := DownloadCover(CoverDownloadOptions{})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDownloadCoverBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := DownloadCover(CoverDownloadOptions{
		URL:       server.URL,
		OutputDir: t.TempDir(),
		Filename:  "x.jpg",
	})
	assert.Error(t, err)
}
