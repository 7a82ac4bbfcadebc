package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/shelfmate/internal/book"
)

func stubProgram(t *testing.T, keys ...string) {
	t.Helper()
	original := runProgram
	runProgram = func(m tea.Model) (tea.Model, error) {
		current := m
		for _, key := range keys {
			current, _ = current.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
		}
		return current, nil
	}
	t.Cleanup(func() { runProgram = original })
}

func TestSelectSkipsUnusableRecords(t *testing.T) {
	stubProgram(t)

	result, err := Select("dune", []book.Record{{ISBN13: "9780441013593"}})
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, result.Action)
}

func TestSelectEnterPicksHighlighted(t *testing.T) {
	original := runProgram
	runProgram = func(m tea.Model) (tea.Model, error) {
		final, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		return final, nil
	}
	t.Cleanup(func() { runProgram = original })

	result, err := Select("dune", []book.Record{
		{Title: "Dune", Authors: []string{"Frank Herbert"}},
		{Title: "Dune Messiah", Authors: []string{"Frank Herbert"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ActionSelected, result.Action)
	require.NotNil(t, result.Selection)
	assert.Equal(t, "Dune", result.Selection.Title)
}

func TestSelectSkipKey(t *testing.T) {
	stubProgram(t, "s")

	result, err := Select("dune", []book.Record{{Title: "Dune"}})
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, result.Action)
	assert.Nil(t, result.Selection)
}

func TestSelectStopKey(t *testing.T) {
	stubProgram(t, "q")

	result, err := Select("dune", []book.Record{{Title: "Dune"}})
	require.NoError(t, err)
	assert.Equal(t, ActionStopped, result.Action)
}

func TestBookItemRendering(t *testing.T) {
	item := bookItem{Record: book.Record{
		Title:     "Dune",
		Authors:   []string{"Frank Herbert"},
		ISBN13:    "9780441013593",
		PageCount: 412,
		OLWorkKey: "/works/OL893415W",
	}}

	assert.Equal(t, "DUNE - Frank Herbert", item.Title())
	assert.Equal(t, "Dune", item.FilterValue())

	metadata := formatMetadata(item.Record, 0)
	assert.Contains(t, metadata, "412 pages")
	assert.Contains(t, metadata, "ISBN 9780441013593")
	assert.Contains(t, metadata, "OpenLibrary")
}

func TestFormatMetadataEmpty(t *testing.T) {
	assert.Equal(t, "No metadata available", formatMetadata(book.Record{Title: "X"}, 0))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 20))
	assert.Equal(t, "a much lo...", truncate("a much longer sentence", 12))
	assert.Equal(t, "collapsed whitespace", truncate("collapsed   whitespace", 0))
}
