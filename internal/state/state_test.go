package state

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRunDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, Save(dir, New("test-app", "a seed", nil)))
	return dir
}

func TestLoadRoundTrip(t *testing.T) {
	dir := initRunDir(t)

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "test-app", s.App)
	assert.Equal(t, "a seed", s.Seed)
	assert.Empty(t, s.Outline)
	assert.NotNil(t, s.ContinuityLedger)
}

func TestUpdateAppendsInOneWrite(t *testing.T) {
	dir := initRunDir(t)

	_, err := Update(dir, func(s *State) error {
		s.Outline = append(s.Outline, Beat{BeatID: 1, Title: "Opening", Summary: "It begins."})
		s.TokenUsage = append(s.TokenUsage, Usage{
			Step: "outline", Provider: "fake", Model: "fake-1",
			PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15,
		})
		return nil
	})
	require.NoError(t, err)

	s, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, s.Outline, 1)
	require.Len(t, s.TokenUsage, 1)
	assert.Equal(t, 15, s.TokenUsage[0].TotalTokens)
}

func TestUpdateMutatorErrorLeavesStateUntouched(t *testing.T) {
	dir := initRunDir(t)

	boom := errors.New("boom")
	_, err := Update(dir, func(s *State) error {
		s.Outline = append(s.Outline, Beat{BeatID: 1, Title: "x", Summary: "y"})
		return boom
	})
	require.ErrorIs(t, err, boom)

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, s.Outline)
}

func TestUpdateLeavesNoTempFiles(t *testing.T) {
	dir := initRunDir(t)

	for i := 0; i < 5; i++ {
		_, err := Update(dir, func(s *State) error {
			s.ContinuityLedger["k"] = "v"
			return nil
		})
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFile), []byte("{not json"), 0o644))

	_, err := Load(dir)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "decode", ioErr.Op)
}

func TestTTSUsageMarshalsFlat(t *testing.T) {
	dir := initRunDir(t)

	_, err := Update(dir, func(s *State) error {
		s.TTSTokenUsage = append(s.TTSTokenUsage, TTSUsage{
			Usage:           Usage{Step: "tts_segment_01", Provider: "elevenlabs", Model: "eleven_flash_v2_5"},
			InputCharacters: 42,
		})
		return nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, StateFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"input_characters": 42`)
	assert.Contains(t, string(data), `"step": "tts_segment_01"`)
}
