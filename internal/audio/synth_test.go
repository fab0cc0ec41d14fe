package audio

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
	"github.com/ayy-em/llm-storytell-sub000/internal/rundir"
	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

type fakeSynth struct {
	calls  int
	failAt int // 1-based call index that fails, 0 for never
	audio  []byte
}

func (f *fakeSynth) Name() string { return "fake-tts" }

func (f *fakeSynth) Synthesize(ctx context.Context, text string, opts provider.SpeakOptions) (*provider.SpeechResult, error) {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return nil, errors.New("synthesis rejected")
	}
	return &provider.SpeechResult{
		Audio:           f.audio,
		Provider:        "fake-tts",
		Model:           opts.Model,
		Voice:           opts.Voice,
		InputCharacters: len(text),
		TotalTokens:     len(text),
	}, nil
}

func newRunDir(t *testing.T) (string, *rundir.Logger) {
	t.Helper()
	tts := &state.TTSConfig{Provider: "fake-tts", Model: "tts-1", Voice: "ada", Extension: "mp3"}
	dir, err := rundir.Initialize(rundir.Params{
		App:       "test-app",
		Seed:      "seed",
		RunID:     "run-audio-test",
		BaseDir:   t.TempDir(),
		TTSConfig: tts,
	})
	require.NoError(t, err)
	log, err := rundir.OpenLogger(dir)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return dir, log
}

func TestSynthesizeWritesSegmentsAndUsage(t *testing.T) {
	dir, log := newRunDir(t)
	synth := &fakeSynth{audio: []byte("mp3-bytes")}
	chunks := []Chunk{
		{Text: "First segment text.", Words: 3},
		{Text: "Second segment text.", Words: 3},
	}
	cfg := &state.TTSConfig{Provider: "fake-tts", Model: "tts-1", Voice: "ada", Extension: "mp3"}

	paths, err := Synthesize(context.Background(), dir, chunks, synth, cfg, log)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	prompt, err := os.ReadFile(SegmentPromptPath(dir, 1))
	require.NoError(t, err)
	assert.Equal(t, "First segment text.", string(prompt))

	audio, err := os.ReadFile(SegmentOutputPath(dir, 2, "mp3"))
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(audio))

	s, err := state.Load(dir)
	require.NoError(t, err)
	require.Len(t, s.TTSTokenUsage, 2)
	assert.Equal(t, "tts_segment_01", s.TTSTokenUsage[0].Step)
	assert.Equal(t, len(chunks[0].Text), s.TTSTokenUsage[0].InputCharacters)
	assert.Equal(t, "tts_segment_02", s.TTSTokenUsage[1].Step)
}

func TestSynthesizeFailureKeepsEarlierSegments(t *testing.T) {
	dir, log := newRunDir(t)
	synth := &fakeSynth{audio: []byte("x"), failAt: 2}
	chunks := []Chunk{
		{Text: "one", Words: 1},
		{Text: "two", Words: 1},
	}
	cfg := &state.TTSConfig{Provider: "fake-tts", Extension: "mp3"}

	_, err := Synthesize(context.Background(), dir, chunks, synth, cfg, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segment 02")

	// The first segment committed before the failure.
	_, statErr := os.Stat(SegmentOutputPath(dir, 1, "mp3"))
	require.NoError(t, statErr)
	s, loadErr := state.Load(dir)
	require.NoError(t, loadErr)
	require.Len(t, s.TTSTokenUsage, 1)
}

func TestSynthesizeLogsImperfectChunks(t *testing.T) {
	dir, log := newRunDir(t)
	synth := &fakeSynth{audio: []byte("x")}
	chunks := []Chunk{{Text: "forced cut", Words: 2, Imperfect: true}}
	cfg := &state.TTSConfig{Provider: "fake-tts", Extension: "mp3"}

	_, err := Synthesize(context.Background(), dir, chunks, synth, cfg, log)
	require.NoError(t, err)

	logData, err := os.ReadFile(dir + "/" + rundir.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "chunked at maximum without newline")
}

func TestSynthesizeRejectsEmptyChunkList(t *testing.T) {
	dir, log := newRunDir(t)
	_, err := Synthesize(context.Background(), dir, nil, &fakeSynth{}, &state.TTSConfig{Extension: "mp3"}, log)
	require.Error(t, err)
}
