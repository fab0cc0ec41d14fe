package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
	"github.com/ayy-em/llm-storytell-sub000/internal/rundir"
	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

const (
	TTSDir        = "tts"
	TTSPromptsDir = "prompts"
	TTSOutputsDir = "outputs"
)

// SegmentPromptPath returns the path of the text written for segment n
// (1-based) under the run directory.
func SegmentPromptPath(runDir string, n int) string {
	return filepath.Join(runDir, TTSDir, TTSPromptsDir, fmt.Sprintf("segment_%02d.txt", n))
}

// SegmentOutputPath returns the path of the audio produced for segment n.
func SegmentOutputPath(runDir string, n int, ext string) string {
	return filepath.Join(runDir, TTSDir, TTSOutputsDir, fmt.Sprintf("segment_%02d.%s", n, ext))
}

// Synthesize runs per-chunk TTS: each chunk's text and audio land under
// tts/, and tts_token_usage gains one record per segment in a single
// atomic state update each. Returns the segment audio paths in order.
func Synthesize(ctx context.Context, runDir string, chunks []Chunk, synth provider.SpeechSynthesizer, cfg *state.TTSConfig, log *rundir.Logger) ([]string, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to synthesize")
	}
	for _, dir := range []string{
		filepath.Join(runDir, TTSDir, TTSPromptsDir),
		filepath.Join(runDir, TTSDir, TTSOutputsDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create tts directory: %w", err)
		}
	}

	opts := provider.SpeakOptions{Model: cfg.Model, Voice: cfg.Voice}
	var paths []string
	totalChars := 0
	for i, chunk := range chunks {
		n := i + 1
		if chunk.Imperfect {
			log.Warn("segment %02d chunked at maximum without newline", n)
		}

		promptPath := SegmentPromptPath(runDir, n)
		if err := state.WriteFileAtomic(promptPath, []byte(chunk.Text)); err != nil {
			return nil, fmt.Errorf("write segment %02d prompt: %w", n, err)
		}

		res, err := synth.Synthesize(ctx, chunk.Text, opts)
		if err != nil {
			return nil, fmt.Errorf("synthesize segment %02d: %w", n, err)
		}

		outPath := SegmentOutputPath(runDir, n, cfg.Extension)
		if err := state.WriteFileAtomic(outPath, res.Audio); err != nil {
			return nil, fmt.Errorf("write segment %02d audio: %w", n, err)
		}

		usage := state.TTSUsage{
			Usage: state.Usage{
				Step:             fmt.Sprintf("tts_segment_%02d", n),
				Provider:         res.Provider,
				Model:            res.Model,
				PromptTokens:     res.PromptTokens,
				CompletionTokens: res.CompletionTokens,
				TotalTokens:      res.TotalTokens,
			},
			InputCharacters: res.InputCharacters,
		}
		if _, err := state.Update(runDir, func(s *state.State) error {
			s.TTSTokenUsage = append(s.TTSTokenUsage, usage)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("record segment %02d usage: %w", n, err)
		}

		totalChars += res.InputCharacters
		log.Info("segment %02d synthesized: %d characters (%d cumulative, voice=%s)",
			n, res.InputCharacters, totalChars, res.Voice)
		paths = append(paths, outPath)
	}
	return paths, nil
}
