// Package pipeline sequences a full run: workspace init, context
// selection, the four generation stages, and the optional audio graph.
// Stages communicate only through the run directory, so each one reloads
// state from disk on entry.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ayy-em/llm-storytell-sub000/internal/audio"
	"github.com/ayy-em/llm-storytell-sub000/internal/config"
	"github.com/ayy-em/llm-storytell-sub000/internal/contextloader"
	"github.com/ayy-em/llm-storytell-sub000/internal/progress"
	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
	"github.com/ayy-em/llm-storytell-sub000/internal/rundir"
	"github.com/ayy-em/llm-storytell-sub000/internal/schema"
	"github.com/ayy-em/llm-storytell-sub000/internal/stages"
	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

const (
	maxProviderRetries = 3

	VoiceoverDir = "voiceover"
)

// Deps are the injectable collaborators. Zero values get production
// defaults; tests supply fakes.
type Deps struct {
	Gen      provider.TextGenerator
	Synth    provider.SpeechSynthesizer
	Progress progress.Callback
}

// Summary is the end-of-run accounting report.
type Summary struct {
	RunDir          string
	FinalScriptPath string
	NarrationPath   string
	PromptTokens    int
	OutputTokens    int
	TTSCharacters   int
	CostUSD         float64
	HasCost         bool
}

// Run executes a full pipeline for a resolved launch. The returned
// Summary is valid only when err is nil; on failure the partial run
// directory remains on disk for inspection.
func Run(ctx context.Context, launch *config.Launch, deps Deps) (*Summary, error) {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	emit := deps.Progress
	if emit == nil {
		emit = progress.NopCallback
	}
	start := time.Now()
	emit(progress.NewEvent(progress.StageInit, "Initializing run workspace...", 0.02, start))

	runDir, err := rundir.Initialize(rundir.Params{
		App:           launch.App,
		Seed:          launch.Seed,
		ContextDir:    launch.ContextDir,
		PromptsDir:    launch.PromptsDir,
		Beats:         &launch.Beats,
		WordCount:     launch.WordCount,
		RunID:         launch.RunID,
		BaseDir:       launch.BaseDir,
		Model:         launch.Model,
		Language:      launch.Language,
		SectionLength: launch.SectionLength,
		TTSConfig:     launch.TTS,
	})
	if err != nil {
		return nil, err
	}

	log, err := rundir.OpenLogger(runDir)
	if err != nil {
		return nil, err
	}
	defer log.Close()

	inputs, err := state.LoadInputs(runDir)
	if err != nil {
		log.Error("load inputs: %v", err)
		return nil, err
	}

	emit(progress.NewEvent(progress.StageContext, "Selecting context documents...", 0.05, start))
	log.Info("stage context: start")
	selection, err := contextloader.Load(launch.ContextDir, inputs.RunID, launch.IncludeWorld, func(format string, args ...any) {
		log.Warn(format, args...)
	})
	if err != nil {
		log.Error("stage context: %v", err)
		return nil, err
	}
	if _, err := state.Update(runDir, func(s *state.State) error {
		s.SelectedContext = selectedContext(selection)
		return nil
	}); err != nil {
		log.Error("persist selected context: %v", err)
		return nil, err
	}
	log.Info("stage context: done (location=%q characters=%d world_files=%d)",
		selection.LocationName, len(selection.CharacterNames), len(selection.WorldFiles))

	gen := deps.Gen
	if gen == nil {
		inner, err := provider.NewTextGenerator(launch.Provider, launch.Model)
		if err != nil {
			log.Error("create text provider: %v", err)
			return nil, err
		}
		gen = provider.WithRetry(inner, maxProviderRetries)
	}

	env := &stages.Env{
		RunDir:    runDir,
		Inputs:    inputs,
		Selection: selection,
		Gen:       gen,
		Validator: schema.New(schemaDir(launch.BaseDir)),
		Log:       log,
	}

	beats := launch.Beats
	if err := runStage(env, "outline", emit, progress.NewEvent(progress.StageOutline, "Generating outline...", 0.10, start), func() error {
		return stages.Outline(ctx, env)
	}); err != nil {
		return nil, err
	}

	// Sections and summaries span 15%..75% of the bar.
	for i := 0; i < beats; i++ {
		pct := 0.15 + 0.60*float64(i)/float64(beats)
		msg := fmt.Sprintf("Writing section %d of %d...", i+1, beats)
		if err := runStage(env, fmt.Sprintf("section_%02d", i+1), emit, progress.NewEvent(progress.StageSection, msg, pct, start), func() error {
			return stages.Section(ctx, env, i)
		}); err != nil {
			return nil, err
		}
		msg = fmt.Sprintf("Summarizing section %d of %d...", i+1, beats)
		if err := runStage(env, fmt.Sprintf("summarize_%02d", i+1), emit, progress.NewEvent(progress.StageSummarize, msg, pct+0.30/float64(beats), start), func() error {
			return stages.Summarize(ctx, env, i)
		}); err != nil {
			return nil, err
		}
	}

	if err := runStage(env, "critic", emit, progress.NewEvent(progress.StageCritic, "Running editorial pass...", 0.78, start), func() error {
		return stages.Critic(ctx, env)
	}); err != nil {
		return nil, err
	}

	summary := &Summary{
		RunDir:          runDir,
		FinalScriptPath: filepath.Join(runDir, rundir.ArtifactsDir, stages.FinalScriptArtifact),
	}

	if launch.TTS != nil {
		narration, err := runAudio(ctx, launch, runDir, deps, log, emit, start)
		if err != nil {
			return nil, err
		}
		summary.NarrationPath = narration
	}

	final, err := state.Load(runDir)
	if err != nil {
		return nil, err
	}
	fillUsage(summary, final, launch.Pricing)
	logSummary(log, summary)

	done := progress.NewEvent(progress.StageComplete, "Run complete", 1.0, start)
	done.OutputFile = summary.FinalScriptPath
	if summary.NarrationPath != "" {
		done.OutputFile = summary.NarrationPath
		if info, err := os.Stat(summary.NarrationPath); err == nil {
			done.SizeMB = float64(info.Size()) / (1024 * 1024)
		}
	}
	done.LogFile = filepath.Join(runDir, rundir.LogFile)
	emit(done)
	return summary, nil
}

func runStage(env *stages.Env, name string, emit progress.Callback, ev progress.Event, fn func() error) error {
	emit(ev)
	env.Log.Info("stage %s: start", name)
	if err := fn(); err != nil {
		env.Log.Error("stage %s: %v", name, err)
		return err
	}
	env.Log.Info("stage %s: done", name)
	return nil
}

func selectedContext(sel *contextloader.Selection) state.SelectedContext {
	sc := state.SelectedContext{
		Characters: sel.CharacterNames,
		WorldFiles: sel.WorldFiles,
	}
	if sel.LocationName != "" {
		loc := sel.LocationName
		sc.Location = &loc
	}
	return sc
}

// schemaDir returns the on-disk schema override directory when present.
func schemaDir(baseDir string) string {
	dir := filepath.Join(baseDir, "schemas")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}

func runAudio(ctx context.Context, launch *config.Launch, runDir string, deps Deps, log *rundir.Logger, emit progress.Callback, start time.Time) (string, error) {
	scriptPath := filepath.Join(runDir, rundir.ArtifactsDir, stages.FinalScriptArtifact)
	raw, err := os.ReadFile(scriptPath)
	if err != nil {
		log.Error("read final script: %v", err)
		return "", fmt.Errorf("read final script: %w", err)
	}

	emit(progress.NewEvent(progress.StageTTS, "Chunking script for narration...", 0.82, start))
	chunks := audio.Split(string(raw))
	if len(chunks) == 0 {
		return "", fmt.Errorf("final script is empty, nothing to narrate")
	}
	log.Info("stage tts: start (%d segments)", len(chunks))

	synth := deps.Synth
	if synth == nil {
		inner, err := provider.NewSpeechSynthesizer(ctx, launch.TTS.Provider, launch.TTS.Model, launch.TTS.Voice, launch.Language, launch.TTSSpeed, launch.TTSPitch)
		if err != nil {
			log.Error("create speech provider: %v", err)
			return "", err
		}
		synth = provider.WithSpeechRetry(inner, maxProviderRetries)
	}

	segments, err := audio.Synthesize(ctx, runDir, chunks, synth, launch.TTS, log)
	if err != nil {
		log.Error("stage tts: %v", err)
		return "", err
	}
	log.Info("stage tts: done")

	emit(progress.NewEvent(progress.StageAudio, "Assembling narration audio...", 0.92, start))
	log.Info("stage audio: start")

	voDir := filepath.Join(runDir, VoiceoverDir)
	if err := os.MkdirAll(voDir, 0o755); err != nil {
		return "", fmt.Errorf("create voiceover directory: %w", err)
	}

	ext := launch.TTS.Extension
	voiceover := filepath.Join(voDir, "voiceover."+ext)
	if err := audio.Concat(ctx, segments, filepath.Join(voDir, "concat.txt"), voiceover); err != nil {
		log.Error("stage audio: concat: %v", err)
		return "", err
	}

	voiceDur, err := audio.ProbeDuration(ctx, voiceover)
	if err != nil {
		log.Error("stage audio: probe voiceover: %v", err)
		return "", err
	}

	music, err := audio.ResolveBackgroundMusic(launch.BaseDir, launch.App)
	if err != nil {
		log.Error("stage audio: %v", err)
		return "", err
	}
	musicDur, err := audio.ProbeDuration(ctx, music)
	if err != nil {
		log.Error("stage audio: probe music: %v", err)
		return "", err
	}

	looped := filepath.Join(voDir, "bg_looped.wav")
	if err := audio.LoopBackground(ctx, music, musicDur, voiceDur, looped); err != nil {
		log.Error("stage audio: loop background: %v", err)
		return "", err
	}

	enveloped := filepath.Join(voDir, "bg_enveloped.wav")
	if err := audio.ApplyEnvelope(ctx, looped, voiceDur, enveloped); err != nil {
		log.Error("stage audio: envelope: %v", err)
		return "", err
	}

	narration := filepath.Join(runDir, rundir.ArtifactsDir, "narration-"+launch.App+"."+ext)
	if err := audio.Mix(ctx, voiceover, enveloped, narration); err != nil {
		log.Error("stage audio: mix: %v", err)
		return "", err
	}
	log.Info("stage audio: done (%s, %.1fs voiceover)", narration, voiceDur)
	return narration, nil
}

func fillUsage(summary *Summary, s *state.State, pricing map[string]config.ModelPricing) {
	var cost float64
	priced := false
	for _, u := range s.TokenUsage {
		summary.PromptTokens += u.PromptTokens
		summary.OutputTokens += u.CompletionTokens
		if p, ok := pricing[u.Model]; ok {
			cost += float64(u.PromptTokens)/1e6*p.InputPerMTok + float64(u.CompletionTokens)/1e6*p.OutputPerMTok
			priced = true
		}
	}
	for _, u := range s.TTSTokenUsage {
		summary.TTSCharacters += u.InputCharacters
	}
	summary.CostUSD = cost
	summary.HasCost = priced
}

func logSummary(log *rundir.Logger, s *Summary) {
	var b strings.Builder
	fmt.Fprintf(&b, "run summary: prompt_tokens=%d output_tokens=%d", s.PromptTokens, s.OutputTokens)
	if s.TTSCharacters > 0 {
		fmt.Fprintf(&b, " tts_characters=%d", s.TTSCharacters)
	}
	if s.HasCost {
		fmt.Fprintf(&b, " estimated_cost_usd=%.4f", s.CostUSD)
	}
	log.Info("%s", b.String())
}
