package stages

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayy-em/llm-storytell-sub000/internal/contextloader"
	"github.com/ayy-em/llm-storytell-sub000/internal/provider"
	"github.com/ayy-em/llm-storytell-sub000/internal/rundir"
	"github.com/ayy-em/llm-storytell-sub000/internal/schema"
	"github.com/ayy-em/llm-storytell-sub000/internal/state"
)

// queueGenerator replays canned responses in order.
type queueGenerator struct {
	responses []string
	calls     int
	prompts   []string
}

func (g *queueGenerator) Name() string { return "fake" }

func (g *queueGenerator) Generate(ctx context.Context, prompt, step string, opts provider.GenerateOptions) (*provider.TextResult, error) {
	g.prompts = append(g.prompts, prompt)
	if g.calls >= len(g.responses) {
		return nil, os.ErrNotExist
	}
	content := g.responses[g.calls]
	g.calls++
	return &provider.TextResult{
		Content:          content,
		Provider:         "fake",
		Model:            "fake-1",
		PromptTokens:     10,
		CompletionTokens: 20,
		TotalTokens:      30,
	}, nil
}

func writeTemplates(t *testing.T, dir string) {
	t.Helper()
	templates := map[string]string{
		"10_outline.md":   "Seed: {seed}\nBeats: {beats_count}\nLore: {lore_bible}\nStyle: {style_rules}\nLocation: {location_context}\nCharacters: {character_context}\n",
		"20_section.md":   "Section {section_id} (index {section_index})\nSeed: {seed}\nBeat: {outline_beat}\nPrior: {rolling_summary}\nFacts: {continuity_context}\nLength: {section_length}\nLore: {lore_bible}\nStyle: {style_rules}\nLocation: {location_context}\nCharacters: {character_context}\n",
		"21_summarize.md": "Summarize section {section_id}:\n{section_content}\n",
		"30_critic.md":    "Seed: {seed}\nOutline: {outline}\nDraft: {full_draft}\nLore: {lore_bible}\nStyle: {style_rules}\nLocation: {location_context}\nCharacters: {character_context}\n",
	}
	for name, content := range templates {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func newTestEnv(t *testing.T, beats int, gen provider.TextGenerator) *Env {
	t.Helper()
	base := t.TempDir()
	promptsDir := filepath.Join(base, "prompts")
	require.NoError(t, os.MkdirAll(promptsDir, 0o755))
	writeTemplates(t, promptsDir)

	runDir, err := rundir.Initialize(rundir.Params{
		App:           "test-app",
		Seed:          "A worker describes a day in a decaying city.",
		ContextDir:    filepath.Join(base, "context"),
		PromptsDir:    promptsDir,
		Beats:         &beats,
		RunID:         "test-run-001",
		BaseDir:       base,
		Model:         "fake-1",
		Language:      "en",
		SectionLength: "700-900",
	})
	require.NoError(t, err)

	inputs, err := state.LoadInputs(runDir)
	require.NoError(t, err)

	log, err := rundir.OpenLogger(runDir)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	return &Env{
		RunDir: runDir,
		Inputs: inputs,
		Selection: &contextloader.Selection{
			LoreBible:        "The city never sleeps.",
			StyleRules:       "Short sentences.",
			LocationContext:  "The docks.",
			CharacterContext: "Ada, a welder.",
		},
		Gen:       gen,
		Validator: schema.New(""),
		Log:       log,
	}
}

const outlineThreeBeats = `{"beats": [
  {"beat_id": 1, "title": "Dawn shift", "summary": "Ada clocks in."},
  {"beat_id": 2, "title": "The breach", "summary": "A hull cracks."},
  {"beat_id": 3, "title": "Night ledger", "summary": "Debts come due."}
]}`

func TestOutlineCommitsArtifactAndState(t *testing.T) {
	gen := &queueGenerator{responses: []string{outlineThreeBeats}}
	env := newTestEnv(t, 3, gen)

	require.NoError(t, Outline(context.Background(), env))

	_, err := os.Stat(filepath.Join(env.RunDir, "artifacts", OutlineArtifact))
	require.NoError(t, err)

	s, err := state.Load(env.RunDir)
	require.NoError(t, err)
	require.Len(t, s.Outline, 3)
	assert.Equal(t, "Dawn shift", s.Outline[0].Title)
	require.Len(t, s.TokenUsage, 1)
	assert.Equal(t, "outline", s.TokenUsage[0].Step)
	assert.Equal(t, 30, s.TokenUsage[0].TotalTokens)
}

func TestOutlineBeatCountMismatchIsFatal(t *testing.T) {
	gen := &queueGenerator{responses: []string{outlineThreeBeats}}
	env := newTestEnv(t, 5, gen)

	err := Outline(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "but 5 were requested")

	s, err := state.Load(env.RunDir)
	require.NoError(t, err)
	assert.Empty(t, s.Outline)
	assert.Empty(t, s.TokenUsage)
}

func TestOutlineAcceptsFencedResponse(t *testing.T) {
	gen := &queueGenerator{responses: []string{"Here you go:\n```json\n" + outlineThreeBeats + "\n```"}}
	env := newTestEnv(t, 3, gen)
	require.NoError(t, Outline(context.Background(), env))
}

const sectionResponse = `---
title: Dawn shift
pov: Ada
section_id: 99
---

The horns sounded before light. Ada was already at the gate.`

func seedOutline(t *testing.T, env *Env) {
	t.Helper()
	gen := &queueGenerator{responses: []string{outlineThreeBeats}}
	saved := env.Gen
	env.Gen = gen
	require.NoError(t, Outline(context.Background(), env))
	env.Gen = saved
}

func TestSectionForcesIDAndCommits(t *testing.T) {
	gen := &queueGenerator{responses: []string{sectionResponse}}
	env := newTestEnv(t, 3, gen)
	seedOutline(t, env)

	require.NoError(t, Section(context.Background(), env, 0))

	raw, err := os.ReadFile(filepath.Join(env.RunDir, "artifacts", SectionArtifact(1)))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "section_id: 1")
	assert.Contains(t, string(raw), "The horns sounded before light.")

	s, err := state.Load(env.RunDir)
	require.NoError(t, err)
	require.Len(t, s.Sections, 1)
	assert.Equal(t, 1, asInt(t, s.Sections[0]["section_id"]))
	require.Len(t, s.TokenUsage, 2)
	assert.Equal(t, "section_01", s.TokenUsage[1].Step)
}

func asInt(t *testing.T, v any) int {
	t.Helper()
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		t.Fatalf("unexpected numeric type %T", v)
		return 0
	}
}

func TestSectionMissingFrontmatterIsFatal(t *testing.T) {
	gen := &queueGenerator{responses: []string{"Just prose, no frontmatter at all."}}
	env := newTestEnv(t, 3, gen)
	seedOutline(t, env)

	err := Section(context.Background(), env, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing valid YAML frontmatter")

	_, statErr := os.Stat(filepath.Join(env.RunDir, "artifacts", SectionArtifact(1)))
	assert.True(t, os.IsNotExist(statErr))
}

const summaryResponse = `{"section_id": 99, "summary": "Ada finds the breach.", "continuity_updates": {"ada_status": "at the docks"}}`

func TestSummarizeMergesLedger(t *testing.T) {
	env := newTestEnv(t, 3, &queueGenerator{responses: []string{sectionResponse}})
	seedOutline(t, env)
	require.NoError(t, Section(context.Background(), env, 0))

	env.Gen = &queueGenerator{responses: []string{summaryResponse}}
	require.NoError(t, Summarize(context.Background(), env, 0))

	s, err := state.Load(env.RunDir)
	require.NoError(t, err)
	require.Len(t, s.Summaries, 1)
	assert.Equal(t, 1, s.Summaries[0].SectionID)
	assert.Equal(t, "at the docks", s.ContinuityLedger["ada_status"])
	require.Len(t, s.TokenUsage, 3)
	assert.Equal(t, "summarize_01", s.TokenUsage[2].Step)
}

func TestSummarizeRejectsNonMappingUpdates(t *testing.T) {
	env := newTestEnv(t, 3, &queueGenerator{responses: []string{sectionResponse}})
	seedOutline(t, env)
	require.NoError(t, Section(context.Background(), env, 0))

	env.Gen = &queueGenerator{responses: []string{`{"section_id": 1, "summary": "x", "continuity_updates": ["not", "a", "map"]}`}}
	err := Summarize(context.Background(), env, 0)
	require.Error(t, err)

	s, loadErr := state.Load(env.RunDir)
	require.NoError(t, loadErr)
	assert.Empty(t, s.Summaries)
}

const criticResponse = `{"final_script": "The horns sounded before light. Ada was already at the gate.", "editor_report": {"overall_assessment": "Tight, coherent draft."}}`

func runThreeSections(t *testing.T, env *Env) {
	t.Helper()
	for i := 0; i < 3; i++ {
		env.Gen = &queueGenerator{responses: []string{sectionResponse}}
		require.NoError(t, Section(context.Background(), env, i))
		env.Gen = &queueGenerator{responses: []string{summaryResponse}}
		require.NoError(t, Summarize(context.Background(), env, i))
	}
}

func TestCriticFinalizesRun(t *testing.T) {
	env := newTestEnv(t, 3, nil)
	seedOutline(t, env)
	runThreeSections(t, env)

	env.Gen = &queueGenerator{responses: []string{criticResponse}}
	require.NoError(t, Critic(context.Background(), env))

	s, err := state.Load(env.RunDir)
	require.NoError(t, err)
	assert.Equal(t, "artifacts/final_script.md", s.FinalScriptPath)
	assert.Equal(t, "artifacts/editor_report.json", s.EditorReportPath)

	script, err := os.ReadFile(filepath.Join(env.RunDir, "artifacts", FinalScriptArtifact))
	require.NoError(t, err)
	assert.Contains(t, string(script), "The horns sounded")

	_, err = os.Stat(filepath.Join(env.RunDir, "artifacts", EditorReportArtifact))
	require.NoError(t, err)
}

func TestCriticExtraKeyIsRejected(t *testing.T) {
	env := newTestEnv(t, 3, nil)
	seedOutline(t, env)
	runThreeSections(t, env)

	env.Gen = &queueGenerator{responses: []string{
		`{"final_script": "x", "editor_report": {"overall_assessment": "ok"}, "extra_key": "nope"}`,
	}}
	err := Critic(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra keys")

	_, statErr := os.Stat(filepath.Join(env.RunDir, "artifacts", FinalScriptArtifact))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCriticGapInSectionsIsFatal(t *testing.T) {
	env := newTestEnv(t, 3, nil)
	seedOutline(t, env)
	// Only sections 1 and 3 exist.
	env.Gen = &queueGenerator{responses: []string{sectionResponse}}
	require.NoError(t, Section(context.Background(), env, 0))
	env.Gen = &queueGenerator{responses: []string{sectionResponse}}
	require.NoError(t, Section(context.Background(), env, 2))

	env.Gen = &queueGenerator{responses: []string{criticResponse}}
	err := Critic(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing section artifact for section 2")
}

func TestCriticRepairedResponseIsLogged(t *testing.T) {
	env := newTestEnv(t, 3, nil)
	seedOutline(t, env)
	runThreeSections(t, env)

	env.Gen = &queueGenerator{responses: []string{
		`{"final_script": "She said "go home" and left.", "editor_report": {"overall_assessment": "ok"}}`,
	}}
	require.NoError(t, Critic(context.Background(), env))

	logData, err := os.ReadFile(filepath.Join(env.RunDir, rundir.LogFile))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "critic response repaired")
}
